package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-psbt/internal/coinselect"
	"wallet-psbt/internal/handler"
	"wallet-psbt/internal/model"
	"wallet-psbt/internal/service"
	"wallet-psbt/pkg/errno"
	"wallet-psbt/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePsbtService struct {
	created      model.CreateRequest
	records      map[string]model.Record
	err          error
	broadcastErr error // ctx.Err() seen by Broadcast
}

func (f *fakePsbtService) CreateDraft(_ context.Context, req model.CreateRequest) (model.Record, error) {
	f.created = req
	if f.err != nil {
		return model.Record{}, f.err
	}
	return model.Record{ID: "psbt_1", Status: model.StatusDraft, AmountBaseUnits: 150000000, Fee: req.Fee}, nil
}

func (f *fakePsbtService) lookup(id string) (model.Record, error) {
	if f.err != nil {
		return model.Record{}, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return model.Record{}, errno.New(errno.RecordNotFound).WithRecord(id)
	}
	return rec, nil
}

func (f *fakePsbtService) Sign(_ context.Context, id string) (model.Record, error) {
	return f.lookup(id)
}

func (f *fakePsbtService) Broadcast(ctx context.Context, id string) (model.Record, error) {
	f.broadcastErr = ctx.Err()
	return f.lookup(id)
}

func (f *fakePsbtService) Remove(_ context.Context, id string) error {
	_, err := f.lookup(id)
	return err
}

func (f *fakePsbtService) Get(_ context.Context, id string) (model.Record, error) {
	return f.lookup(id)
}

func (f *fakePsbtService) List(context.Context) []model.Record {
	out := make([]model.Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out
}

type fakeChain struct {
	status   model.ChainStatus
	utxos    []model.UTXO
	balances model.Balances
	err      error
}

func (f fakeChain) ChainStatus(context.Context) (model.ChainStatus, error) {
	return f.status, f.err
}

func (f fakeChain) ListUnspent(context.Context) ([]model.UTXO, error) {
	return f.utxos, f.err
}

func (f fakeChain) Balances(context.Context) (model.Balances, error) {
	return f.balances, f.err
}

type fakeHealth struct{}

func (fakeHealth) Snapshot() service.HealthSnapshot {
	return service.HealthSnapshot{Healthy: true, CheckedAt: time.Unix(1700000000, 0)}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestRouter(svc *fakePsbtService, chain fakeChain) (*gin.Engine, *prometheus.Registry) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	r := NewHTTPRouter(RouterDeps{
		Psbt:     handler.NewPsbtHandler(svc),
		Node:     handler.NewNodeHandler(chain, fakeHealth{}),
		Metrics:  monitor.NewHTTPMetrics(reg),
		Gatherer: reg,
	})
	return r, reg
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestCreatePsbt(t *testing.T) {
	svc := &fakePsbtService{}
	r, _ := newTestRouter(svc, fakeChain{})

	code, env := do(t, r, http.MethodPost, "/api/v1/psbt",
		`{"recipient_address":"bcrt1qdest","amount":"1.5","fee":"250.5","description":"rent"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)
	assert.True(t, decimal.RequireFromString("1.5").Equal(svc.created.Amount))
	assert.True(t, decimal.RequireFromString("250.5").Equal(svc.created.Fee))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "psbt_1", rec["id"])
	assert.Equal(t, "1.50000000", rec["amount"])
	assert.Equal(t, "draft", rec["status"])
}

func TestCreatePsbtBadRequests(t *testing.T) {
	r, _ := newTestRouter(&fakePsbtService{}, fakeChain{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing amount", `{"recipient_address":"bcrt1qdest","fee":"1"}`, errno.ErrBind.Code},
		{"not json", `amount=1`, errno.ErrBind.Code},
		{"amount not a number", `{"recipient_address":"bcrt1qdest","amount":"abc","fee":"1"}`, errno.InvalidAmount.Code},
		{"fee not a number", `{"recipient_address":"bcrt1qdest","amount":"1","fee":"1e"}`, errno.InvalidAmount.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, r, http.MethodPost, "/api/v1/psbt", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"invalid address", errno.New(errno.InvalidAddress), http.StatusBadRequest, errno.InvalidAddress.Code},
		{"transition", errno.New(errno.InvalidTransition).WithRecord("psbt_1"), http.StatusConflict, errno.InvalidTransition.Code},
		{"funds", &coinselect.InsufficientFundsError{Available: 1, Required: 2}, http.StatusUnprocessableEntity, errno.InsufficientFunds.Code},
		{"incomplete", errno.New(errno.IncompleteSigning), http.StatusUnprocessableEntity, errno.IncompleteSigning.Code},
		{"rejected", errno.New(errno.BroadcastRejected).WithMethod("sendrawtransaction"), http.StatusBadGateway, errno.BroadcastRejected.Code},
		{"timeout", errno.New(errno.RpcTimeout), http.StatusGatewayTimeout, errno.RpcTimeout.Code},
		{"unknown", assert.AnError, http.StatusInternalServerError, errno.InternalServerError.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(&fakePsbtService{err: tt.err}, fakeChain{})
			status, env := do(t, r, http.MethodPost, "/api/v1/psbt/psbt_1/broadcast", "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestErrorEnvelopeCarriesContext(t *testing.T) {
	err := errno.New(errno.BroadcastRejected).
		WithRecord("psbt_9").
		WithMethod("sendrawtransaction").
		WithDetail("code=-26 msg=txn-mempool-conflict")
	r, _ := newTestRouter(&fakePsbtService{err: err}, fakeChain{})

	_, env := do(t, r, http.MethodPost, "/api/v1/psbt/psbt_9/broadcast", "")
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "psbt_9", data["record_id"])
	assert.Equal(t, "sendrawtransaction", data["method"])
	assert.Contains(t, data["detail"], "txn-mempool-conflict")
	assert.Equal(t, errno.BroadcastRejected.Message, env.Msg)
}

func TestPsbtLifecycleRoutes(t *testing.T) {
	svc := &fakePsbtService{records: map[string]model.Record{
		"psbt_1": {ID: "psbt_1", Status: model.StatusBroadcast, FinalTxID: strings.Repeat("ab", 32)},
	}}
	r, _ := newTestRouter(svc, fakeChain{})

	status, env := do(t, r, http.MethodGet, "/api/v1/psbt/psbt_1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), strings.Repeat("ab", 32))

	status, _ = do(t, r, http.MethodPost, "/api/v1/psbt/psbt_1/sign", "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, r, http.MethodGet, "/api/v1/psbt", "")
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)

	status, _ = do(t, r, http.MethodDelete, "/api/v1/psbt/psbt_1", "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, r, http.MethodGet, "/api/v1/psbt/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errno.RecordNotFound.Code, env.Code)
}

func TestNodeRoutes(t *testing.T) {
	chain := fakeChain{status: model.ChainStatus{Chain: "regtest", BlockHeight: 101}}
	r, _ := newTestRouter(&fakePsbtService{}, chain)

	status, env := do(t, r, http.MethodGet, "/api/v1/node/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"block_height":101`)

	status, env = do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"healthy":true`)

	r, _ = newTestRouter(&fakePsbtService{}, fakeChain{err: errno.New(errno.RpcConnectionFailure)})
	status, _ = do(t, r, http.MethodGet, "/api/v1/node/status", "")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestNodeWalletRoutes(t *testing.T) {
	chain := fakeChain{
		utxos: []model.UTXO{
			{TxID: "aa", Vout: 0, Address: "bcrt1qa", Amount: 50000000, Confirmations: 3},
			{TxID: "bb", Vout: 2, Address: "bcrt1qb", Amount: 1, Confirmations: 0},
		},
		balances: model.Balances{Trusted: 150000000, UntrustedPending: 1, Immature: 0},
	}
	r, _ := newTestRouter(&fakePsbtService{}, chain)

	status, env := do(t, r, http.MethodGet, "/api/v1/node/utxos", "")
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Items []struct {
			TxID   string `json:"txid"`
			Amount string `json:"amount"`
		} `json:"items"`
		Count                int    `json:"count"`
		TotalAmount          string `json:"total_amount"`
		TotalAmountBaseUnits int64  `json:"total_amount_base_units"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "aa", list.Items[0].TxID)
	assert.Equal(t, "0.50000000", list.Items[0].Amount)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "0.50000001", list.TotalAmount)
	assert.Equal(t, int64(50000001), list.TotalAmountBaseUnits)

	status, env = do(t, r, http.MethodGet, "/api/v1/node/balance", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"trusted":"1.50000000"`)
	assert.Contains(t, string(env.Data), `"untrusted_pending_base_units":1`)

	r, _ = newTestRouter(&fakePsbtService{}, fakeChain{err: errno.New(errno.RpcTimeout)})
	status, env = do(t, r, http.MethodGet, "/api/v1/node/balance", "")
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, errno.RpcTimeout.Code, env.Code)
}

func TestBroadcastOutlivesClientDisconnect(t *testing.T) {
	svc := &fakePsbtService{records: map[string]model.Record{
		"psbt_1": {ID: "psbt_1", Status: model.StatusBroadcast, FinalTxID: "ff"},
	}}
	r, _ := newTestRouter(svc, fakeChain{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/psbt/psbt_1/broadcast", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, svc.broadcastErr)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(&fakePsbtService{}, fakeChain{})
	status, _ := do(t, r, http.MethodGet, "/api/v1/ping", "")
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/api/v1/ping",status="200"} 1`)
}
