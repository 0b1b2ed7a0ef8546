package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wallet-psbt/internal/credential"
	"wallet-psbt/internal/event"
	"wallet-psbt/pkg/crypto_util"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer 按 "METHOD path" 返回预置的状态码和响应体
func fakeServer(t *testing.T, routes map[string]func(body []byte) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("404 page not found"))
			return
		}
		status, resp := h(body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const recordJSON = `{"id":"psbt_1","status":"draft","recipient_address":"bcrt1qdest","amount":"1.50000000",
"amount_base_units":150000000,"fee":"250","psbt":"cHNidP8=","created_at":"2026-01-02T03:04:05Z"}`

func TestPsbtCreateSendsRequest(t *testing.T) {
	var got map[string]string
	srv := fakeServer(t, map[string]func([]byte) (int, string){
		"POST /api/v1/psbt": func(body []byte) (int, string) {
			_ = json.Unmarshal(body, &got)
			return http.StatusOK, `{"code":0,"msg":"Success","data":` + recordJSON + `}`
		},
	})

	out, err := runCLI(t, "", "--server", srv.URL, "psbt", "create",
		"--to", "bcrt1qdest", "--amount", "1.5", "--fee", "250", "-d", "rent")
	require.NoError(t, err)
	assert.Equal(t, "bcrt1qdest", got["recipient_address"])
	assert.Equal(t, "1.5", got["amount"])
	assert.Equal(t, "250", got["fee"])
	assert.Equal(t, "rent", got["description"])
	assert.Contains(t, out, "psbt_1")
	assert.Contains(t, out, "1.50000000 BTC (150000000 sat)")
}

func TestPsbtListPrintsTable(t *testing.T) {
	srv := fakeServer(t, map[string]func([]byte) (int, string){
		"GET /api/v1/psbt": func([]byte) (int, string) {
			return http.StatusOK, `{"code":0,"msg":"Success","data":{"items":[` + recordJSON + `],"total":1}}`
		},
	})

	out, err := runCLI(t, "", "--server", srv.URL, "psbt", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "psbt_1")
	assert.Contains(t, out, "draft")
}

func TestBroadcastErrorSurfacesContext(t *testing.T) {
	srv := fakeServer(t, map[string]func([]byte) (int, string){
		"POST /api/v1/psbt/psbt_1/broadcast": func([]byte) (int, string) {
			return http.StatusBadGateway, `{"code":30301,"msg":"Broadcast rejected","data":{"record_id":"psbt_1",` +
				`"method":"sendrawtransaction","detail":"code=-26 msg=txn-mempool-conflict"}}`
		},
	})

	_, err := runCLI(t, "", "--server", srv.URL, "psbt", "broadcast", "psbt_1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, 30301, apiErr.Code)
	assert.Equal(t, "psbt_1", apiErr.RecordID)
	assert.Equal(t, "sendrawtransaction", apiErr.Method)
	assert.Contains(t, err.Error(), "txn-mempool-conflict")
}

func TestNonJSONErrorResponse(t *testing.T) {
	srv := fakeServer(t, nil)

	_, err := runCLI(t, "", "--server", srv.URL, "psbt", "show", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Msg, "404 page not found")
}

func TestNodeStatus(t *testing.T) {
	srv := fakeServer(t, map[string]func([]byte) (int, string){
		"GET /api/v1/node/status": func([]byte) (int, string) {
			return http.StatusOK, `{"code":0,"msg":"Success","data":{"chain":"regtest","block_height":101,"headers":101,"best_block_hash":"00ff"}}`
		},
	})

	out, err := runCLI(t, "", "--server", srv.URL, "node", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "regtest")
	assert.Contains(t, out, "101")
}

func TestPassphrasePrompt(t *testing.T) {
	t.Setenv(passphraseEnv, "")

	newTestPrompter := func(stdin string) *prompter {
		c := &cobra.Command{}
		c.SetIn(strings.NewReader(stdin))
		c.SetErr(io.Discard)
		return newPrompter(c)
	}

	p, err := passphraseFor(newTestPrompter("hunter2\nhunter2\n"), true)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", p)

	_, err = passphraseFor(newTestPrompter("hunter2\nhunter3\n"), true)
	assert.Error(t, err)

	_, err = passphraseFor(newTestPrompter("\n"), false)
	assert.Error(t, err)

	t.Setenv(passphraseEnv, "from-env")
	p, err = passphraseFor(newTestPrompter(""), true)
	require.NoError(t, err)
	assert.Equal(t, "from-env", p)
}

func TestFormatEvent(t *testing.T) {
	line := formatEvent(event.PsbtEvent{
		Type:      event.TypeBroadcast,
		RecordID:  "psbt_1",
		Status:    "broadcast",
		Amount:    "0.10000000",
		Fee:       "250",
		TxID:      "ab12",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	assert.Equal(t, "2026-01-02T03:04:05Z  broadcast  psbt_1  status=broadcast amount=0.10000000 fee=250 txid=ab12", line)
}

func TestRecordIDIsPathEscaped(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"Success","data":` + recordJSON + `}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, "", "--server", srv.URL, "psbt", "sign", "../x?y=1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/psbt/..%2Fx%3Fy=1/sign", gotPath)
	assert.Empty(t, gotQuery)
}

func TestNodeUtxosAndBalance(t *testing.T) {
	srv := fakeServer(t, map[string]func([]byte) (int, string){
		"GET /api/v1/node/utxos": func([]byte) (int, string) {
			return http.StatusOK, `{"code":0,"msg":"Success","data":{"items":[{"txid":"aa","vout":1,"address":"bcrt1qa",` +
				`"amount":"0.50000000","amount_base_units":50000000,"confirmations":3}],"count":1,` +
				`"total_amount":"0.50000000","total_amount_base_units":50000000}}`
		},
		"GET /api/v1/node/balance": func([]byte) (int, string) {
			return http.StatusOK, `{"code":0,"msg":"Success","data":{"trusted":"1.50000000","trusted_base_units":150000000,` +
				`"untrusted_pending":"0.00000000","untrusted_pending_base_units":0,"immature":"0.00000000","immature_base_units":0}}`
		},
	})

	out, err := runCLI(t, "", "--server", srv.URL, "node", "utxos")
	require.NoError(t, err)
	assert.Contains(t, out, "aa:1")
	assert.Contains(t, out, "1 UTXO(s), total 0.50000000 BTC (50000000 sat)")

	out, err = runCLI(t, "", "--server", srv.URL, "node", "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "1.50000000 BTC (150000000 sat)")
}

// fakeRPCNode 只响应 getblockchaininfo，并要求指定的 basic auth
func fakeRPCNode(t *testing.T, user, pass string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		require.Equal(t, "getblockchaininfo", req.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": req.ID,
			"result": map[string]any{
				"chain": "regtest", "blocks": 150, "headers": 150,
				"bestblockhash": strings.Repeat("0a", 32),
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCredentialsCheckContactsNode(t *testing.T) {
	t.Setenv(passphraseEnv, "pass")
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := credential.NewFileStore(path, "pass",
		credential.WithScryptParams(crypto_util.ScryptParams{N: 1 << 10, R: 8, P: 1, DKLen: 32}))
	require.NoError(t, store.Save(credential.Credentials{Username: "rpcuser", Password: "rpcpass"}))

	node := fakeRPCNode(t, "rpcuser", "rpcpass")
	out, err := runCLI(t, "", "credentials", "check", "--path", path, "--node-host", node.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "rpcuser")
	assert.Contains(t, out, "regtest")
	assert.Contains(t, out, "150")

	// 可解密但节点不认这组凭证
	other := fakeRPCNode(t, "rpcuser", "rotated")
	_, err = runCLI(t, "", "credentials", "check", "--path", path, "--node-host", other.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
}
