package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wallet-psbt/internal/handler/request"
	"wallet-psbt/internal/handler/response"
	"wallet-psbt/internal/model"

	"github.com/go-resty/resty/v2"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError wallet-server 返回的业务错误
type APIError struct {
	Status int
	Code   int
	Msg    string
	response.ErrorData
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (code %d, HTTP %d)", e.Msg, e.Code, e.Status)
	if e.RecordID != "" {
		fmt.Fprintf(&b, " record=%s", e.RecordID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, " method=%s", e.Method)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &apiClient{http: c}
}

// do 发送请求并解开 {code,msg,data}；path 中的 {id} 等占位符由 params 转义填充
func (c *apiClient) do(ctx context.Context, method, path string, params map[string]string, body any, out any) error {
	var env envelope
	req := c.http.R().
		SetContext(ctx).
		SetPathParams(params).
		SetResult(&env).
		SetError(&env)
	if body != nil {
		req.SetBody(body)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	if env.Code != 0 || res.StatusCode() != http.StatusOK {
		apiErr := &APIError{Status: res.StatusCode(), Code: env.Code, Msg: env.Msg}
		if apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(res.String())
		}
		_ = json.Unmarshal(env.Data, &apiErr.ErrorData)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *apiClient) CreatePsbt(ctx context.Context, in request.CreatePsbtRequest) (response.PsbtRecord, error) {
	var rec response.PsbtRecord
	err := c.do(ctx, http.MethodPost, "/api/v1/psbt", nil, in, &rec)
	return rec, err
}

func (c *apiClient) ListPsbts(ctx context.Context) ([]response.PsbtRecord, error) {
	var page struct {
		Items []response.PsbtRecord `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/psbt", nil, nil, &page)
	return page.Items, err
}

func (c *apiClient) GetPsbt(ctx context.Context, id string) (response.PsbtRecord, error) {
	var rec response.PsbtRecord
	err := c.do(ctx, http.MethodGet, "/api/v1/psbt/{id}", idParam(id), nil, &rec)
	return rec, err
}

func (c *apiClient) SignPsbt(ctx context.Context, id string) (response.PsbtRecord, error) {
	var rec response.PsbtRecord
	err := c.do(ctx, http.MethodPost, "/api/v1/psbt/{id}/sign", idParam(id), nil, &rec)
	return rec, err
}

func (c *apiClient) BroadcastPsbt(ctx context.Context, id string) (response.PsbtRecord, error) {
	var rec response.PsbtRecord
	err := c.do(ctx, http.MethodPost, "/api/v1/psbt/{id}/broadcast", idParam(id), nil, &rec)
	return rec, err
}

func (c *apiClient) RemovePsbt(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/psbt/{id}", idParam(id), nil, nil)
}

func (c *apiClient) NodeStatus(ctx context.Context) (model.ChainStatus, error) {
	var st model.ChainStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/node/status", nil, nil, &st)
	return st, err
}

func (c *apiClient) NodeUtxos(ctx context.Context) (response.UtxoList, error) {
	var list response.UtxoList
	err := c.do(ctx, http.MethodGet, "/api/v1/node/utxos", nil, nil, &list)
	return list, err
}

func (c *apiClient) NodeBalance(ctx context.Context) (response.Balance, error) {
	var b response.Balance
	err := c.do(ctx, http.MethodGet, "/api/v1/node/balance", nil, nil, &b)
	return b, err
}

func idParam(id string) map[string]string {
	return map[string]string{"id": id}
}
