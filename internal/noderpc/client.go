// Package noderpc is a JSON-RPC 1.0 client for a bitcoind-style wallet node.
//
// Call handles transport, authentication and the response envelope. The
// typed methods in methods.go decode each result into a schema-checked
// struct, so nothing untyped reaches the caller.
package noderpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"wallet-psbt/pkg/errno"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config holds the connection parameters for the node's JSON-RPC interface.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Wallet   string // optional, selects /wallet/<name>
	Timeout  time.Duration
}

// Endpoint returns the URL requests are posted to.
func (c Config) Endpoint() string {
	host := c.Host
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return host
	}
	if c.Port > 0 && u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(c.Port))
	}
	if c.Wallet != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/wallet/" + url.PathEscape(c.Wallet)
	}
	return u.String()
}

// Observer is notified after every call; used for metrics.
type Observer func(method string, elapsed time.Duration, err error)

// Client talks to one node endpoint. It is safe for concurrent use.
type Client struct {
	endpoint string
	rest     *resty.Client
	hc       *http.Client
	nextID   atomic.Int64
	log      *zap.Logger
	observe  Observer
}

// Option customises a Client.
type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// WithHTTPClient replaces the underlying http.Client (transport, proxies).
// Config.Timeout still applies.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.hc = h }
}

// New creates a client. Basic auth is sent when User is non-empty.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		endpoint: cfg.Endpoint(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		}
	}

	c.rest = resty.NewWithClient(c.hc).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetLogger(c.log.Named("resty").Sugar())
	if cfg.User != "" {
		c.rest.SetBasicAuth(cfg.User, cfg.Password)
	}
	return c
}

// Endpoint reports the URL the client posts to. Credentials are never part of it.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is the error object a node returns, e.g. -26 "txn-mempool-conflict".
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("code=%d msg=%s", e.Code, e.Message)
}

// Call invokes method and decodes the result into result.
//
// Failures are classified as errno kinds: RpcTimeout when the context or
// transport deadline expires, RpcConnectionFailure for transport and HTTP
// failures, RpcError when the node answers with an error object, and
// SchemaMismatch when the envelope or result cannot be decoded. A null
// result is a SchemaMismatch unless result is nil.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) (err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if c.observe != nil {
			c.observe(method, elapsed, err)
		}
		if err != nil {
			c.log.Debug("node rpc failed", zap.String("method", method), zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			c.log.Debug("node rpc", zap.String("method", method), zap.Duration("elapsed", elapsed))
		}
	}()

	if params == nil {
		params = []any{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return errno.Wrap(errno.InternalServerError, fmt.Errorf("marshal request: %w", err)).WithMethod(method)
	}

	// result 和 error 共用同一个 envelope, 节点对 RPC 错误返回 HTTP 500
	var rpcResp rpcResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		ForceContentType("application/json").
		SetResult(&rpcResp).
		SetError(&rpcResp).
		Post(c.endpoint)
	if err != nil {
		if res == nil || res.RawResponse == nil || ctx.Err() != nil || !isDecodeError(err) {
			return classifyTransport(ctx, method, err)
		}
		return errno.Wrap(errno.SchemaMismatch, fmt.Errorf("decode response: %w", err)).WithMethod(method)
	}

	if !res.IsSuccess() {
		if rpcResp.Error != nil {
			return errno.Wrap(errno.RpcError, rpcResp.Error).WithMethod(method)
		}
		if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
			return errno.New(errno.RpcConnectionFailure).WithMethod(method).
				WithDetail(fmt.Sprintf("HTTP %d: authentication failed", res.StatusCode()))
		}
		return errno.New(errno.RpcConnectionFailure).WithMethod(method).
			WithDetail(fmt.Sprintf("HTTP %d: %s", res.StatusCode(), truncate(res.String(), 200)))
	}

	if want := strconv.FormatInt(reqBody.ID, 10); strings.Trim(string(rpcResp.ID), `"`) != want {
		return errno.New(errno.SchemaMismatch).WithMethod(method).
			WithDetail(fmt.Sprintf("response id mismatch: expected %s, got %s", want, rpcResp.ID))
	}

	if rpcResp.Error != nil {
		return errno.Wrap(errno.RpcError, rpcResp.Error).WithMethod(method)
	}

	if result == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return errno.New(errno.SchemaMismatch).WithMethod(method).WithDetail("unexpected null result")
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return errno.Wrap(errno.SchemaMismatch, fmt.Errorf("unmarshal result: %w", err)).WithMethod(method)
	}
	return nil
}

func classifyTransport(ctx context.Context, method string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return errno.Wrap(errno.RpcTimeout, err).WithMethod(method)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errno.Wrap(errno.RpcTimeout, err).WithMethod(method)
	}
	return errno.Wrap(errno.RpcConnectionFailure, err).WithMethod(method)
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
