package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client is a JSON-RPC 2.0 client bound to a single endpoint URL. It maps
// transport and protocol failures into classified *Error values; nothing
// above this layer looks at status codes or message text.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for one endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Endpoint returns the URL this client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call performs one JSON-RPC call and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, c.fail(KindFatal, method, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(KindFatal, method, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(transportKind(err), method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.fail(KindRateLimited, method, fmt.Errorf("http 429, retry-after %q", resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return nil, c.fail(KindConnection, method, fmt.Errorf("http %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, c.fail(KindFatal, method, fmt.Errorf("http %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(transportKind(err), method, fmt.Errorf("read response: %w", err))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, c.fail(KindFatal, method, fmt.Errorf("parse response: %w", err))
	}

	if rpcResp.Error != nil {
		return nil, c.fail(protocolKind(rpcResp.Error.Code), method,
			fmt.Errorf("code %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}

	return rpcResp.Result, nil
}

func (c *Client) fail(kind ErrorKind, method string, err error) *Error {
	return &Error{Kind: kind, Method: method, Endpoint: c.endpoint, Err: err}
}

func transportKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnection
}

// protocolKind maps JSON-RPC error codes. -32005 is the conventional
// rate-limit code; the -327xx/-326xx range is malformed-request territory
// and never worth retrying.
func protocolKind(code int) ErrorKind {
	switch code {
	case -32005:
		return KindRateLimited
	default:
		return KindFatal
	}
}
