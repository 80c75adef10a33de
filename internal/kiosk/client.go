package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BrandonDHaskell/Turnstile/internal/httpapi"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// Client talks to the access server as one provisioned terminal.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
}

func NewClient(baseURL, terminalID, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    httpapi.EncodeTerminalAuth(terminalID, secret),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Check returns the server's decision. Every status the server answers
// with carries a CheckResponse; only transport failures and unreadable
// bodies are errors.
func (c *Client) Check(ctx context.Context, cardUID string) (types.CheckResponse, error) {
	var out types.CheckResponse
	status, err := c.post(ctx, "/access/check", types.CheckRequest{CardUID: cardUID}, &out)
	if err != nil {
		return types.CheckResponse{}, err
	}
	if out.Result == "" {
		return types.CheckResponse{}, fmt.Errorf("access check: empty result (status %d)", status)
	}
	return out, nil
}

func (c *Client) Heartbeat(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	var out types.HeartbeatResponse
	status, err := c.post(ctx, "/v1/terminals/heartbeat", req, &out)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}
	if status != http.StatusOK || !out.OK {
		return types.HeartbeatResponse{}, fmt.Errorf("heartbeat: status %d", status)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Terminal-Auth", c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("post %s: decode (status %d): %w", path, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
