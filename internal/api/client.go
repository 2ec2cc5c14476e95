package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lhdbsbz/toolsel/internal/observability"
)

// Gateway management API paths.
const (
	PathTools       = "/api/tools"
	PathCurrent     = "/api/current"
	PathUpdate      = "/api/update"
	PathToggle      = "/api/tools/toggle"
	PathEnable      = "/api/tools/enable"
	PathDisable     = "/api/tools/disable"
	PathPresets     = "/api/presets"
	PathPresetsLoad = "/api/presets/load"
	PathHealth      = "/health"
)

const maxBodyBytes = 16 << 20

// Error is an application-level failure: the gateway answered, but not with success.
type Error struct {
	Method  string
	Path    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// IsRejected reports whether err is a gateway-side rejection rather than a transport failure.
func IsRejected(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

// Client talks to the gateway management API.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: normalizeBaseURL(baseURL),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway URL requests are sent to.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL re-points the client, e.g. after a config reload.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = normalizeBaseURL(baseURL)
}

// Timeout returns the per-request timeout. Zero means none.
func (c *Client) Timeout() time.Duration {
	return c.httpClient().Timeout
}

// SetTimeout changes the per-request timeout for requests started afterwards.
func (c *Client) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	hc := *c.http
	hc.Timeout = d
	c.http = &hc
}

func (c *Client) httpClient() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// ListTools fetches the full tool inventory grouped by provider.
func (c *Client) ListTools(ctx context.Context) (*ToolsResponse, error) {
	var resp ToolsResponse
	if err := c.call(ctx, http.MethodGet, PathTools, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, c.failure(http.MethodGet, PathTools, resp.Envelope, "Failed to load tools")
	}
	return &resp, nil
}

// ListPresets fetches the available presets. A nil slice means the gateway sent no list at all.
func (c *Client) ListPresets(ctx context.Context) ([]Preset, error) {
	var resp PresetsResponse
	if err := c.call(ctx, http.MethodGet, PathPresets, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, c.failure(http.MethodGet, PathPresets, resp.Envelope, "Failed to load presets")
	}
	return resp.Presets, nil
}

// LoadPreset asks the gateway to replace the enabled set with the named preset.
func (c *Client) LoadPreset(ctx context.Context, name string) error {
	var resp Envelope
	if err := c.call(ctx, http.MethodPost, PathPresetsLoad, PresetLoadRequest{Name: name}, &resp); err != nil {
		return err
	}
	if !resp.OK() {
		return c.failure(http.MethodPost, PathPresetsLoad, resp, "Failed to load preset "+name)
	}
	return nil
}

// UpdateTools replaces the enabled set. It is a full replace, not a merge.
func (c *Client) UpdateTools(ctx context.Context, tools []string) error {
	if tools == nil {
		tools = []string{}
	}
	var resp Envelope
	if err := c.call(ctx, http.MethodPost, PathUpdate, UpdateRequest{Tools: tools}, &resp); err != nil {
		return err
	}
	if !resp.OK() {
		return c.failure(http.MethodPost, PathUpdate, resp, "Failed to update tools")
	}
	return nil
}

// ToggleTool flips one tool and returns its new enabled state.
func (c *Client) ToggleTool(ctx context.Context, tool string) (bool, error) {
	return c.setTool(ctx, PathToggle, tool)
}

// EnableTool enables one tool.
func (c *Client) EnableTool(ctx context.Context, tool string) error {
	_, err := c.setTool(ctx, PathEnable, tool)
	return err
}

// DisableTool disables one tool.
func (c *Client) DisableTool(ctx context.Context, tool string) error {
	_, err := c.setTool(ctx, PathDisable, tool)
	return err
}

func (c *Client) setTool(ctx context.Context, path, tool string) (bool, error) {
	var resp ToggleResponse
	if err := c.call(ctx, http.MethodPost, path, ToolRequest{Tool: tool}, &resp); err != nil {
		return false, err
	}
	if !resp.OK() {
		return false, c.failure(http.MethodPost, path, resp.Envelope, "Failed to change tool "+tool)
	}
	return resp.Enabled, nil
}

// CurrentTools returns the gateway's enabled set.
// The endpoint is only treated as failed when it explicitly says so.
func (c *Client) CurrentTools(ctx context.Context) ([]string, error) {
	var resp CurrentResponse
	if err := c.call(ctx, http.MethodGet, PathCurrent, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Failed() {
		return nil, c.failure(http.MethodGet, PathCurrent, resp.Envelope, "Failed to read enabled tools")
	}
	return resp.Tools, nil
}

// Health returns the gateway health document as-is.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, http.MethodGet, PathHealth, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Do forwards a raw request and returns the raw response body and status.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	start := time.Now()
	data, status, err := c.do(ctx, method, path, body)
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeTransport
	}
	observability.RecordGatewayCall(method, path, outcome, time.Since(start))
	return data, status, err
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	start := time.Now()
	outcome := observability.OutcomeTransport
	defer func() {
		observability.RecordGatewayCall(method, path, outcome, time.Since(start))
	}()

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
	}

	data, status, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response (HTTP %d): %w", method, path, status, err)
	}
	outcome = observability.OutcomeOK
	if env, ok := envelopeOf(out); ok && env.Failed() {
		outcome = observability.OutcomeRejected
	} else if ok && env.Success == nil && status >= 400 {
		outcome = observability.OutcomeRejected
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) failure(method, path string, env Envelope, fallback string) *Error {
	msg := env.Error
	if msg == "" {
		msg = detailMessage(env.Detail)
	}
	if msg == "" {
		msg = fallback
	}
	return &Error{Method: method, Path: path, Message: msg}
}

// detailMessage extracts FastAPI's {"detail": "..."} error text.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func envelopeOf(v any) (Envelope, bool) {
	switch r := v.(type) {
	case *Envelope:
		return *r, true
	case *ToolsResponse:
		return r.Envelope, true
	case *PresetsResponse:
		return r.Envelope, true
	case *ToggleResponse:
		return r.Envelope, true
	case *CurrentResponse:
		return r.Envelope, true
	}
	return Envelope{}, false
}
