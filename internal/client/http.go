package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// HTTPClient implements ConfigReader and the write endpoints using the
// sitesync HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check that HTTPClient implements ConfigReader.
var _ ConfigReader = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// BaseURL returns the origin URL without a trailing slash.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Config ---

func (c *HTTPClient) GetConfig(ctx context.Context) (*model.Snapshot, error) {
	header, body, err := c.send(ctx, http.MethodGet, "/api/site-config", nil)
	if err != nil {
		return nil, err
	}
	snap := &model.Snapshot{Version: versionFrom(header), Epoch: epochFrom(header)}
	if err := json.Unmarshal(body, &snap.Config); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return snap, nil
}

func (c *HTTPClient) GetStylesheet(ctx context.Context) (string, int64, error) {
	header, body, err := c.send(ctx, http.MethodGet, "/api/site-config/css", nil)
	if err != nil {
		return "", 0, err
	}
	return string(body), versionFrom(header), nil
}

// SaveConfig posts a partial update. patch is marshaled as-is, so callers
// may pass a *model.Patch, a map, or a json.RawMessage.
func (c *HTTPClient) SaveConfig(ctx context.Context, patch any) (*SaveResult, error) {
	var resp SaveResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/site-config/save", patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Modules(ctx context.Context) (*ModuleCatalog, error) {
	var resp ModuleCatalog
	if err := c.doJSON(ctx, http.MethodGet, "/api/site-config/modules", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ToggleModule(ctx context.Context, key string) (*ToggleResult, error) {
	var resp ToggleResult
	path := "/api/site-config/modules/" + url.PathEscape(key) + "/toggle"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Webhooks ---

func (c *HTTPClient) Subscribe(ctx context.Context, callbackURL, secret string) (*Subscription, error) {
	body := map[string]string{"url": callbackURL, "secret": secret}
	var resp Subscription
	if err := c.doJSON(ctx, http.MethodPost, "/api/webhooks/subscribe", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Unsubscribe(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/webhooks/subscribe/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Subscribers(ctx context.Context) ([]SubscriberInfo, error) {
	var resp struct {
		Subscribers []SubscriberInfo `json:"subscribers"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/webhooks/subscribers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subscribers, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []model.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

func versionFrom(h http.Header) int64 {
	v, _ := strconv.ParseInt(h.Get("X-Config-Version"), 10, 64)
	return v
}

func epochFrom(h http.Header) int64 {
	v, _ := strconv.ParseInt(h.Get("X-Config-Epoch"), 10, 64)
	return v
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	_, respBody, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// send performs the request and returns the response headers and body of a
// successful response. Error statuses become *APIError.
func (c *HTTPClient) send(ctx context.Context, method, path string, body any) (http.Header, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return resp.Header, nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string             `json:"error"`
			Fields []model.FieldError `json:"fields"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Fields: errResp.Fields}
		}
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return resp.Header, respBody, nil
}
