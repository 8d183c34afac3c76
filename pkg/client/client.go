package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to the host control surface and dials its bridge
type Client struct {
	baseURL         string
	httpClient      *http.Client
	headers         http.Header
	websocketDialer *websocket.Dialer
	timeout         time.Duration
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithTimeout sets the request and handshake timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithHeaders sets additional HTTP headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithHTTPClient replaces the HTTP client, for tests
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the host at baseURL (http://host:port)
func New(baseURL string, options ...ClientOption) *Client {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	client := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		headers:         headers,
		websocketDialer: websocket.DefaultDialer,
		timeout:         10 * time.Second,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// MenuItem is one entry of the host menu
type MenuItem struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Menu        string `json:"menu"`
	Accelerator string `json:"accelerator,omitempty"`
}

// Health reports host liveness
type Health struct {
	Status string `json:"status"`
	Window bool   `json:"window"`
}

// APIError is a non-2xx reply from the host
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): [%s] %s: %s", e.StatusCode, e.Type, e.Code, e.Message)
}

// Health fetches /healthz
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Menu lists the host menu items in display order
func (c *Client) Menu(ctx context.Context) ([]MenuItem, error) {
	var resp struct {
		Items []MenuItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/menu", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Trigger runs a menu item by ID
func (c *Client) Trigger(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodPost, "/menu/"+url.PathEscape(itemID), nil, nil)
}

// TriggerAccelerator runs the menu item bound to a key combination
func (c *Client) TriggerAccelerator(ctx context.Context, accel string) error {
	body := map[string]string{"accelerator": accel}
	return c.do(ctx, http.MethodPost, "/accelerator", body, nil)
}

// Recent lists recent documents, most recent first
func (c *Client) Recent(ctx context.Context) ([]string, error) {
	var resp struct {
		Documents []string `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/recent", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// OpenRecent re-opens a recent document in the window
func (c *Client) OpenRecent(ctx context.Context, path string) error {
	body := map[string]string{"path": path}
	return c.do(ctx, http.MethodPost, "/recent/open", body, nil)
}

// Dial opens the bridge websocket. The host accepts one window at a time;
// a second dial fails with an *APIError carrying 409.
func (c *Client) Dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/bridge"

	dialer := *c.websocketDialer
	dialer.HandshakeTimeout = c.timeout

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if apiErr := decodeError(resp); apiErr != nil {
				return nil, apiErr
			}
		}
		return nil, fmt.Errorf("failed to dial bridge: %w", err)
	}
	return conn, nil
}

// do sends a request and decodes the data field of the response envelope
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if apiErr := decodeError(resp); apiErr != nil {
			return apiErr
		}
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// decodeError reads the error field of a failed response, if there is one
func decodeError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == nil {
		return nil
	}
	envelope.Error.StatusCode = resp.StatusCode
	return envelope.Error
}
