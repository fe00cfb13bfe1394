// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tombee/wallman/internal/daemon/api"
	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/daemon/httputil"
	"github.com/tombee/wallman/internal/daemon/runtime"
)

// maxErrorBody caps how much of an error reply is read.
const maxErrorBody = 64 << 10

// Client is a client for the wallman control API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	socketPath string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, for example one pointed at an
// httptest server.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL overrides the request base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// New creates a client for the daemon listening on socketPath. An empty
// path means DefaultSocketPath().
func New(socketPath string, opts ...Option) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}
	c := &Client{
		baseURL:    "http://wallman",
		socketPath: socketPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: NewUnixTransport(socketPath)}
	}
	return c
}

// SocketPath returns the socket the client dials.
func (c *Client) SocketPath() string { return c.socketPath }

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Hint       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// ErrorType implements errors.ErrorClassifier.
func (e *APIError) ErrorType() string {
	if e.Type != "" {
		return e.Type
	}
	return "api"
}

// IsRetryable implements errors.ErrorClassifier.
func (e *APIError) IsRetryable() bool { return e.StatusCode >= 500 }

// IsUserVisible implements errors.UserVisibleError.
func (e *APIError) IsUserVisible() bool { return e.Message != "" }

// UserMessage implements errors.UserVisibleError.
func (e *APIError) UserMessage() string { return e.Message }

// Suggestion implements errors.UserVisibleError.
func (e *APIError) Suggestion() string { return e.Hint }

// Health returns the daemon health.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var health api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/v1/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Version returns the daemon build information.
func (c *Client) Version(ctx context.Context) (*api.VersionResponse, error) {
	var v api.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/version", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Status returns the runtime snapshot.
func (c *Client) Status(ctx context.Context) (*runtime.Status, error) {
	var st runtime.Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Reload asks the daemon to re-read its configuration. A rejected
// configuration is an *APIError with status 422.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/reload", nil)
}

// Shutdown asks the daemon to stop. It returns once the request is
// accepted, not when the daemon has exited.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/shutdown", nil)
}

// History returns up to limit recent apply attempts, newest first,
// optionally for one output.
func (c *Client) History(ctx context.Context, limit int, output string) ([]history.Entry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if output != "" {
		q.Set("output", output)
	}
	path := "/v1/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if notRunning(err) {
			return &DaemonNotRunningError{SocketPath: c.socketPath, Err: err}
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body httputil.ErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Type = body.Type
		apiErr.Hint = body.Suggestion
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
