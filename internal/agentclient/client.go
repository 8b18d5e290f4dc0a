// Package agentclient calls the remote agent-execution backend over HTTP.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultExecuteTimeout = 60 * time.Second
	defaultHealthTimeout  = 5 * time.Second
)

// RemoteError is returned when an execution call fails before the backend
// produced a usable result: transport errors, timeouts, and non-2xx
// responses. StatusCode is 0 when no response was received.
type RemoteError struct {
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("agent execution failed: backend returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("agent execution failed: %v", e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying. Network errors,
// timeouts and 5xx responses are transient; a 4xx means the request itself
// is bad and no retry can fix it.
func (e *RemoteError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ExecuteRequest is one agent execution to perform remotely.
type ExecuteRequest struct {
	ModuleID    string          `json:"module_id"`
	OrgID       string          `json:"org_id"`
	TaskID      *string         `json:"task_id,omitempty"`
	InputData   json.RawMessage `json:"input_data"`
	ExecutionID string          `json:"execution_id"`
}

// ExecuteResult is the backend's report for one execution.
type ExecuteResult struct {
	ExecutionID string          `json:"execution_id"`
	Status      string          `json:"status"` // completed | failed | pending
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Health is the backend liveness report.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor is the part of the client the dispatcher depends on.
type Executor interface {
	Execute(ctx context.Context, apiKey string, req ExecuteRequest) (*ExecuteResult, error)
}

// Client talks to the agent execution backend. It is stateless and safe for
// concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	healthClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithExecuteTimeout overrides the 60s execution call timeout.
func WithExecuteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHealthTimeout overrides the 5s health probe timeout.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthClient.Timeout = d
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	// Ensure no trailing slash
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}

	c := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: defaultExecuteTimeout},
		healthClient: &http.Client{Timeout: defaultHealthTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute performs one synchronous execution call. The execution id is sent
// on every attempt so the backend can deduplicate retried deliveries.
func (c *Client) Execute(ctx context.Context, apiKey string, execReq ExecuteRequest) (*ExecuteResult, error) {
	body, err := json.Marshal(execReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RemoteError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(detail)),
		}
	}

	var result ExecuteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RemoteError{Err: fmt.Errorf("failed to decode backend response: %w", err)}
	}

	return &result, nil
}

// HealthCheck probes the backend. It never returns an error: on failure the
// report carries status "unhealthy" and the cause.
func (c *Client) HealthCheck(ctx context.Context) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{Status: "unhealthy", Error: err.Error()}
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return Health{Status: "unhealthy", Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{Status: "unhealthy", Error: fmt.Sprintf("backend returned status %d", resp.StatusCode)}
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{Status: "unhealthy", Error: err.Error()}
	}
	return health
}
