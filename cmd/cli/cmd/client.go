package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentplane/pkg/api"
)

// AgentClient handles API calls to the agentplane controller.
type AgentClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewAgentClient creates a new client with the given base URL and token.
func NewAgentClient(baseURL, token string) *AgentClient {
	return &AgentClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *AgentClient) do(method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// CreateOrg sends POST /orgs to provision a new organization.
func (c *AgentClient) CreateOrg(req api.CreateOrgRequest) (*api.CreateOrgResponse, error) {
	var result api.CreateOrgResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("%s/orgs", c.BaseURL), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitExecution sends POST /executions to dispatch a module execution.
func (c *AgentClient) SubmitExecution(req api.SubmitExecutionRequest) (*api.SubmitExecutionResponse, error) {
	var result api.SubmitExecutionResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("%s/executions", c.BaseURL), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetExecution sends GET /executions/{id} to retrieve execution details.
func (c *AgentClient) GetExecution(executionID string) (*api.ExecutionResponse, error) {
	var result api.ExecutionResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("%s/executions/%s", c.BaseURL, executionID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListExecutions sends GET /executions, optionally narrowed to one module.
func (c *AgentClient) ListExecutions(moduleID string, limit int) ([]api.ExecutionResponse, error) {
	endpoint := fmt.Sprintf("%s/executions?limit=%d", c.BaseURL, limit)
	if moduleID != "" {
		endpoint += "&module_id=" + moduleID
	}

	var result api.ListExecutionsResponse
	if err := c.do(http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result.Executions, nil
}

// BackendHealth sends GET /health/backend to probe the agent backend.
func (c *AgentClient) BackendHealth() (*api.BackendHealthResponse, error) {
	var result api.BackendHealthResponse
	err := c.do(http.MethodGet, fmt.Sprintf("%s/health/backend", c.BaseURL), nil, &result)
	if err != nil {
		// A 502 still carries the health report.
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusBadGateway {
			if jsonErr := json.Unmarshal([]byte(apiErr.Message), &result); jsonErr == nil {
				return &result, nil
			}
		}
		return nil, err
	}
	return &result, nil
}
