// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import (
	"encoding/json"
	"time"
)

// CreateOrgRequest is the request body for provisioning a new organization.
type CreateOrgRequest struct {
	Name string `json:"name"`
}

// CreateOrgResponse is the response body after provisioning an organization.
// ApiKey is returned exactly once; only its hash is stored.
type CreateOrgResponse struct {
	ID     string `json:"org_id"`
	Name   string `json:"name"`
	ApiKey string `json:"api_key"`
}

// SubmitExecutionRequest is the request body for dispatching a module execution.
type SubmitExecutionRequest struct {
	ModuleID  string          `json:"module_id"`
	TaskID    *string         `json:"task_id,omitempty"`
	InputData json.RawMessage `json:"input_data,omitempty"`
}

// SubmitExecutionResponse is the response body after an execution is accepted.
type SubmitExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// ExecutionResponse represents an execution record in API responses.
type ExecutionResponse struct {
	ID          string          `json:"id"`
	ModuleID    string          `json:"module_id"`
	TaskID      *string         `json:"task_id,omitempty"`
	Status      string          `json:"status"`
	InputData   json.RawMessage `json:"input_data,omitempty"`
	OutputData  json.RawMessage `json:"output_data,omitempty"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ListExecutionsResponse is the response body for execution list queries.
type ListExecutionsResponse struct {
	Executions []ExecutionResponse `json:"executions"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RateLimitedResponse is returned with a 429 when a client exceeds its window.
type RateLimitedResponse struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// BackendHealthResponse reports the reachability of the agent backend.
type BackendHealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Error   string `json:"error,omitempty"`
}
