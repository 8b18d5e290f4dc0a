// Package store contains the database layer for agentplane.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Org represents an organization in the multi-tenant system.
// All operations must be scoped by OrgID.
type Org struct {
	ID   uuid.UUID
	Name string
	// Requests per second allowed for this org. 0 means unlimited.
	RateLimit      int
	RateLimitBurst int
	CreatedAt      time.Time
}

// APIKey is an org-scoped credential. The raw key is forwarded to the
// execution backend; the hash is what inbound auth looks up.
type APIKey struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Key       string
	KeyHash   string
	CreatedAt time.Time
}

// Execution represents the persisted state of one agent execution.
type Execution struct {
	ID          uuid.UUID
	ModuleID    string
	OrgID       uuid.UUID
	TaskID      *string
	Input       json.RawMessage
	Output      json.RawMessage
	Status      ExecutionStatus
	Error       *string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// ExecutionStatus represents the state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}
