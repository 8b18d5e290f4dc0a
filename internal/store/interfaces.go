package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record matches the given id and org.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when an execution status change would
// violate the pending -> running -> {completed, failed} lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// OrgStore handles organizations and their API keys.
type OrgStore interface {
	// CreateOrg inserts a new org and its first API key in one transaction.
	CreateOrg(ctx context.Context, org *Org, key *APIKey) error

	// GetOrgByID returns an org by its ID.
	GetOrgByID(ctx context.Context, id uuid.UUID) (*Org, error)

	// GetOrgByAPIKeyHash returns the org owning the API key with the given hash.
	GetOrgByAPIKeyHash(ctx context.Context, hash string) (*Org, error)

	// GetAPIKeyByOrg returns the raw API key to present to the execution
	// backend for the given org.
	GetAPIKeyByOrg(ctx context.Context, orgID uuid.UUID) (string, error)
}

// ExecutionStore handles the persistence of execution records.
// Every lookup and update is scoped by org to enforce tenant isolation.
type ExecutionStore interface {
	// CreateExecution inserts the initial pending state of a new execution.
	CreateExecution(ctx context.Context, tx DBTransaction, execution *Execution) error

	// GetExecution returns an execution matching (id, orgID).
	GetExecution(ctx context.Context, id, orgID uuid.UUID) (*Execution, error)

	// ListExecutionsByOrg returns the org's executions, most recent first.
	ListExecutionsByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]Execution, error)

	// ListExecutionsByModule returns the org's executions of one module, most recent first.
	ListExecutionsByModule(ctx context.Context, moduleID string, orgID uuid.UUID, limit int) ([]Execution, error)

	// TransitionExecution moves an execution to a new status, setting
	// completed_at on terminal states, output on completed and error on
	// failed. Re-applying the current status is a no-op success so that
	// at-least-once redelivery cannot corrupt a record.
	TransitionExecution(ctx context.Context, id, orgID uuid.UUID, status ExecutionStatus, output json.RawMessage, errMsg *string) error
}
