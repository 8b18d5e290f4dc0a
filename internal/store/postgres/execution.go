package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agentplane/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// allowedPrev maps a target status to the statuses it may be reached from.
// Re-applying the current status is allowed so that duplicate delivery of a
// terminal transition stays a no-op (last write wins).
var allowedPrev = map[store.ExecutionStatus][]string{
	store.ExecutionStatusRunning:   {string(store.ExecutionStatusPending), string(store.ExecutionStatusRunning)},
	store.ExecutionStatusCompleted: {string(store.ExecutionStatusRunning), string(store.ExecutionStatusCompleted)},
	store.ExecutionStatusFailed:    {string(store.ExecutionStatusRunning), string(store.ExecutionStatusFailed)},
}

// CreateExecution inserts the initial pending state of a new execution.
func (s *Store) CreateExecution(ctx context.Context, tx store.DBTransaction, execution *store.Execution) error {
	executor := s.getExecutor(tx)

	if execution.Status == "" {
		execution.Status = store.ExecutionStatusPending
	}
	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	var input interface{}
	if execution.Input != nil {
		input = string(execution.Input)
	}

	_, err := executor.ExecContext(ctx, `
		INSERT INTO executions (id, module_id, org_id, task_id, input, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, execution.ID, execution.ModuleID, execution.OrgID, execution.TaskID, input, execution.Status, execution.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution %s: %w", execution.ID, err)
	}

	return nil
}

const executionColumns = "id, module_id, org_id, task_id, input, output, status, error, started_at, completed_at"

func scanExecution(row interface {
	Scan(dest ...interface{}) error
}) (*store.Execution, error) {
	var execution store.Execution
	var input, output sql.NullString

	err := row.Scan(
		&execution.ID, &execution.ModuleID, &execution.OrgID, &execution.TaskID,
		&input, &output, &execution.Status, &execution.Error,
		&execution.StartedAt, &execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if input.Valid {
		execution.Input = json.RawMessage(input.String)
	}
	if output.Valid {
		execution.Output = json.RawMessage(output.String)
	}
	return &execution, nil
}

// GetExecution returns an execution matching (id, orgID).
// The lookup always filters by org so a record can never leak across tenants.
func (s *Store) GetExecution(ctx context.Context, id, orgID uuid.UUID) (*store.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE id = $1 AND org_id = $2"

	execution, err := scanExecution(s.db.QueryRowContext(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	return execution, nil
}

// ListExecutionsByOrg returns the org's executions, most recent first.
func (s *Store) ListExecutionsByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]store.Execution, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + executionColumns + ` FROM executions
		WHERE org_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	return s.listExecutions(ctx, query, orgID, limit)
}

// ListExecutionsByModule returns the org's executions of one module, most recent first.
func (s *Store) ListExecutionsByModule(ctx context.Context, moduleID string, orgID uuid.UUID, limit int) ([]store.Execution, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + executionColumns + ` FROM executions
		WHERE module_id = $1 AND org_id = $2
		ORDER BY started_at DESC
		LIMIT $3`

	return s.listExecutions(ctx, query, moduleID, orgID, limit)
}

func (s *Store) listExecutions(ctx context.Context, query string, args ...interface{}) ([]store.Execution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []store.Execution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, *execution)
	}

	return executions, rows.Err()
}

// TransitionExecution moves an execution to a new status.
// It validates the lifecycle in the WHERE clause, so an out-of-order update
// simply matches zero rows; completed_at is set exactly when the status
// becomes terminal.
func (s *Store) TransitionExecution(ctx context.Context, id, orgID uuid.UUID, status store.ExecutionStatus, output json.RawMessage, errMsg *string) error {
	prev, ok := allowedPrev[status]
	if !ok {
		return fmt.Errorf("%w: cannot transition to %q", store.ErrInvalidTransition, status)
	}

	var outputArg interface{}
	if status == store.ExecutionStatusCompleted && output != nil {
		outputArg = string(output)
	}

	var errArg interface{}
	if status == store.ExecutionStatusFailed && errMsg != nil {
		errArg = *errMsg
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $3,
		    output = COALESCE($4, output),
		    error = COALESCE($5, error),
		    completed_at = CASE WHEN $3 IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		WHERE id = $1 AND org_id = $2 AND status = ANY($6)
	`, id, orgID, status, outputArg, errArg, pq.Array(prev))
	if err != nil {
		return fmt.Errorf("failed to transition execution %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: either the record does not exist for this org, or
	// its current status does not allow the transition.
	var current store.ExecutionStatus
	err = s.db.QueryRowContext(ctx,
		"SELECT status FROM executions WHERE id = $1 AND org_id = $2", id, orgID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, status)
}
