package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agentplane/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	cfg := Config{}
	cfg.applyDefaults()
	return &Store{db: db, cfg: cfg}, mock
}

func TestCreateExecution_Success(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	execution := &store.Execution{
		ID:       uuid.New(),
		ModuleID: "nlp",
		OrgID:    uuid.New(),
		Input:    json.RawMessage(`{"text":"hi"}`),
	}

	mock.ExpectExec(`INSERT INTO executions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store_.CreateExecution(ctx, nil, execution); err != nil {
		t.Fatalf("CreateExecution failed: %v", err)
	}

	if execution.Status != store.ExecutionStatusPending {
		t.Errorf("got status %q, want pending", execution.Status)
	}
	if execution.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetExecution_ScopedByOrg(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	executionID := uuid.New()
	orgID := uuid.New()
	started := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`SELECT .+ FROM executions WHERE id = \$1 AND org_id = \$2`).
		WithArgs(executionID, orgID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "module_id", "org_id", "task_id", "input", "output",
			"status", "error", "started_at", "completed_at",
		}).AddRow(
			executionID, "nlp", orgID, nil, `{"text":"hi"}`, nil,
			"running", nil, started, nil,
		))

	execution, err := store_.GetExecution(ctx, executionID, orgID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}

	if execution.ID != executionID {
		t.Errorf("got ID %v, want %v", execution.ID, executionID)
	}
	if execution.OrgID != orgID {
		t.Errorf("got OrgID %v, want %v", execution.OrgID, orgID)
	}
	if execution.Status != store.ExecutionStatusRunning {
		t.Errorf("got status %q, want running", execution.Status)
	}
	if string(execution.Input) != `{"text":"hi"}` {
		t.Errorf("got input %s", execution.Input)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetExecution_WrongOrgIsNotFound(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	executionID := uuid.New()
	otherOrg := uuid.New()

	// The record exists for another org; the scoped query matches nothing.
	mock.ExpectQuery(`SELECT .+ FROM executions WHERE id = \$1 AND org_id = \$2`).
		WithArgs(executionID, otherOrg).
		WillReturnError(sql.ErrNoRows)

	_, err := store_.GetExecution(ctx, executionID, otherOrg)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionExecution_Completed(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	executionID := uuid.New()
	orgID := uuid.New()
	output := json.RawMessage(`{"summary":"ok"}`)

	mock.ExpectExec(`UPDATE executions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store_.TransitionExecution(ctx, executionID, orgID, store.ExecutionStatusCompleted, output, nil)
	if err != nil {
		t.Fatalf("TransitionExecution failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransitionExecution_TerminalTwiceIsIdempotent(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	executionID := uuid.New()
	orgID := uuid.New()
	output := json.RawMessage(`{"summary":"ok"}`)

	// completed -> completed is in the allowed set, so both updates match a row.
	mock.ExpectExec(`UPDATE executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE executions`).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store_.TransitionExecution(ctx, executionID, orgID, store.ExecutionStatusCompleted, output, nil); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	if err := store_.TransitionExecution(ctx, executionID, orgID, store.ExecutionStatusCompleted, output, nil); err != nil {
		t.Fatalf("second transition failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransitionExecution_InvalidTransition(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	executionID := uuid.New()
	orgID := uuid.New()

	// pending -> completed skips running: the guarded update matches nothing
	// and the follow-up status read reveals why.
	mock.ExpectExec(`UPDATE executions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM executions WHERE id = \$1 AND org_id = \$2`).
		WithArgs(executionID, orgID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))

	err := store_.TransitionExecution(ctx, executionID, orgID, store.ExecutionStatusCompleted, nil, nil)
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionExecution_NotFound(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	executionID := uuid.New()
	orgID := uuid.New()

	mock.ExpectExec(`UPDATE executions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM executions`).
		WithArgs(executionID, orgID).
		WillReturnError(sql.ErrNoRows)

	err := store_.TransitionExecution(ctx, executionID, orgID, store.ExecutionStatusRunning, nil, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListExecutionsByModule_Scoped(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	ctx := context.Background()
	orgID := uuid.New()
	started := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM executions\s+WHERE module_id = \$1 AND org_id = \$2`).
		WithArgs("nlp", orgID, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "module_id", "org_id", "task_id", "input", "output",
			"status", "error", "started_at", "completed_at",
		}).AddRow(
			uuid.New(), "nlp", orgID, nil, nil, `{"summary":"ok"}`,
			"completed", nil, started, started,
		))

	executions, err := store_.ListExecutionsByModule(ctx, "nlp", orgID, 10)
	if err != nil {
		t.Fatalf("ListExecutionsByModule failed: %v", err)
	}
	if len(executions) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(executions))
	}
	if executions[0].Status != store.ExecutionStatusCompleted {
		t.Errorf("got status %q, want completed", executions[0].Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
