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

// Enqueue adds an execution to the execution_queue.
func (s *Store) Enqueue(ctx context.Context, tx store.DBTransaction, executionID, orgID uuid.UUID, payload json.RawMessage, visibleAfter time.Time) (int64, error) {
	if visibleAfter.IsZero() {
		visibleAfter = time.Now()
	}

	executor := s.getExecutor(tx)

	var id int64
	err := executor.QueryRowContext(ctx, `
		INSERT INTO execution_queue (execution_id, org_id, payload, visible_after)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, executionID, orgID, payload, visibleAfter).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue execution %s: %w", executionID, err)
	}

	return id, nil
}

// Dequeue claims up to 'limit' visible executions atomically using
// SELECT ... FOR UPDATE SKIP LOCKED. Claimed items have their attempt
// counter bumped and stay invisible for the visibility timeout; an item is
// only removed by Complete or a terminal Fail, so a crashed worker's claim
// is redelivered.
func (s *Store) Dequeue(ctx context.Context, limit int) ([]store.QueueItem, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, execution_id, org_id, payload, attempt + 1
		FROM execution_queue
		WHERE visible_after <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue query failed: %w", err)
	}
	defer rows.Close()

	var items []store.QueueItem
	var queueIDs []int64

	for rows.Next() {
		var queueID int64
		var item store.QueueItem
		if err := rows.Scan(&queueID, &item.ExecutionID, &item.OrgID, &item.Payload, &item.Attempt); err != nil {
			return nil, fmt.Errorf("dequeue scan failed: %w", err)
		}
		items = append(items, item)
		queueIDs = append(queueIDs, queueID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dequeue rows error: %w", err)
	}

	if len(items) == 0 {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE execution_queue
		SET attempt = attempt + 1,
		    visible_after = NOW() + ($1 * INTERVAL '1 second')
		WHERE id = ANY($2)
	`, s.cfg.VisibilityTimeout.Seconds(), pq.Array(queueIDs))
	if err != nil {
		return nil, fmt.Errorf("dequeue visibility update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return items, nil
}

// Complete acknowledges a finished execution and removes it from the queue.
func (s *Store) Complete(ctx context.Context, tx store.DBTransaction, executionID uuid.UUID) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, "DELETE FROM execution_queue WHERE execution_id = $1", executionID)
	if err != nil {
		return fmt.Errorf("failed to ack execution %s: %w", executionID, err)
	}
	return nil
}

// Fail handles a failed delivery attempt.
// Transient failures are rescheduled with exponential backoff; once attempts
// are exhausted, or when the failure is permanent, the item is removed and
// the execution record is marked failed with errMsg.
func (s *Store) Fail(ctx context.Context, tx store.DBTransaction, executionID uuid.UUID, errMsg string, permanent bool) error {
	executor := s.getExecutor(tx)

	var attempt int
	var orgID uuid.UUID
	err := executor.QueryRowContext(ctx,
		"SELECT attempt, org_id FROM execution_queue WHERE execution_id = $1", executionID,
	).Scan(&attempt, &orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already acked or removed; nothing to do.
			return nil
		}
		return err
	}

	if !permanent && attempt < s.cfg.MaxAttempts {
		backoff := retryBackoff(s.cfg.RetryBackoff, attempt)
		_, err = executor.ExecContext(ctx, `
			UPDATE execution_queue
			SET visible_after = NOW() + ($1 * INTERVAL '1 second')
			WHERE execution_id = $2
		`, backoff.Seconds(), executionID)
		if err != nil {
			return fmt.Errorf("failed to reschedule execution %s: %w", executionID, err)
		}
		return nil
	}

	// Permanent failure: remove from queue and record the last error.
	_, err = executor.ExecContext(ctx, "DELETE FROM execution_queue WHERE execution_id = $1", executionID)
	if err != nil {
		return fmt.Errorf("failed to delete failed execution from queue: %w", err)
	}

	_, err = executor.ExecContext(ctx, `
		UPDATE executions
		SET status = $1, error = $2, completed_at = NOW()
		WHERE id = $3 AND org_id = $4
	`, store.ExecutionStatusFailed, errMsg, executionID, orgID)
	if err != nil {
		return fmt.Errorf("failed to mark execution %s failed: %w", executionID, err)
	}
	return nil
}

// SetVisibleAfter extends the heartbeat.
func (s *Store) SetVisibleAfter(ctx context.Context, tx store.DBTransaction, executionID uuid.UUID, visibleAfter time.Time) error {
	executor := s.getExecutor(tx)
	_, err := executor.ExecContext(ctx, `
		UPDATE execution_queue
		SET visible_after = $1
		WHERE execution_id = $2
	`, visibleAfter, executionID)
	return err
}

// Count returns the number of items currently in the queue.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM execution_queue").Scan(&count)
	return count, err
}

// retryBackoff returns the delay before redelivering an item that has
// failed 'attempt' times: base * 2^(attempt-1), so 2s, 4s, 8s with the
// default base.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
