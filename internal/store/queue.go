package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Queue defines the interface for the durable execution queue.
// Implementations must use SELECT ... FOR UPDATE SKIP LOCKED semantics so
// that a claimed item is held by at most one worker, and must make
// unacknowledged claims visible again after a visibility timeout
// (acknowledge-after-complete, not acknowledge-on-claim).
type Queue interface {
	// Enqueue adds a new execution to the queue.
	Enqueue(ctx context.Context, tx DBTransaction, executionID, orgID uuid.UUID, payload json.RawMessage, visibleAfter time.Time) (int64, error)

	// Dequeue claims up to 'limit' visible executions atomically, bumping
	// their attempt counter and pushing visible_after past the visibility
	// timeout. Returns nil slice if the queue is empty.
	Dequeue(ctx context.Context, limit int) ([]QueueItem, error)

	// Complete acknowledges an execution and removes it from the queue.
	Complete(ctx context.Context, tx DBTransaction, executionID uuid.UUID) error

	// Fail records a failed attempt. Transient failures are rescheduled
	// with exponential backoff until attempts are exhausted; permanent
	// failures and exhausted items are removed and the execution record is
	// marked failed with errMsg.
	Fail(ctx context.Context, tx DBTransaction, executionID uuid.UUID, errMsg string, permanent bool) error

	// SetVisibleAfter extends the visibility timeout (heartbeat).
	SetVisibleAfter(ctx context.Context, tx DBTransaction, executionID uuid.UUID, visibleAfter time.Time) error

	// Count tracks count of items in queue
	Count(ctx context.Context) (int64, error)
}

// QueueItem represents a dequeued execution from the queue.
type QueueItem struct {
	ExecutionID uuid.UUID
	OrgID       uuid.UUID
	Payload     json.RawMessage
	// Attempt is the number of times this item has been claimed, this
	// claim included.
	Attempt int
}
