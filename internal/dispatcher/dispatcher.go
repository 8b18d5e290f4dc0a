// Package dispatcher decouples "request an execution" from "perform an
// execution". It owns the durable queue handle and a bounded worker pool
// that calls the remote execution backend and records terminal state.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agentplane/internal/agentclient"
	"agentplane/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Job is a unit of work submitted to the queue. It is immutable once
// enqueued; InputData is passed through to the backend untouched.
type Job struct {
	ModuleID    string          `json:"module_id"`
	OrgID       uuid.UUID       `json:"org_id"`
	TaskID      *string         `json:"task_id,omitempty"`
	InputData   json.RawMessage `json:"input_data"`
	ExecutionID uuid.UUID       `json:"execution_id"`
}

// queuePayload wraps the job with the submitter's trace context.
type queuePayload struct {
	Job   Job                    `json:"job"`
	Trace propagation.MapCarrier `json:"trace,omitempty"`
}

// Config holds configuration for the dispatcher.
type Config struct {
	// Concurrency bounds the number of in-flight backend calls (default: 5).
	Concurrency int
	// PollInterval is the minimum delay between queue polls (default: 1s).
	PollInterval time.Duration
	// MaxBackoff caps the poll delay when the queue is empty (default: 30s).
	MaxBackoff time.Duration
}

// Dispatcher runs the pull-loop for agent executions.
type Dispatcher struct {
	queue  store.Queue
	execs  store.ExecutionStore
	orgs   store.OrgStore
	client agentclient.Executor
	config Config
	logger *slog.Logger
	done   chan struct{}
}

// New creates a dispatcher. It does not start workers; call Run.
func New(q store.Queue, execs store.ExecutionStore, orgs store.OrgStore, client agentclient.Executor, config Config, logger *slog.Logger) *Dispatcher {
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		queue:  q,
		execs:  execs,
		orgs:   orgs,
		client: client,
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Submit appends the job to the durable queue. The caller must have created
// the pending execution record first; passing its transaction makes record
// and queue entry land atomically. Submission never waits on execution.
func (d *Dispatcher) Submit(ctx context.Context, tx store.DBTransaction, job Job) error {
	if job.ExecutionID == uuid.Nil {
		return errors.New("job has no execution id")
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	payload, err := json.Marshal(queuePayload{Job: job, Trace: carrier})
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}

	if _, err := d.queue.Enqueue(ctx, tx, job.ExecutionID, job.OrgID, payload, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// Run starts the main pull-loop. It blocks until the context is cancelled.
// On shutdown it stops claiming new work and lets in-flight executions finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher starting", "concurrency", d.config.Concurrency)

	// Semaphore to limit concurrency
	sem := make(chan struct{}, d.config.Concurrency)
	var wg sync.WaitGroup

	// Channel to signal when a slot becomes available (adaptive polling)
	pollNow := make(chan struct{}, 1)

	// Current backoff duration (increases on empty queue, resets on work found)
	currentBackoff := d.config.PollInterval

	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
			// Already a poll pending
		}
	}

	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("context cancelled, waiting for running executions to finish")
			wg.Wait()
			close(d.done)
			return ctx.Err()

		case <-time.After(currentBackoff):
			triggerPoll()

		case <-pollNow:
			availableSlots := d.config.Concurrency - len(sem)
			if availableSlots <= 0 {
				continue
			}

			items, err := d.queue.Dequeue(ctx, availableSlots)
			if err != nil {
				d.logger.Error("dequeue failed", "error", err)
				continue
			}

			if len(items) == 0 {
				// Empty queue - increase backoff (exponential, capped at MaxBackoff)
				currentBackoff = currentBackoff * 2
				if currentBackoff > d.config.MaxBackoff {
					currentBackoff = d.config.MaxBackoff
				}
				continue
			}

			// Found work - reset backoff to minimum
			currentBackoff = d.config.PollInterval

			for _, item := range items {
				sem <- struct{}{}

				wg.Add(1)
				go func(item store.QueueItem) {
					defer wg.Done()
					defer func() {
						<-sem
						// Slot freed - trigger immediate re-poll
						triggerPoll()
					}()
					d.processItem(ctx, item)
				}(item)
			}

			if len(items) < availableSlots {
				triggerPoll()
			}
		}
	}
}

// Done returns a channel that is closed when the dispatcher has fully stopped.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// processItem runs one claimed execution through the backend and records the
// outcome. Every failure path ends in a scheduled retry or a terminal failed
// record; nothing escapes to the worker loop.
func (d *Dispatcher) processItem(ctx context.Context, item store.QueueItem) {
	var wrapper queuePayload
	if err := json.Unmarshal(item.Payload, &wrapper); err != nil {
		d.logger.Error("invalid queue payload", "execution_id", item.ExecutionID, "error", err)
		d.fail(item.ExecutionID, fmt.Sprintf("invalid payload: %v", err), true)
		return
	}
	job := wrapper.Job

	traceCtx := ctx
	if wrapper.Trace != nil {
		traceCtx = otel.GetTextMapPropagator().Extract(ctx, wrapper.Trace)
	}

	tracer := otel.Tracer("dispatcher")
	spanCtx, span := tracer.Start(traceCtx, "process_execution",
		trace.WithAttributes(
			attribute.String("execution.id", item.ExecutionID.String()),
			attribute.String("module.id", job.ModuleID),
			attribute.String("org.id", job.OrgID.String()),
			attribute.Int("attempt", item.Attempt),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	logger := d.logger.With("execution_id", item.ExecutionID, "module_id", job.ModuleID, "attempt", item.Attempt)
	logger.Info("processing execution")

	// Mark the record running. A missing record is fatal for the job: no
	// retry can bring it back, so drop the item.
	err := d.execs.TransitionExecution(spanCtx, item.ExecutionID, job.OrgID, store.ExecutionStatusRunning, nil, nil)
	if errors.Is(err, store.ErrNotFound) {
		logger.Error("execution record missing, dropping job")
		span.RecordError(err)
		d.ack(item.ExecutionID)
		return
	}
	if err != nil {
		logger.Error("failed to mark execution running", "error", err)
		span.RecordError(err)
		d.fail(item.ExecutionID, err.Error(), false)
		return
	}

	// The backend authenticates per org.
	apiKey, err := d.orgs.GetAPIKeyByOrg(spanCtx, job.OrgID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, store.ErrNotFound) {
			logger.Error("no API key configured for org")
			d.fail(item.ExecutionID, "no API key configured", true)
		} else {
			logger.Error("failed to load API key", "error", err)
			d.fail(item.ExecutionID, err.Error(), false)
		}
		return
	}

	result, err := d.client.Execute(spanCtx, apiKey, agentclient.ExecuteRequest{
		ModuleID:    job.ModuleID,
		OrgID:       job.OrgID.String(),
		TaskID:      job.TaskID,
		InputData:   job.InputData,
		ExecutionID: item.ExecutionID.String(),
	})
	if err != nil {
		span.RecordError(err)

		permanent := false
		var remoteErr *agentclient.RemoteError
		if errors.As(err, &remoteErr) && !remoteErr.Transient() {
			permanent = true
		}

		if permanent {
			logger.Error("backend rejected execution", "error", err)
		} else {
			logger.Warn("backend call failed, will retry", "error", err)
		}
		d.fail(item.ExecutionID, err.Error(), permanent)
		return
	}

	span.SetAttributes(attribute.String("result.status", result.Status))

	// The backend reported a result: record it and ack. A business failure
	// reported by the backend is terminal, not retried.
	if result.Status == "completed" {
		err = d.execs.TransitionExecution(spanCtx, item.ExecutionID, job.OrgID, store.ExecutionStatusCompleted, result.Output, nil)
	} else {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("agent reported status %q", result.Status)
		}
		err = d.execs.TransitionExecution(spanCtx, item.ExecutionID, job.OrgID, store.ExecutionStatusFailed, nil, &msg)
	}
	if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		// Could not persist the outcome; leave the item for redelivery.
		// The backend may run the execution again - at-least-once.
		logger.Error("failed to record result", "error", err)
		span.RecordError(err)
		d.fail(item.ExecutionID, err.Error(), false)
		return
	}

	logger.Info("execution finished", "status", result.Status)
	d.ack(item.ExecutionID)
}

// ack and fail use a fresh context so bookkeeping survives shutdown of the
// poll context while an execution is draining.

func (d *Dispatcher) ack(executionID uuid.UUID) {
	if err := d.queue.Complete(context.Background(), nil, executionID); err != nil {
		d.logger.Error("failed to ack execution", "execution_id", executionID, "error", err)
	}
}

func (d *Dispatcher) fail(executionID uuid.UUID, errMsg string, permanent bool) {
	if err := d.queue.Fail(context.Background(), nil, executionID, errMsg, permanent); err != nil {
		d.logger.Error("failed to record execution failure", "execution_id", executionID, "error", err)
	}
}
