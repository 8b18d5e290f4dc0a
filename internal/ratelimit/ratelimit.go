// Package ratelimit implements a fixed-window request limiter backed by a
// shared counter store, so the limit holds across controller instances.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// CounterStore increments a windowed counter and reports its value and
// remaining lifetime. The increment must be atomic with the limit check
// usage pattern: two concurrent requests must observe distinct counts.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the caller should wait before retrying.
	// Only set on deny.
	RetryAfter time.Duration
}

// Limiter applies a fixed-window limit per client identity.
// Bursts at window boundaries are accepted as a known approximation of a
// sliding window.
type Limiter struct {
	counters CounterStore
	logger   *slog.Logger
}

// New creates a limiter over the given counter store.
func New(counters CounterStore, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{counters: counters, logger: logger}
}

// Check counts a request for identity in the current window and decides
// whether to admit it. If the counter store is unreachable the request is
// allowed: availability wins over strict enforcement.
func (l *Limiter) Check(ctx context.Context, identity string, window time.Duration, maxRequests int64) Decision {
	count, ttl, err := l.counters.Incr(ctx, identity, window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, failing open", "error", err)
		return Decision{Allowed: true}
	}

	if count > maxRequests {
		retryAfter := ttl
		if retryAfter <= 0 {
			retryAfter = window
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true}
}
