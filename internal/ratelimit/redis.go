package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter counters away from other users of the same
// Redis instance (the result cache in particular).
const keyPrefix = "ratelimit:"

// RedisCounter implements CounterStore on Redis. INCR plus a first-write
// EXPIRE run in one pipeline, so concurrent requests each see their own
// count and the window TTL is set exactly once.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps an existing Redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr atomically increments the identity's counter for the current window
// and returns the post-increment count and remaining window time.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := keyPrefix + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	ttl := pipe.TTL(ctx, fullKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate limit counter unavailable: %w", err)
	}

	return incr.Val(), ttl.Val(), nil
}
