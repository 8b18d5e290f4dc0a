// Package cache is a small Redis-backed read cache for API responses.
// Cache failures are logged and swallowed; the source of truth is the
// database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cache:"

const defaultTTL = 5 * time.Minute

// Cache wraps a Redis client with get/set/delete helpers.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a cache. ttl <= 0 uses the 5 minute default.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached value for key, or ok=false on miss or error.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return json.RawMessage(data), true
}

// Set stores value under key for the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value json.RawMessage) {
	if err := c.client.Set(ctx, keyPrefix+key, []byte(value), c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Delete removes key from the cache.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}
