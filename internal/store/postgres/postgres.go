// Package postgres implements the store interfaces using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"agentplane/internal/store"

	_ "github.com/lib/pq"
)

// Config tunes the queue retry policy.
type Config struct {
	// MaxAttempts is the total number of delivery attempts per item.
	MaxAttempts int
	// RetryBackoff is the delay before the second attempt; it doubles on
	// every further attempt.
	RetryBackoff time.Duration
	// VisibilityTimeout is how long a claim stays invisible before an
	// unacknowledged item is redelivered.
	VisibilityTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 5 * time.Minute
	}
}

// Store provides PostgreSQL-backed implementations of all repositories.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New connects to PostgreSQL and returns a Store.
func New(ctx context.Context, databaseURL string, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	cfg.applyDefaults()
	return &Store{db: db, cfg: cfg}, nil
}

// DB exposes the underlying connection pool for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) getExecutor(tx store.DBTransaction) store.DBTransaction {
	if tx != nil {
		return tx
	}
	return s.db
}
