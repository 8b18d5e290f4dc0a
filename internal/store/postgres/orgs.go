package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agentplane/internal/store"

	"github.com/google/uuid"
)

// CreateOrg inserts a new org and its first API key in one transaction.
func (s *Store) CreateOrg(ctx context.Context, org *store.Org, key *store.APIKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orgs (id, name, rate_limit, rate_limit_burst, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, org.ID, org.Name, org.RateLimit, org.RateLimitBurst, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create org: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO api_keys (id, org_id, key, key_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, key.ID, key.OrgID, key.Key, key.KeyHash, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return tx.Commit()
}

// GetOrgByID returns an org by its ID.
func (s *Store) GetOrgByID(ctx context.Context, id uuid.UUID) (*store.Org, error) {
	return s.scanOrg(s.db.QueryRowContext(ctx, `
		SELECT id, name, rate_limit, rate_limit_burst, created_at
		FROM orgs WHERE id = $1
	`, id))
}

// GetOrgByAPIKeyHash returns the org owning the API key with the given hash.
func (s *Store) GetOrgByAPIKeyHash(ctx context.Context, hash string) (*store.Org, error) {
	return s.scanOrg(s.db.QueryRowContext(ctx, `
		SELECT o.id, o.name, o.rate_limit, o.rate_limit_burst, o.created_at
		FROM orgs o
		JOIN api_keys k ON k.org_id = o.id
		WHERE k.key_hash = $1
	`, hash))
}

// GetAPIKeyByOrg returns the org's raw API key for the execution backend.
// The oldest key wins when an org has several.
func (s *Store) GetAPIKeyByOrg(ctx context.Context, orgID uuid.UUID) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `
		SELECT key FROM api_keys
		WHERE org_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, orgID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) scanOrg(row *sql.Row) (*store.Org, error) {
	var org store.Org
	err := row.Scan(&org.ID, &org.Name, &org.RateLimit, &org.RateLimitBurst, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}
