package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Cache implements driven.Cache in the cache_entries table.
// Expired rows are misses and are removed on read or by Prune.
type Cache struct {
	store *Store
	now   func() time.Time
}

var _ driven.Cache = (*Cache)(nil)

// Get returns the value for key if present and not expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt sql.NullInt64
	err := c.store.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM cache_entries WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	if expiresAt.Valid && c.now().UnixNano() >= expiresAt.Int64 {
		if _, err := c.store.db.ExecContext(ctx,
			"DELETE FROM cache_entries WHERE key = ? AND expires_at = ?", key, expiresAt.Int64); err != nil {
			return nil, false, fmt.Errorf("evicting cache entry: %w", err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = c.now().Add(ttl).UnixNano()
	}
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := c.store.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE instr(key, ?) = 1", prefix)
	if err != nil {
		return fmt.Errorf("deleting cache entries: %w", err)
	}
	return nil
}

// Prune removes expired entries and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	res, err := c.store.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?", c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close is a no-op; the Store owns the connection.
func (c *Cache) Close() error {
	return nil
}
