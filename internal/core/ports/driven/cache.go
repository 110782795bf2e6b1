package driven

import (
	"context"
	"time"
)

// Cache is a key-value store with expiry.
// Entries are an optimisation only: any miss can be recomputed.
type Cache interface {
	// Get returns the value and true on a hit.
	// Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases resources.
	Close() error
}
