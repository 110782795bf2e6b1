// Package redis provides a driven.Cache backed by a Redis server.
//
// Keys are stored under a namespace prefix so a shared Redis can hold
// other data. Expiry is delegated to Redis TTLs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// DefaultNamespace prefixes every key written by the cache.
const DefaultNamespace = "coursemind:"

// scanCount is the COUNT hint for SCAN during prefix deletes.
const scanCount = 500

// Ensure Cache implements the interface.
var _ driven.Cache = (*Cache)(nil)

// Cache implements driven.Cache on Redis.
type Cache struct {
	client    goredis.UniversalClient
	namespace string
}

// Option configures a Cache.
type Option func(*Cache)

// WithNamespace overrides the key namespace.
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		c.namespace = ns
	}
}

// New connects to the Redis server at url (redis://host:port/db) and
// verifies the connection with PING.
func New(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	options, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	options.DialTimeout = 5 * time.Second
	options.ReadTimeout = 5 * time.Second
	options.WriteTimeout = 5 * time.Second

	c := NewWithClient(goredis.NewClient(options), opts...)
	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return c, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores value under key. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix using SCAN, so it
// never blocks the server the way KEYS does.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := escapeGlob(c.namespace+prefix) + "*"
	iter := c.client.Scan(ctx, 0, pattern, scanCount).Iterator()

	batch := make([]string, 0, scanCount)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return flush()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// escapeGlob escapes the characters Redis MATCH treats as wildcards.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
