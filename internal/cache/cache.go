// Package cache provides the Redis-backed content-addressed normalization
// cache shared across scans.
//
// Entries are keyed by the raw-bytes SHA-256 of a file: norm:<hex> holds the
// canonicalized text, tokens:<hex> the JSON-serialized token sequence. The
// cache is best effort; the scoring worker treats a missing entry as a fatal
// for that pair, and the normalizer re-creates entries on the next upload of
// the same content.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrMissing is returned by Get when the key is not present.
var ErrMissing = errors.New("cache entry missing")

// NormKey returns the cache key of the canonicalized text for a checksum.
func NormKey(checksum string) string {
	return "norm:" + checksum
}

// TokensKey returns the cache key of the token sequence for a checksum.
func TokensKey(checksum string) string {
	return "tokens:" + checksum
}

// Cache wraps the Redis client used by the normalizer and scoring workers.
type Cache struct {
	client *redis.Client
}

// New creates a Cache from a redis URL (redis://host:port/db).
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return &Cache{client: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the bytes stored under key, or ErrMissing.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMissing
	}

	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	return data, nil
}

// Set stores bytes under key with no TTL. Concurrent writers of the same
// checksum write identical content, so last-write-wins is benign.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	return nil
}

// Has reports whether every given key is present.
func (c *Cache) Has(ctx context.Context, keys ...string) (bool, error) {
	n, err := c.client.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}

	return n == int64(len(keys)), nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
