// Package cache provides the durable key/value store that lets the current
// inference-engine base URL survive process restarts.
//
// The package abstracts over four backends:
//   - Redis mode: external Redis server, the default durable store
//   - HA mode (Olric): embedded or clustered distributed map
//   - Single mode (Ristretto): local in-memory cache, for development and tests
//   - Disabled mode (Noop): nothing is stored, every read misses
//
// The cache is a persistence aid, never the system of record: callers treat
// every error as non-fatal.
//
// Basic usage:
//
//	c, err := cache.New(ctx, &cache.Config{
//		Mode:  cache.ModeRedis,
//		Redis: cache.RedisConfig{URL: "redis://localhost:6379/0"},
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	err = c.SetWithTTL(ctx, "InferenceEngine:BaseUrl", []byte(url), 7*24*time.Hour)
//
//	data, err := c.Get(ctx, "InferenceEngine:BaseUrl")
//	if errors.Is(err, cache.ErrNotFound) {
//		// expired or never written
//	}
package cache

import (
	"context"
	"time"
)

// Cache defines the operations the configuration store needs from a backend.
// All implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value.
	// Returns ErrNotFound if the key does not exist or has expired.
	// Returns ErrClosed if the cache has been closed.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores a value that expires after ttl.
	// Returns ErrClosed if the cache has been closed.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases backend resources. Close is idempotent.
	Close() error
}

// Pinger is implemented by backends that talk to a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that c can reach its backend. Local backends always succeed.
func Ping(ctx context.Context, c Cache) error {
	if p, ok := c.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
