package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// noopCache stores nothing. Writes succeed, reads miss.
type noopCache struct {
	log    zerolog.Logger
	closed atomic.Bool
}

var _ Cache = (*noopCache)(nil)

func newNoopCache() *noopCache {
	log := logger().With().Str("backend", "noop").Logger()
	log.Debug().Msg("noop cache created, base url will not survive restarts")
	return &noopCache{log: log}
}

func (c *noopCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.log.Debug().Str("key", key).Bool("hit", false).Msg("cache get")
	return nil, ErrNotFound
}

func (c *noopCache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.log.Debug().Str("key", key).Int("size", len(value)).Dur("ttl", ttl).Msg("cache set discarded")
	return nil
}

func (c *noopCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.log.Info().Msg("noop cache closed")
	return nil
}
