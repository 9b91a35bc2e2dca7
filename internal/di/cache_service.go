package di

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/omarluq/enginesync/internal/cache"
)

const (
	// cacheInitTimeout bounds backend start-up.
	cacheInitTimeout = 30 * time.Second
	cachePingTimeout = 2 * time.Second
)

// CacheService wraps the durable cache.
type CacheService struct {
	Cache cache.Cache
}

// NewCache creates the cache for the configured mode.
func NewCache(i do.Injector) (*CacheService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	cache.SetLogger(logSvc.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), cacheInitTimeout)
	defer cancel()

	c, err := cache.New(ctx, &cfgSvc.Get().Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &CacheService{Cache: c}, nil
}

// Ping reports whether the cache backend answers within a short timeout.
func (c *CacheService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, cachePingTimeout)
	defer cancel()
	return cache.Ping(ctx, c.Cache)
}

// Shutdown implements do.Shutdowner.
func (c *CacheService) Shutdown() error {
	if c.Cache != nil {
		return c.Cache.Close()
	}
	return nil
}
