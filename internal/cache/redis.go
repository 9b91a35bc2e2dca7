package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisCache implements Cache on top of a Redis server.
// Values are stored as plain strings so other tooling can read them.
type redisCache struct {
	client *redis.Client
	log    zerolog.Logger
	closed atomic.Bool
}

var (
	_ Cache  = (*redisCache)(nil)
	_ Pinger = (*redisCache)(nil)
)

func redisOptions(cfg *RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if u, ok := cfg.GetURLOption().Get(); ok {
		parsed, err := redis.ParseURL(u)
		if err != nil {
			return nil, fmt.Errorf("cache: invalid redis url: %w", err)
		}
		opts = parsed
	}

	opts.DialTimeout = msOrDefault(cfg.DialTimeoutMS, 3*time.Second)
	opts.ReadTimeout = msOrDefault(cfg.ReadTimeoutMS, time.Second)
	opts.WriteTimeout = msOrDefault(cfg.WriteTimeoutMS, time.Second)
	opts.PoolSize = 4
	opts.MinIdleConns = 1
	opts.ConnMaxIdleTime = 5 * time.Minute
	return opts, nil
}

// newRedisCache connects to Redis. An unreachable server is logged but not
// fatal: the client reconnects lazily and callers already tolerate errors.
func newRedisCache(ctx context.Context, cfg *RedisConfig) (*redisCache, error) {
	log := logger().With().Str("backend", "redis").Logger()

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("redis unreachable at startup, persistence degraded")
	} else {
		log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis cache connected")
	}

	return &redisCache{client: client, log: log}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug().Str("key", key).Bool("hit", false).Msg("cache get")
		return nil, ErrNotFound
	}
	if err != nil {
		r.log.Debug().Str("key", key).Err(err).Msg("cache get error")
		return nil, err
	}

	r.log.Debug().Str("key", key).Bool("hit", true).Int("size", len(value)).Msg("cache get")
	return value, nil
}

func (r *redisCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed.Load() {
		return ErrClosed
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Debug().Str("key", key).Dur("ttl", ttl).Err(err).Msg("cache set error")
		return err
	}

	r.log.Debug().Str("key", key).Int("size", len(value)).Dur("ttl", ttl).Msg("cache set")
	return nil
}

// Ping verifies the server answers.
func (r *redisCache) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	err := r.client.Close()
	if err != nil {
		r.log.Error().Err(err).Msg("redis cache close error")
		return err
	}
	r.log.Info().Msg("redis cache closed")
	return nil
}
