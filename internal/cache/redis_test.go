package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/enginesync/internal/cache"
)

func newRedisCache(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := cache.New(context.Background(), &cache.Config{
		Mode:  cache.ModeRedis,
		Redis: cache.RedisConfig{URL: "redis://" + mr.Addr() + "/0"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_SetWithTTLAndGet(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	err := c.SetWithTTL(ctx, cache.DefaultKey, []byte("https://engine.example.com"), 7*24*time.Hour)
	require.NoError(t, err)

	got, err := c.Get(ctx, cache.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "https://engine.example.com", string(got))

	raw, err := mr.Get(cache.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "https://engine.example.com", raw, "value is stored as a plain string")
	assert.Equal(t, 7*24*time.Hour, mr.TTL(cache.DefaultKey))
}

func TestRedisCache_ExpiredEntryIsNotFound(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestRedisCache_MissingKey(t *testing.T) {
	c, _ := newRedisCache(t)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestRedisCache_ServerErrorsSurface(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.SetError("ERR injected failure")

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, cache.ErrNotFound))

	err = c.SetWithTTL(context.Background(), "k", []byte("v"), time.Hour)
	assert.Error(t, err)
}

func TestRedisCache_Ping(t *testing.T) {
	c, mr := newRedisCache(t)

	_, ok := c.(cache.Pinger)
	require.True(t, ok, "redis cache implements Pinger")
	assert.NoError(t, cache.Ping(context.Background(), c))

	mr.Close()
	assert.Error(t, cache.Ping(context.Background(), c))
}

func TestRedisCache_UnreachableServerIsNotFatal(t *testing.T) {
	c, err := cache.New(context.Background(), &cache.Config{
		Mode:  cache.ModeRedis,
		Redis: cache.RedisConfig{Addr: "127.0.0.1:1", DialTimeoutMS: 50},
	})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestRedisCache_InvalidURL(t *testing.T) {
	_, err := cache.New(context.Background(), &cache.Config{
		Mode:  cache.ModeRedis,
		Redis: cache.RedisConfig{URL: "http://not-redis"},
	})
	assert.Error(t, err)
}

func TestRedisCache_ClosedOperations(t *testing.T) {
	c, _ := newRedisCache(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close is idempotent")

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, cache.ErrClosed)
	assert.ErrorIs(t, c.SetWithTTL(context.Background(), "k", nil, time.Second), cache.ErrClosed)
}
