package cache_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/enginesync/internal/cache"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestOlricCache_EmbeddedRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded olric node")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := cache.New(ctx, &cache.Config{
		Mode: cache.ModeHA,
		Olric: cache.OlricConfig{
			Embedded: true,
			BindAddr: fmt.Sprintf("127.0.0.1:%d", freePort(t)),
			DMapName: "enginesync-test",
		},
	})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.SetWithTTL(ctx, cache.DefaultKey, []byte("https://engine.example.com"), time.Hour))

	got, err := c.Get(ctx, cache.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "https://engine.example.com", string(got))

	_, err = c.Get(ctx, "never-written")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	_, ok := c.(cache.Pinger)
	require.True(t, ok)
	assert.NoError(t, cache.Ping(ctx, c))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Get(ctx, cache.DefaultKey)
	assert.ErrorIs(t, err, cache.ErrClosed)
}

func TestOlricCache_ClientModeNeedsAddresses(t *testing.T) {
	_, err := cache.New(context.Background(), &cache.Config{
		Mode:  cache.ModeHA,
		Olric: cache.OlricConfig{},
	})
	require.Error(t, err)
}
