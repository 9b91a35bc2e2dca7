package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/olric-data/olric"
	olricconfig "github.com/olric-data/olric/config"
	"github.com/rs/zerolog"
)

const (
	defaultDMapName = "enginesync"

	// olricStartTimeout bounds how long an embedded node may take to join.
	olricStartTimeout = 10 * time.Second

	// pingKey is read by Ping; a miss proves the map answers.
	pingKey = "__enginesync_ping__"
)

// olricCache keeps the base URL in an Olric distributed map so that every
// replica of a service shares one persisted value.
type olricCache struct {
	dmap olric.DMap
	// shutdown stops whatever owns the map: the embedded node or the
	// cluster client.
	shutdown func(context.Context) error
	log      zerolog.Logger
	mu       sync.RWMutex
	closed   bool
}

var (
	_ Cache  = (*olricCache)(nil)
	_ Pinger = (*olricCache)(nil)
)

// parseBindAddr splits "host:port". A missing or bad port yields 0, which
// leaves olric's default in place.
func parseBindAddr(addr string) (host string, port int) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	if port, err = strconv.Atoi(p); err != nil {
		return h, 0
	}
	return h, port
}

func newOlricCache(ctx context.Context, cfg *OlricConfig) (*olricCache, error) {
	dmapName := cfg.DMapName
	if dmapName == "" {
		dmapName = defaultDMapName
	}
	lg := logger().With().Str("backend", "olric").Str("dmap", dmapName).Logger()

	var (
		client   olric.Client
		shutdown func(context.Context) error
		err      error
	)
	if cfg.Embedded {
		client, shutdown, err = startOlricNode(ctx, cfg)
	} else {
		client, shutdown, err = dialOlricCluster(cfg)
	}
	if err != nil {
		lg.Error().Err(err).Bool("embedded", cfg.Embedded).Msg("olric backend unavailable")
		return nil, err
	}

	dm, err := client.NewDMap(dmapName)
	if err != nil {
		if stopErr := shutdown(context.Background()); stopErr != nil {
			lg.Warn().Err(stopErr).Msg("olric shutdown after dmap failure")
		}
		return nil, fmt.Errorf("cache: olric dmap %q: %w", dmapName, err)
	}

	lg.Info().
		Bool("embedded", cfg.Embedded).
		Str("bind_addr", cfg.BindAddr).
		Strs("addresses", cfg.Addresses).
		Msg("olric cache ready")
	return &olricCache{dmap: dm, shutdown: shutdown, log: lg}, nil
}

// startOlricNode runs an in-process olric member and waits until it has
// joined its peers (or formed a cluster of one).
func startOlricNode(ctx context.Context, cfg *OlricConfig) (olric.Client, func(context.Context) error, error) {
	oc := olricconfig.New("local")
	host, port := parseBindAddr(cfg.BindAddr)
	oc.BindAddr = host
	if port > 0 {
		oc.BindPort = port
	}
	if len(cfg.Peers) > 0 {
		oc.Peers = cfg.Peers
	}
	oc.LogOutput = io.Discard
	oc.Logger = log.New(io.Discard, "", 0)

	started := make(chan struct{})
	oc.Started = func() { close(started) }

	node, err := olric.New(oc)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: olric node: %w", err)
	}

	failed := make(chan error, 1)
	go func() {
		if err := node.Start(); err != nil {
			failed <- err
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, olricStartTimeout)
	defer cancel()

	select {
	case <-started:
		return node.NewEmbeddedClient(), node.Shutdown, nil
	case err := <-failed:
		return nil, nil, fmt.Errorf("cache: olric node start: %w", err)
	case <-waitCtx.Done():
		_ = node.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("cache: olric node start: %w", waitCtx.Err())
	}
}

// dialOlricCluster connects to an existing olric cluster as a client.
func dialOlricCluster(cfg *OlricConfig) (olric.Client, func(context.Context) error, error) {
	if len(cfg.Addresses) == 0 {
		return nil, nil, errors.New("cache: olric addresses required for client mode")
	}
	client, err := olric.NewClusterClient(cfg.Addresses)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: olric cluster %v: %w", cfg.Addresses, err)
	}
	return client, client.Close, nil
}

// use runs fn with the map while holding the read lock.
func (o *olricCache) use(ctx context.Context, fn func(olric.DMap) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	return fn(o.dmap)
}

func (o *olricCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := o.use(ctx, func(dm olric.DMap) error {
		resp, err := dm.Get(ctx, key)
		if err != nil {
			return err
		}
		raw, err := resp.Byte()
		value = copyBytes(raw)
		return err
	})
	switch {
	case errors.Is(err, olric.ErrKeyNotFound):
		o.log.Debug().Str("key", key).Bool("hit", false).Msg("cache get")
		return nil, ErrNotFound
	case err != nil:
		o.log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		return nil, err
	}
	o.log.Debug().Str("key", key).Bool("hit", true).Msg("cache get")
	return value, nil
}

func (o *olricCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := o.use(ctx, func(dm olric.DMap) error {
		return dm.Put(ctx, key, copyBytes(value), olric.EX(ttl))
	})
	if err != nil {
		o.log.Debug().Err(err).Str("key", key).Dur("ttl", ttl).Msg("cache set failed")
		return err
	}
	o.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("cache set")
	return nil
}

// Ping reads a key that is never written. A miss means the map answered.
func (o *olricCache) Ping(ctx context.Context) error {
	return o.use(ctx, func(dm olric.DMap) error {
		_, err := dm.Get(ctx, pingKey)
		if errors.Is(err, olric.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (o *olricCache) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	ctx := context.Background()
	if err := o.dmap.Close(ctx); err != nil {
		o.log.Debug().Err(err).Msg("olric dmap close")
	}
	if err := o.shutdown(ctx); err != nil {
		o.log.Error().Err(err).Msg("olric shutdown failed")
		return err
	}
	o.log.Info().Msg("olric cache closed")
	return nil
}
