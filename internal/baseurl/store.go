// Package baseurl holds the process-wide view of the inference engine base URL.
//
// The Store is seeded from the cache at construction, updated by the broker
// consumer and read lock-free by any number of goroutines. Every accepted
// change is persisted to the cache on a best-effort basis and then announced
// to subscribers.
package baseurl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/samber/ro"

	"github.com/omarluq/enginesync/internal/cache"
	"github.com/omarluq/enginesync/internal/endpoint"
)

// DefaultLoadTimeout bounds the startup cache read.
const DefaultLoadTimeout = 5 * time.Second

// State is an immutable snapshot of the current base URL.
type State struct {
	UpdatedAt time.Time
	URL       string
}

// Change describes an accepted update.
type Change struct {
	At       time.Time
	Previous string
	URL      string
}

// Options configures a Store.
type Options struct {
	// DefaultURL is used when the cache holds nothing usable.
	DefaultURL string

	// Key is the cache key. Defaults to cache.DefaultKey.
	Key string

	// TTL applies to every cache write. Defaults to seven days.
	TTL time.Duration

	// LoadTimeout bounds the startup cache read.
	LoadTimeout time.Duration
}

type subscription struct {
	fn func(Change)
	id uint64
}

// Store is the single in-process source of truth for the base URL.
type Store struct {
	cache  cache.Cache
	logger *zerolog.Logger
	state  atomic.Pointer[State]
	key    string
	subs   []subscription
	ttl    time.Duration
	nextID uint64
	mu     sync.Mutex
	subsMu sync.RWMutex
}

// New creates a Store seeded from c. Cache errors are logged and the default
// URL is used instead; they are never returned. c may be nil.
func New(ctx context.Context, c cache.Cache, opts Options, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Store{
		cache:  c,
		logger: logger,
		key:    lo.CoalesceOrEmpty(opts.Key, cache.DefaultKey),
		ttl:    lo.CoalesceOrEmpty(opts.TTL, time.Duration(cache.DefaultTTLHours)*time.Hour),
	}

	initial, source := s.load(ctx, opts)
	s.state.Store(&State{URL: initial, UpdatedAt: time.Now()})

	logger.Info().Str("base_url", initial).Str("source", source).Msg("base url initialized")
	return s
}

func (s *Store) load(ctx context.Context, opts Options) (url, source string) {
	if s.cache == nil {
		return opts.DefaultURL, "default"
	}

	timeout := lo.CoalesceOrEmpty(opts.LoadTimeout, DefaultLoadTimeout)
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.cache.Get(loadCtx, s.key)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return opts.DefaultURL, "default"
	case err != nil:
		s.logger.Warn().Err(err).Str("key", s.key).Msg("failed to read base url from cache, using default")
		return opts.DefaultURL, "default"
	}

	cached := string(raw)
	if !endpoint.IsValid(cached) {
		s.logger.Warn().Str("key", s.key).Str("cached", cached).Msg("cached base url is invalid, using default")
		return opts.DefaultURL, "default"
	}
	return cached, "cache"
}

// GetBaseURL returns the current base URL.
func (s *Store) GetBaseURL() string {
	return s.state.Load().URL
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	return *s.state.Load()
}

// Update replaces the base URL. Empty or unchanged values are ignored, and
// invalid ones are logged and ignored. It reports whether the value changed.
func (s *Store) Update(ctx context.Context, newURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state.Load()
	if newURL == "" || newURL == current.URL {
		return false
	}
	if !endpoint.IsValid(newURL) {
		s.logger.Warn().Str("candidate", newURL).Msg("rejected invalid base url")
		return false
	}

	now := time.Now()
	s.state.Store(&State{URL: newURL, UpdatedAt: now})
	s.logger.Info().Str("previous", current.URL).Str("base_url", newURL).Msg("base url updated")

	s.persist(ctx, newURL)
	s.notify(Change{Previous: current.URL, URL: newURL, At: now})
	return true
}

func (s *Store) persist(ctx context.Context, url string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWithTTL(ctx, s.key, []byte(url), s.ttl); err != nil {
		s.logger.Error().Err(err).Str("key", s.key).Msg("failed to persist base url to cache")
	}
}

func (s *Store) notify(change Change) {
	s.subsMu.RLock()
	subs := append([]subscription(nil), s.subs...)
	s.subsMu.RUnlock()

	for _, sub := range subs {
		s.call(sub, change)
	}
}

func (s *Store) call(sub subscription, change Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Uint64("subscriber", sub.id).
				Msg("base url subscriber panicked")
		}
	}()
	sub.fn(change)
}

func (s *Store) subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			s.subs = lo.Reject(s.subs, func(sub subscription, _ int) bool {
				return sub.id == id
			})
		})
	}
}

// Subscribe registers fn to receive every new URL. Calls are synchronous with
// Update, in registration order. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(url string)) (unsubscribe func()) {
	return s.subscribe(func(c Change) { fn(c.URL) })
}

// Changes returns a stream of accepted updates. Unsubscribing from the stream
// removes the underlying subscription.
func (s *Store) Changes() ro.Observable[Change] {
	return ro.NewObservableWithContext(func(ctx context.Context, observer ro.Observer[Change]) ro.Teardown {
		unsubscribe := s.subscribe(func(c Change) {
			observer.NextWithContext(ctx, c)
		})
		return unsubscribe
	})
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}
