package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// State represents the circuit breaker state.
type State = gobreaker.State

// Circuit breaker state constants.
const (
	StateClosed   = gobreaker.StateClosed
	StateOpen     = gobreaker.StateOpen
	StateHalfOpen = gobreaker.StateHalfOpen
)

// BreakerSnapshot is a point-in-time view of the breaker.
type BreakerSnapshot struct {
	OpenedAt            time.Time
	State               State
	ConsecutiveFailures uint32
}

// CircuitBreaker wraps sony/gobreaker to guard connection attempts.
// Half-open admits a single probe.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker[struct{}]
	name string
	// tripped is the failure count that last opened the circuit. gobreaker
	// clears its counts on every state change.
	tripped  atomic.Uint32
	openedAt atomic.Int64
}

// NewCircuitBreaker creates a CircuitBreaker with the given configuration.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, logger *zerolog.Logger) *CircuitBreaker {
	c := &CircuitBreaker{name: name}
	threshold := uint32(cfg.GetFailureThreshold()) //nolint:gosec // getter never returns negatives

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.GetBreakDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures < threshold {
				return false
			}
			c.tripped.Store(counts.ConsecutiveFailures)
			return true
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				c.openedAt.Store(time.Now().UnixNano())
			case gobreaker.StateClosed:
				c.tripped.Store(0)
			}
			if logger == nil {
				return
			}
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Dur("break_duration", cfg.GetBreakDuration()).
				Msg("circuit breaker state change")
		},
		// A canceled attempt counts neither way, so a canceled half-open
		// probe leaves the circuit half-open.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	}

	c.cb = gobreaker.NewCircuitBreaker[struct{}](settings)
	return c
}

// Execute runs fn through the breaker. While the circuit is open fn is not
// invoked and ErrCircuitOpen is returned.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Permits reports whether an attempt would currently be let through.
// The state is read live, so an elapsed break duration shows as half-open.
func (c *CircuitBreaker) Permits() bool {
	return c.cb.State() != StateOpen
}

// State returns the current circuit breaker state.
func (c *CircuitBreaker) State() State {
	return c.cb.State()
}

// Name returns the circuit breaker's name.
func (c *CircuitBreaker) Name() string {
	return c.name
}

// Snapshot returns the state, the consecutive failure count and the time the
// circuit last opened (zero if it never has). While closed the count is
// gobreaker's live count; otherwise it is the count that opened the circuit.
func (c *CircuitBreaker) Snapshot() BreakerSnapshot {
	s := BreakerSnapshot{State: c.cb.State()}
	if s.State == StateClosed {
		s.ConsecutiveFailures = c.cb.Counts().ConsecutiveFailures
	} else {
		s.ConsecutiveFailures = c.tripped.Load()
	}
	if ns := c.openedAt.Load(); ns != 0 {
		s.OpenedAt = time.Unix(0, ns)
	}
	return s
}
