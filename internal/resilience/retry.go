package resilience

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryAttempt describes a scheduled retry.
type RetryAttempt struct {
	Err       error
	Attempt   int
	NextDelay time.Duration
}

// RetryPolicy runs an operation with exponential backoff. Retry n waits
// base * 2^n, so the defaults wait 2s, 4s, 8s, 16s and 32s before giving up.
type RetryPolicy struct {
	timer      backoff.Timer
	onRetry    func(RetryAttempt)
	logger     *zerolog.Logger
	base       time.Duration
	maxRetries int
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithOnRetry registers a hook invoked before each retry delay.
func WithOnRetry(fn func(RetryAttempt)) RetryOption {
	return func(p *RetryPolicy) {
		p.onRetry = fn
	}
}

// NewRetryPolicy creates a RetryPolicy from configuration.
func NewRetryPolicy(cfg RetryConfig, logger *zerolog.Logger, opts ...RetryOption) *RetryPolicy {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	p := &RetryPolicy{
		base:       cfg.GetBaseDelay(),
		maxRetries: cfg.GetMaxAttempts(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries returns the number of retries after the first attempt.
func (p *RetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// MaxDelay caps a single retry wait.
const MaxDelay = time.Duration(math.MaxInt64)

// Delay returns the wait before retry n (1-based), saturating at MaxDelay.
func (p *RetryPolicy) Delay(n int) time.Duration {
	return ShiftDelay(p.base, n)
}

// ShiftDelay returns base * 2^n, or MaxDelay when that does not fit.
func ShiftDelay(base time.Duration, n int) time.Duration {
	if n >= 63 || base > MaxDelay>>n {
		return MaxDelay
	}
	return base << n
}

func (p *RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.Delay(1),
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.Delay(p.maxRetries),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.maxRetries)), ctx) //nolint:gosec // getter never returns negatives
}

// Do invokes op until it succeeds, the retries are exhausted or ctx is done.
// On exhaustion the last error is returned.
func (p *RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	notify := func(err error, next time.Duration) {
		attempt++
		p.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", p.maxRetries).
			Dur("delay", next).
			Msg("operation failed, retrying")
		if p.onRetry != nil {
			p.onRetry(RetryAttempt{Err: err, Attempt: attempt, NextDelay: next})
		}
	}

	return backoff.RetryNotifyWithTimer(func() error {
		err := op(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx), notify, p.timer)
}
