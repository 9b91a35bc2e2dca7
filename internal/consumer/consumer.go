// Package consumer runs the background loop that keeps a broker subscription
// alive and feeds base URL updates into the store.
package consumer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/omarluq/enginesync/internal/broker"
	"github.com/omarluq/enginesync/internal/resilience"
)

var errEmptyURL = errors.New("consumer: message has no NewUrl")

// Connector is the broker connection the consumer supervises.
type Connector interface {
	Connect(ctx context.Context, handler broker.Handler) error
	IsConnected() bool
	Disconnect() error
}

// Updater receives accepted URLs.
type Updater interface {
	Update(ctx context.Context, url string) bool
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithRequeueMalformed sets whether undecodable messages are requeued.
func WithRequeueMalformed(requeue bool) Option {
	return func(c *Consumer) {
		c.requeueMalformed = requeue
	}
}

// Consumer supervises a single broker subscription. All broker I/O happens on
// its one goroutine.
type Consumer struct {
	conn    Connector
	store   Updater
	retry   *resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	logger  *zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}

	// openLog throttles the "circuit open" message.
	openLog rate.Sometimes

	cfg              Config
	mu               sync.Mutex
	state            atomic.Int32
	requeueMalformed bool
}

// New creates a Consumer. It does nothing until Start is called.
func New(
	conn Connector,
	store Updater,
	retry *resilience.RetryPolicy,
	breaker *resilience.CircuitBreaker,
	cfg Config,
	logger *zerolog.Logger,
	opts ...Option,
) *Consumer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	c := &Consumer{
		conn:    conn,
		store:   store,
		retry:   retry,
		breaker: breaker,
		cfg:     cfg,
		logger:  logger,
		openLog: rate.Sometimes{Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state. Safe for concurrent use.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("consumer state change")
	}
}

// Start launches the supervisory loop. Calling Start on a running consumer
// has no effect; a stopped consumer can be started again.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx, c.done)
}

// Stop cancels the loop, waits for it to exit and drops the connection.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil

	err := c.conn.Disconnect()
	c.setState(StateDisconnected)
	c.logger.Info().Msg("consumer stopped")
	return err
}

func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	c.connect(ctx)
	for {
		if !sleep(ctx, c.cfg.GetPollInterval()) {
			return
		}

		if !c.breaker.Permits() {
			c.setState(StateDisconnected)
			wait := c.cfg.GetOpenCircuitWait()
			c.openLog.Do(func() {
				c.logger.Warn().
					Dur("wait", wait).
					Time("opened_at", c.breaker.Snapshot().OpenedAt).
					Msg("circuit open, suspending broker connection attempts")
			})
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		if !c.conn.IsConnected() {
			if c.State() == StateConnected {
				c.logger.Warn().Msg("broker connection lost")
			}
			c.connect(ctx)
		}
	}
}

func (c *Consumer) connect(ctx context.Context) {
	c.setState(StateConnecting)

	err := c.breaker.Execute(func() error {
		return c.retry.Do(ctx, func(ctx context.Context) error {
			return c.conn.Connect(ctx, c.handle)
		})
	})

	switch {
	case err == nil:
		c.setState(StateConnected)
		c.logger.Info().Msg("consumer connected")
	case ctx.Err() != nil:
		return
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.setState(StateDisconnected)
	default:
		c.setState(StateFaulted)
		c.logger.Error().
			Err(err).
			Uint32("consecutive_failures", c.breaker.Snapshot().ConsecutiveFailures).
			Msg("broker connection failed after retries")
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.logger.With().Str("message_id", d.MessageId).Uint64("delivery_tag", d.DeliveryTag).Logger()

	msg, err := broker.DecodeUpdateMessage(d.Body)
	if err == nil && msg.NewURL == "" {
		err = errEmptyURL
	}
	if err != nil {
		log.Warn().Err(err).Bool("requeue", c.requeueMalformed).Msg("rejecting malformed update message")
		if nackErr := d.Nack(false, c.requeueMalformed); nackErr != nil {
			log.Error().Err(nackErr).Msg("failed to nack message")
		}
		return
	}

	if major, ok := msg.MajorVersion(); ok && major != 1 {
		log.Warn().Str("version", msg.Version).Msg("unexpected message schema version")
	}
	log.Debug().Str("service_id", msg.ServiceID).Str("new_url", msg.NewURL).Msg("update message received")

	c.store.Update(ctx, msg.NewURL)

	if ackErr := d.Ack(false); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ack message")
	}
}

// sleep waits for d or until ctx is done. It reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
