package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Handler processes one delivery. It owns acknowledging it.
type Handler func(ctx context.Context, d amqp.Delivery)

// ConfigFunc returns the current broker configuration.
type ConfigFunc func() Config

// Manager owns one connection and one channel to the broker.
// Deliveries are passed to the handler one at a time.
type Manager struct {
	conn   amqpConnection
	ch     amqpChannel
	cancel context.CancelFunc
	done   chan struct{}
	config ConfigFunc
	dial   dialFunc
	logger *zerolog.Logger
	tag    string
	mu     sync.Mutex
	closed bool
}

// NewManager creates a Manager. cfg is consulted on every Connect so that
// reloaded settings apply to the next connection.
func NewManager(cfg ConfigFunc, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{config: cfg, dial: dialAMQP, logger: logger}
}

// Connect opens the connection and channel, declares the topology and starts
// consuming. It is a no-op when already connected.
func (m *Manager) Connect(ctx context.Context, handler Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.connectedLocked() {
		return nil
	}
	// Drop whatever is left of a dead connection.
	m.releaseLocked()

	cfg := m.config()
	log := m.logger.With().Str("addr", cfg.Address()).Str("vhost", cfg.GetVirtualHost()).Logger()

	uri := cfg.URI()
	conn, err := m.dial(uri.String(), amqpConfig(&cfg, "enginesync-"+cfg.ServiceID))
	if err != nil {
		return fmt.Errorf("broker: dial %s: %w", cfg.Address(), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		closeQuietly(conn)
		return fmt.Errorf("broker: open channel: %w", err)
	}

	tag := "enginesync-" + uuid.NewString()
	deliveries, err := m.setup(ch, &cfg, tag)
	if err != nil {
		closeQuietly(ch)
		closeQuietly(conn)
		return err
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go m.dispatch(dispatchCtx, deliveries, handler, done)

	m.conn, m.ch, m.cancel, m.done, m.tag = conn, ch, cancel, done, tag

	log.Info().
		Str("exchange", cfg.GetExchange()).
		Str("queue", cfg.GetQueue()).
		Str("routing_key", cfg.GetRoutingKey()).
		Str("consumer_tag", tag).
		Msg("broker connected")
	return nil
}

func (m *Manager) setup(ch amqpChannel, cfg *Config, tag string) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("broker: set qos: %w", err)
	}
	if err := declareExchange(ch, cfg); err != nil {
		return nil, fmt.Errorf("broker: declare exchange %q: %w", cfg.GetExchange(), err)
	}
	q, err := ch.QueueDeclare(cfg.GetQueue(), true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("broker: declare queue %q: %w", cfg.GetQueue(), err)
	}
	if err := ch.QueueBind(q.Name, cfg.GetRoutingKey(), cfg.GetExchange(), false, nil); err != nil {
		return nil, fmt.Errorf("broker: bind queue %q: %w", q.Name, err)
	}
	deliveries, err := ch.Consume(q.Name, tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("broker: consume %q: %w", q.Name, err)
	}
	return deliveries, nil
}

func (m *Manager) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				m.logger.Warn().Msg("broker delivery channel closed")
				return
			}
			handler(ctx, d)
		}
	}
}

// IsConnected reports whether the connection, the channel and the delivery
// loop are all alive.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectedLocked()
}

func (m *Manager) connectedLocked() bool {
	if m.conn == nil || m.ch == nil || m.conn.IsClosed() || m.ch.IsClosed() {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Disconnect stops dispatching and closes the channel, then the connection.
// Unlike Close, a later Connect opens a fresh connection.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.releaseLocked()
	if err == nil {
		m.logger.Debug().Msg("broker disconnected")
	}
	return err
}

// Close disconnects and makes every later Connect fail with ErrClosed.
// Calling Close more than once is safe.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	err := m.releaseLocked()
	if err == nil {
		m.logger.Debug().Msg("broker connection closed")
	}
	return err
}

func (m *Manager) releaseLocked() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}

	var errs []error
	if m.ch != nil {
		if !m.ch.IsClosed() {
			_ = m.ch.Cancel(m.tag, false)
		}
		errs = append(errs, ignoreClosed(m.ch.Close()))
	}
	if m.conn != nil {
		errs = append(errs, ignoreClosed(m.conn.Close()))
	}

	m.conn, m.ch, m.cancel, m.done, m.tag = nil, nil, nil, nil, ""
	return errors.Join(errs...)
}

func ignoreClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

type closer interface{ Close() error }

func closeQuietly(c closer) {
	_ = c.Close()
}
