package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher sends UpdateMessages to the update exchange.
type Publisher struct {
	dial   dialFunc
	logger *zerolog.Logger
	cfg    Config
}

// NewPublisher creates a Publisher for the given configuration.
func NewPublisher(cfg Config, logger *zerolog.Logger) *Publisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Publisher{cfg: cfg, dial: dialAMQP, logger: logger}
}

// Publish opens a short-lived connection, declares the exchange and publishes
// msg under the configured routing key. Empty Version and Timestamp are filled in.
func (p *Publisher) Publish(ctx context.Context, msg UpdateMessage) error {
	if msg.Version == "" {
		msg.Version = SchemaVersion
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.ServiceID == "" {
		msg.ServiceID = p.cfg.ServiceID
	}

	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("broker: encode message: %w", err)
	}

	uri := p.cfg.URI()
	conn, err := p.dial(uri.String(), amqpConfig(&p.cfg, "enginesync-publisher"))
	if err != nil {
		return fmt.Errorf("broker: dial %s: %w", p.cfg.Address(), err)
	}
	defer closeQuietly(conn)

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: open channel: %w", err)
	}
	defer closeQuietly(ch)

	if err := declareExchange(ch, &p.cfg); err != nil {
		return fmt.Errorf("broker: declare exchange %q: %w", p.cfg.GetExchange(), err)
	}

	id := uuid.NewString()
	err = ch.PublishWithContext(ctx, p.cfg.GetExchange(), p.cfg.GetRoutingKey(), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   id,
		Timestamp:   msg.Timestamp,
		AppId:       msg.ServiceID,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish: %w", err)
	}

	p.logger.Info().
		Str("message_id", id).
		Str("exchange", p.cfg.GetExchange()).
		Str("routing_key", p.cfg.GetRoutingKey()).
		Str("new_url", msg.NewURL).
		Msg("update published")
	return nil
}
