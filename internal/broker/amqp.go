package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpConnection is the subset of *amqp.Connection the manager uses.
type amqpConnection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

// amqpChannel is the subset of *amqp.Channel the manager uses.
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Cancel(consumer string, noWait bool) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url string, cfg amqp.Config) (amqpConnection, error)

type realConnection struct {
	*amqp.Connection
}

func (c realConnection) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string, cfg amqp.Config) (amqpConnection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return realConnection{conn}, nil
}

func amqpConfig(cfg *Config, name string) amqp.Config {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(name)
	return amqp.Config{
		Vhost:      cfg.GetVirtualHost(),
		Heartbeat:  cfg.GetHeartbeat(),
		Dial:       amqp.DefaultDial(cfg.GetDialTimeout()),
		Properties: props,
	}
}

// declareExchange declares the durable topic exchange updates are published to.
func declareExchange(ch amqpChannel, cfg *Config) error {
	return ch.ExchangeDeclare(cfg.GetExchange(), amqp.ExchangeTopic, true, false, false, false, nil)
}
