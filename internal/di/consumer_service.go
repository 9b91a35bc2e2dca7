package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/omarluq/enginesync/internal/broker"
	"github.com/omarluq/enginesync/internal/consumer"
	"github.com/omarluq/enginesync/internal/logging"
	"github.com/omarluq/enginesync/internal/resilience"
)

// BrokerService wraps the broker connection manager.
type BrokerService struct {
	Manager *broker.Manager
}

// NewBroker creates the connection manager. It reads the live config on
// every connect.
func NewBroker(i do.Injector) (*BrokerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	manager := broker.NewManager(func() broker.Config {
		return cfgSvc.Get().BrokerConfig()
	}, logging.Component(logSvc.Logger, "broker"))

	return &BrokerService{Manager: manager}, nil
}

// Shutdown implements do.Shutdowner.
func (b *BrokerService) Shutdown() error {
	return b.Manager.Close()
}

// ConsumerService wraps the supervised update consumer.
type ConsumerService struct {
	Consumer *consumer.Consumer
	Breaker  *resilience.CircuitBreaker
}

// NewConsumer wires the consumer to the store and the broker behind the
// retry policy and circuit breaker. Call Start to run it.
func NewConsumer(i do.Injector) (*ConsumerService, error) {
	cfg := do.MustInvoke[*ConfigService](i).Get()
	logSvc := do.MustInvoke[*LoggerService](i)
	storeSvc := do.MustInvoke[*StoreService](i)
	brokerSvc := do.MustInvoke[*BrokerService](i)

	logger := logging.Component(logSvc.Logger, "consumer")
	retry := resilience.NewRetryPolicy(cfg.Retry, logger)
	breaker := resilience.NewCircuitBreaker("broker", cfg.CircuitBreaker, logger)

	c := consumer.New(brokerSvc.Manager, storeSvc.Store, retry, breaker, cfg.Consumer, logger,
		consumer.WithRequeueMalformed(cfg.Broker.RequeueMalformed))

	return &ConsumerService{Consumer: c, Breaker: breaker}, nil
}

// Start launches the consumer loop.
func (c *ConsumerService) Start(ctx context.Context) {
	c.Consumer.Start(ctx)
}

// Shutdown implements do.Shutdowner.
func (c *ConsumerService) Shutdown() error {
	return c.Consumer.Stop()
}
