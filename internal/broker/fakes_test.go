package broker

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type declaredExchange struct {
	name       string
	kind       string
	durable    bool
	autoDelete bool
}

type declaredQueue struct {
	name       string
	durable    bool
	autoDelete bool
	exclusive  bool
}

type fakeChannel struct {
	qosErr      error
	exchangeErr error
	queueErr    error
	consumeErr  error
	deliveries  chan amqp.Delivery
	exchange    declaredExchange
	queue       declaredQueue
	bindKey     string
	bindTarget  string
	consumerTag string
	publishKey  string
	published   []amqp.Publishing
	prefetch    int
	mu          sync.Mutex
	closed      bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.prefetch = prefetchCount
	return f.qosErr
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, _, _ bool, _ amqp.Table) error {
	f.exchange = declaredExchange{name: name, kind: kind, durable: durable, autoDelete: autoDelete}
	return f.exchangeErr
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.queue = declaredQueue{name: name, durable: durable, autoDelete: autoDelete, exclusive: exclusive}
	if f.queueErr != nil {
		return amqp.Queue{}, f.queueErr
	}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(_, key, exchange string, _ bool, _ amqp.Table) error {
	f.bindKey, f.bindTarget = key, exchange
	return nil
}

func (f *fakeChannel) Consume(_, consumer string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.consumerTag = consumer
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.deliveries, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishKey = exchange + "/" + key
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Cancel(string, bool) error { return nil }

// serverClose simulates the broker closing the delivery stream.
func (f *fakeChannel) serverClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.deliveries)
	}
}

func (f *fakeChannel) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) Close() error {
	f.serverClose()
	return nil
}

type fakeConnection struct {
	channel *fakeChannel
	chErr   error
	mu      sync.Mutex
	closed  bool
}

func (f *fakeConnection) Channel() (amqpChannel, error) {
	if f.chErr != nil {
		return nil, f.chErr
	}
	return f.channel, nil
}

func (f *fakeConnection) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return amqp.ErrClosed
	}
	f.closed = true
	return nil
}

// fakeDialer hands out a fresh connection per dial and records the arguments.
type fakeDialer struct {
	err   error
	urls  []string
	cfgs  []amqp.Config
	conns []*fakeConnection
	setup func(*fakeConnection)
	mu    sync.Mutex
}

func (d *fakeDialer) dial(url string, cfg amqp.Config) (amqpConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.cfgs = append(d.cfgs, cfg)
	if d.err != nil {
		return nil, d.err
	}
	conn := &fakeConnection{channel: newFakeChannel()}
	if d.setup != nil {
		d.setup(conn)
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}
