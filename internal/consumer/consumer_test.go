package consumer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/enginesync/internal/baseurl"
	"github.com/omarluq/enginesync/internal/broker"
	"github.com/omarluq/enginesync/internal/cache"
	"github.com/omarluq/enginesync/internal/consumer"
	"github.com/omarluq/enginesync/internal/resilience"
)

// fakeConnector records Connect calls and fails while failing is set.
type fakeConnector struct {
	err       error
	handler   broker.Handler
	calls     int
	closes    int
	connected bool
	mu        sync.Mutex
}

func (f *fakeConnector) Connect(_ context.Context, h broker.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.handler = h
	f.connected = true
	return nil
}

func (f *fakeConnector) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConnector) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.connected = false
	return nil
}

func (f *fakeConnector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeConnector) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeConnector) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeConnector) Handler() broker.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

// recorder is shared by the fake store and acknowledger to capture ordering.
type recorder struct {
	events []string
	mu     sync.Mutex
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeStore struct {
	rec *recorder
}

func (s fakeStore) Update(_ context.Context, url string) bool {
	s.rec.add("update " + url)
	return true
}

type fakeAck struct {
	rec *recorder
}

func (a fakeAck) Ack(uint64, bool) error {
	a.rec.add("ack")
	return nil
}

func (a fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.rec.add("nack requeue")
	} else {
		a.rec.add("nack")
	}
	return nil
}

func (a fakeAck) Reject(uint64, bool) error {
	a.rec.add("reject")
	return nil
}

func fastPolicies() (*resilience.RetryPolicy, *resilience.CircuitBreaker) {
	retry := resilience.NewRetryPolicy(resilience.RetryConfig{MaxAttempts: 1, BaseDelayMS: 1}, nil)
	breaker := resilience.NewCircuitBreaker("broker", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		BreakDurationMS:  60000,
	}, nil)
	return retry, breaker
}

var fastLoop = consumer.Config{PollIntervalMS: 5, OpenCircuitWaitMS: 60000}

func startConsumer(t *testing.T, conn *fakeConnector, store consumer.Updater, opts ...consumer.Option) (*consumer.Consumer, *resilience.CircuitBreaker) {
	t.Helper()
	retry, breaker := fastPolicies()
	c := consumer.New(conn, store, retry, breaker, fastLoop, nil, opts...)
	c.Start(context.Background())
	t.Cleanup(func() { _ = c.Stop() })
	return c, breaker
}

func delivery(rec *recorder, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: fakeAck{rec: rec}, Body: []byte(body), DeliveryTag: 1}
}

func TestConsumer_ConnectsOnStart(t *testing.T) {
	conn := &fakeConnector{}
	c, _ := startConsumer(t, conn, fakeStore{rec: &recorder{}})

	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)
	assert.Equal(t, 1, conn.Calls())
}

func TestConsumer_ReconnectsAfterLoss(t *testing.T) {
	conn := &fakeConnector{}
	c, _ := startConsumer(t, conn, fakeStore{rec: &recorder{}})
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)

	conn.drop()

	require.Eventually(t, func() bool { return conn.Calls() == 2 && conn.IsConnected() }, time.Second, time.Millisecond)
	assert.Equal(t, consumer.StateConnected, c.State())
}

func TestConsumer_OpenCircuitSuppressesAttempts(t *testing.T) {
	conn := &fakeConnector{err: errors.New("connection refused")}
	c, breaker := startConsumer(t, conn, fakeStore{rec: &recorder{}})

	require.Eventually(t, func() bool { return breaker.State() == resilience.StateOpen }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.State() == consumer.StateDisconnected }, time.Second, time.Millisecond)

	// Three exhausted sequences of one attempt plus one retry each.
	assert.Equal(t, 6, conn.Calls())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 6, conn.Calls(), "no attempts while the circuit is open")
}

func TestConsumer_FaultedAfterExhaustedRetries(t *testing.T) {
	conn := &fakeConnector{err: errors.New("connection refused")}
	retry, _ := fastPolicies()
	breaker := resilience.NewCircuitBreaker("broker", resilience.CircuitBreakerConfig{FailureThreshold: 100}, nil)
	c := consumer.New(conn, fakeStore{rec: &recorder{}}, retry, breaker,
		consumer.Config{PollIntervalMS: 60000}, nil)
	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State() == consumer.StateFaulted }, time.Second, time.Millisecond)
	assert.Equal(t, 2, conn.Calls())
}

func TestConsumer_RecoversFromFaulted(t *testing.T) {
	conn := &fakeConnector{err: errors.New("connection refused")}
	retry, _ := fastPolicies()
	breaker := resilience.NewCircuitBreaker("broker", resilience.CircuitBreakerConfig{FailureThreshold: 1000}, nil)
	c := consumer.New(conn, fakeStore{rec: &recorder{}}, retry, breaker, fastLoop, nil)
	c.Start(context.Background())
	defer c.Stop()
	require.Eventually(t, func() bool { return c.State() == consumer.StateFaulted }, time.Second, time.Millisecond)

	conn.setErr(nil)

	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)
}

func TestConsumer_StopClosesConnection(t *testing.T) {
	conn := &fakeConnector{}
	retry, breaker := fastPolicies()
	c := consumer.New(conn, fakeStore{rec: &recorder{}}, retry, breaker, fastLoop, nil)
	c.Start(context.Background())
	c.Start(context.Background())
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	assert.Equal(t, consumer.StateDisconnected, c.State())
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, 1, conn.Calls())
}

func TestConsumer_RestartsAfterStop(t *testing.T) {
	conn := &fakeConnector{}
	retry, breaker := fastPolicies()
	c := consumer.New(conn, fakeStore{rec: &recorder{}}, retry, breaker, fastLoop, nil)

	c.Start(context.Background())
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)
	require.NoError(t, c.Stop())
	require.False(t, conn.IsConnected())

	c.Start(context.Background())
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)
	assert.Equal(t, 2, conn.Calls())
	assert.True(t, conn.IsConnected())
	require.NoError(t, c.Stop())
}

func TestConsumer_StopInterruptsRetryWait(t *testing.T) {
	conn := &fakeConnector{err: errors.New("connection refused")}
	retry := resilience.NewRetryPolicy(resilience.RetryConfig{}, nil)
	breaker := resilience.NewCircuitBreaker("broker", resilience.CircuitBreakerConfig{}, nil)
	c := consumer.New(conn, fakeStore{rec: &recorder{}}, retry, breaker, consumer.Config{}, nil)
	c.Start(context.Background())
	require.Eventually(t, func() bool { return conn.Calls() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Stop())

	assert.Less(t, time.Since(start), time.Second, "the 2s retry wait is abandoned")
	assert.Equal(t, consumer.StateDisconnected, c.State())
	assert.Equal(t, resilience.StateClosed, breaker.State(), "cancellation is not a failure")
}

func TestConsumer_HandleAcksAfterUpdate(t *testing.T) {
	conn := &fakeConnector{}
	rec := &recorder{}
	c, _ := startConsumer(t, conn, fakeStore{rec: rec})
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)

	conn.Handler()(context.Background(), delivery(rec, `{"NewUrl":"https://new.example.com","ServiceId":"x","Version":"1.0"}`))

	assert.Equal(t, []string{"update https://new.example.com", "ack"}, rec.Events())
}

func TestConsumer_HandleRejectsBadMessages(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		requeue bool
		want    string
	}{
		{"invalid json", `{not json`, false, "nack"},
		{"empty url", `{"NewUrl":"","ServiceId":"x"}`, false, "nack"},
		{"missing url", `{"ServiceId":"x"}`, false, "nack"},
		{"wrong type", `{"NewUrl":5}`, false, "nack"},
		{"requeue enabled", `{not json`, true, "nack requeue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConnector{}
			rec := &recorder{}
			c, _ := startConsumer(t, conn, fakeStore{rec: rec}, consumer.WithRequeueMalformed(tt.requeue))
			require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)

			conn.Handler()(context.Background(), delivery(rec, tt.body))

			assert.Equal(t, []string{tt.want}, rec.Events())
		})
	}
}

func TestConsumer_RoundTripThroughStoreAndCache(t *testing.T) {
	mr := miniredis.RunT(t)
	kv, err := cache.New(context.Background(), &cache.Config{Redis: cache.RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	defer kv.Close()

	store := baseurl.New(context.Background(), kv, baseurl.Options{DefaultURL: "http://localhost:8000"}, nil)
	conn := &fakeConnector{}
	c, _ := startConsumer(t, conn, store)
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)

	rec := &recorder{}
	conn.Handler()(context.Background(), delivery(rec,
		`{"NewUrl":"https://new.example.com","ServiceId":"x","Version":"1.0"}`))

	assert.Equal(t, "https://new.example.com", store.GetBaseURL())
	got, err := mr.Get(cache.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", got)
	assert.Equal(t, 7*24*time.Hour, mr.TTL(cache.DefaultKey))
	assert.Equal(t, []string{"ack"}, rec.Events())
}

func TestConsumer_InvalidURLIsAcked(t *testing.T) {
	store := baseurl.New(context.Background(), nil, baseurl.Options{DefaultURL: "http://localhost:8000"}, nil)
	conn := &fakeConnector{}
	c, _ := startConsumer(t, conn, store)
	require.Eventually(t, func() bool { return c.State() == consumer.StateConnected }, time.Second, time.Millisecond)

	rec := &recorder{}
	conn.Handler()(context.Background(), delivery(rec, `{"NewUrl":"ftp://files.example.com"}`))

	assert.Equal(t, "http://localhost:8000", store.GetBaseURL())
	assert.Equal(t, []string{"ack"}, rec.Events())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", consumer.StateDisconnected.String())
	assert.Equal(t, "connecting", consumer.StateConnecting.String())
	assert.Equal(t, "connected", consumer.StateConnected.String())
	assert.Equal(t, "faulted", consumer.StateFaulted.String())
	assert.Equal(t, "unknown", consumer.State(42).String())
}

func TestConfig_Defaults(t *testing.T) {
	var cfg consumer.Config
	assert.Equal(t, 5*time.Second, cfg.GetPollInterval())
	assert.Equal(t, 30*time.Second, cfg.GetOpenCircuitWait())
}
