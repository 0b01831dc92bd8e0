package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
)

// Concrete AMQP connection-backed constructor with auto-reconnect.

// DirectReplyTo is RabbitMQ's pseudo-queue for replies without a declared queue.
const DirectReplyTo = "amq.rabbitmq.reply-to"

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	defaultPublishWait = 5 * time.Second
	defaultConnTimeout = 10 * time.Second
)

type Config struct {
	URL         string
	ConnTimeout time.Duration
	// ReplyQueue names the reply queue; empty generates gateway.reply.<uuid>.
	ReplyQueue string
	// PublishWait bounds how long a publish waits for a connection.
	PublishWait time.Duration
	ClientName  string
	Logger      *slog.Logger
}

type consumer struct {
	queue string
	fn    func(Delivery)
	tag   string
}

type reconnectingConn struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	ready    chan struct{} // closed while a channel is usable
	consumer *consumer
	closed   chan struct{}
	once     sync.Once
}

func newReconnectingConn(cfg Config) *reconnectingConn {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rc := &reconnectingConn{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
	go rc.run()

	return rc
}

func (rc *reconnectingConn) channel(ctx context.Context) (*amqp.Channel, error) {
	wait := rc.cfg.PublishWait
	if wait <= 0 {
		wait = defaultPublishWait
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	for {
		rc.mu.RLock()
		ch, ready := rc.ch, rc.ready
		rc.mu.RUnlock()

		if ch != nil && !ch.IsClosed() {
			return ch, nil
		}

		// a stale channel is swapped out by run once the close notification lands
		var poll <-chan time.Time
		if ch != nil {
			ready = nil
			poll = time.After(50 * time.Millisecond)
		}

		select {
		case <-ready:
		case <-poll:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-rc.closed:
			return nil, fmt.Errorf("rabbitmq: %w", berr.ErrClosed)
		case <-t.C:
			return nil, fmt.Errorf("%w: rabbitmq not connected after %s", berr.ErrChannel, wait)
		}
	}
}

func (rc *reconnectingConn) Publish(ctx context.Context, m PubMsg) error {
	ch, err := rc.channel(ctx)
	if err != nil {
		return err
	}

	var h amqp.Table
	if len(m.Headers) > 0 {
		h = amqp.Table{}
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return ch.PublishWithContext(
		ctx,
		m.Exchange,
		m.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			Headers:       h,
			ContentType:   "application/json",
			CorrelationId: m.CorrelationID,
			ReplyTo:       m.ReplyTo,
			Body:          m.Body,
		},
	)
}

// Consume registers the reply consumer. It survives reconnects: every new
// channel redeclares the queue and consumes it again.
func (rc *reconnectingConn) Consume(_ context.Context, queue string, fn func(Delivery)) (func() error, error) {
	c := &consumer{queue: queue, fn: fn, tag: "gateway-" + uuid.NewString()}

	rc.mu.Lock()
	if rc.consumer != nil {
		rc.mu.Unlock()
		return nil, fmt.Errorf("rabbitmq consume %q: consumer already registered", queue)
	}

	rc.consumer = c
	ch := rc.ch
	rc.mu.Unlock()

	if ch != nil {
		if err := rc.startConsumer(ch, c); err != nil {
			// the run loop retries on the next channel
			rc.logger.Warn("rabbitmq consume failed", "queue", queue, "err", err)
		}
	}

	cancel := func() error {
		rc.mu.Lock()
		rc.consumer = nil
		ch := rc.ch
		rc.mu.Unlock()

		if ch == nil || ch.IsClosed() {
			return nil
		}

		return ch.Cancel(c.tag, false)
	}

	return cancel, nil
}

func (rc *reconnectingConn) startConsumer(ch *amqp.Channel, c *consumer) error {
	if c.queue != DirectReplyTo {
		if _, err := ch.QueueDeclare(c.queue, false, true, true, false, nil); err != nil {
			return err
		}
	}

	deliveries, err := ch.Consume(c.queue, c.tag, true, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range deliveries {
			c.fn(Delivery{CorrelationID: d.CorrelationId, Body: d.Body, Headers: tableStrings(d.Headers)})
		}
	}()

	return nil
}

func (rc *reconnectingConn) dial() (*amqp.Connection, *amqp.Channel, error) {
	product := rc.cfg.ClientName
	if product == "" {
		product = "scg-rpc-proxy"
	}

	timeout := rc.cfg.ConnTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}

	conn, err := amqp.DialConfig(rc.cfg.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": product, "connection_name": product},
		Dial:       amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return conn, ch, nil
}

func (rc *reconnectingConn) run() {
	backoff := minBackoff
	// #nosec G404 -- non-crypto RNG is acceptable for backoff jitter
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // non-crypto RNG is acceptable for backoff jitter

	for {
		select {
		case <-rc.closed:
			return
		default:
		}

		conn, ch, err := rc.dial()
		if err != nil {
			sleep := jittered(backoff, rng)
			rc.logger.Warn("rabbitmq dial failed", "err", err, "retry_in", sleep)

			t := time.NewTimer(sleep)
			select {
			case <-rc.closed:
				t.Stop()
				return
			case <-t.C:
			}

			backoff = nextBackoff(backoff)

			continue
		}

		backoff = minBackoff

		rc.attach(conn, ch,
			func(c *consumer) error { return rc.startConsumer(ch, c) },
			func(tag string) error { return ch.Cancel(tag, false) },
		)

		rc.logger.Info("rabbitmq connected")

		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-rc.closed:
			_ = ch.Close()
			_ = conn.Close()

			return
		case err := <-notify:
			rc.logger.Warn("rabbitmq connection lost", "err", err)

			rc.mu.Lock()
			rc.conn, rc.ch = nil, nil
			rc.ready = make(chan struct{})
			rc.mu.Unlock()

			_ = ch.Close()
			_ = conn.Close()
		}
	}
}

// attach hands a fresh channel to publishers only once the registered reply
// consumer runs on it, so a direct reply-to publish never precedes its
// consumer. A consumer registered or canceled while start ran is reconciled
// before the channel is handed out.
func (rc *reconnectingConn) attach(conn *amqp.Connection, ch *amqp.Channel, start func(*consumer) error, stop func(tag string) error) {
	var started *consumer

	for {
		rc.mu.Lock()
		c := rc.consumer
		if c == started {
			rc.conn, rc.ch = conn, ch
			close(rc.ready)
			rc.mu.Unlock()

			return
		}
		rc.mu.Unlock()

		if started != nil {
			if err := stop(started.tag); err != nil {
				rc.logger.Warn("rabbitmq cancel stale consumer", "queue", started.queue, "err", err)
			}
		}

		if c != nil {
			if err := start(c); err != nil {
				rc.logger.Error("rabbitmq reply consumer failed", "queue", c.queue, "err", err)
			}
		}

		started = c
	}
}

func (rc *reconnectingConn) close() {
	rc.once.Do(func() {
		close(rc.closed)

		rc.mu.Lock()
		defer rc.mu.Unlock()

		if rc.ch != nil {
			_ = rc.ch.Close()
			rc.ch = nil
		}

		if rc.conn != nil {
			_ = rc.conn.Close()
			rc.conn = nil
		}
	})
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}

	return d
}

// jittered adds up to a quarter of d as jitter, capped at maxBackoff.
func jittered(d time.Duration, rng *rand.Rand) time.Duration {
	if d <= 0 {
		return 0
	}

	jitter := time.Duration(rng.Int63n(int64(d/2) + 1))

	sleep := d + jitter/2
	if sleep > maxBackoff {
		return maxBackoff
	}

	return sleep
}

func tableStrings(t amqp.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}

	out := make(map[string]string, len(t))
	for k, v := range t {
		switch s := v.(type) {
		case string:
			out[k] = s
		case []byte:
			out[k] = string(s)
		default:
			out[k] = fmt.Sprint(v)
		}
	}

	return out
}

// NewWithAMQPConn dials RabbitMQ with auto-reconnect and returns an Adapter and cleanup.
func NewWithAMQPConn(cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrInvalidConfig)
	}

	if cfg.ReplyQueue == "" {
		cfg.ReplyQueue = "gateway.reply." + uuid.NewString()
	}

	rc := newReconnectingConn(cfg)
	ad := New(rc, rc, cfg.ReplyQueue)
	ad.release = rc.close
	cleanup := func() { _ = ad.Close() }

	return ad, cleanup, nil
}
