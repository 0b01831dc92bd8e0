package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// PubMsg is one AMQP publish.
type PubMsg struct {
	Exchange      string
	RoutingKey    string
	CorrelationID string
	ReplyTo       string
	Body          []byte
	Headers       map[string]string
}

// Delivery is one consumed AMQP message.
type Delivery struct {
	CorrelationID string
	Body          []byte
	Headers       map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

type Consumer interface {
	// Consume delivers every message of queue to fn until cancel is called.
	Consume(ctx context.Context, queue string, fn func(Delivery)) (cancel func() error, err error)
}

// Adapter implements rpc.Channel over a Publisher and a Consumer.
type Adapter struct {
	Publisher  Publisher
	Consumer   Consumer
	Propagator rpc.HeaderPropagator // optional, for context propagation into headers

	replyQueue string
	mu         sync.Mutex
	cancel     func() error
	closed     bool
	release    func()
}

var _ rpc.Channel = (*Adapter)(nil)

// New creates an adapter consuming replies from replyQueue.
func New(p Publisher, c Consumer, replyQueue string) *Adapter {
	return &Adapter{Publisher: p, Consumer: c, replyQueue: replyQueue}
}

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(p Publisher, c Consumer, replyQueue string, hp rpc.HeaderPropagator) *Adapter {
	a := New(p, c, replyQueue)
	a.Propagator = hp

	return a
}

func (a *Adapter) ReplyTo() string { return a.replyQueue }

func (a *Adapter) Publish(ctx context.Context, f rpc.Frame) error {
	if err := a.ready(ctx, a.Publisher == nil, berr.ErrPublishFailed, "publish"); err != nil {
		return err
	}

	// copy headers to avoid mutating caller-provided map
	hdrs := make(map[string]string, len(f.Headers)+4)
	maps.Copy(hdrs, f.Headers)

	if a.Propagator != nil {
		a.Propagator.Inject(ctx, hdrs)
	}

	msg := PubMsg{
		RoutingKey:    f.Destination,
		CorrelationID: f.CorrelationID,
		ReplyTo:       f.ReplyTo,
		Body:          f.Body,
		Headers:       hdrs,
	}

	if err := a.Publisher.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish %q: %w", f.Destination, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) SubscribeReplies(ctx context.Context, h rpc.ReplyHandler) error {
	if err := a.ready(ctx, a.Consumer == nil, berr.ErrSubscribeFailed, "subscribe"); err != nil {
		return err
	}

	if h == nil || a.replyQueue == "" {
		return fmt.Errorf("rabbitmq subscribe: handler and reply queue required: %w", berr.ErrSubscribeFailed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return fmt.Errorf("rabbitmq subscribe %q: already subscribed: %w", a.replyQueue, berr.ErrSubscribeFailed)
	}

	queue := a.replyQueue
	cancel, err := a.Consumer.Consume(ctx, queue, func(d Delivery) {
		h(context.Background(), rpc.Frame{
			Destination:   queue,
			CorrelationID: d.CorrelationID,
			Body:          d.Body,
			Headers:       d.Headers,
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq subscribe %q: %w", queue, errors.Join(berr.ErrSubscribeFailed, err))
	}

	a.cancel = cancel

	return nil
}

// Close cancels the reply consumer and releases the connection when the adapter owns one.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}

	a.closed = true
	cancel, release := a.cancel, a.release
	a.cancel = nil
	a.mu.Unlock()

	var err error
	if cancel != nil {
		err = cancel()
	}

	if release != nil {
		release()
	}

	return err
}

func (a *Adapter) ready(ctx context.Context, missing bool, base error, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if missing {
		return fmt.Errorf("rabbitmq %s: %w", label, base)
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()

	if closed {
		return fmt.Errorf("rabbitmq %s: %w", label, berr.ErrClosed)
	}

	return nil
}
