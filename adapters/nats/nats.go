// Package nats binds rpc.Channel to NATS core subjects.
//
// Requests are published to the destination subject with the process inbox as
// the reply subject, which is what NATS request/reply responders answer to.
// The correlation id travels in a header and in the encoded body.
package nats

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// CorrelationHeader carries the correlation id on requests and replies.
const CorrelationHeader = "Correlation-Id"

// Client is a minimal NATS-like interface decoupled from any concrete library.
// Users can provide a wrapper around their NATS connection to satisfy this.
type Client interface {
	// Publish publishes data to subject, asking responders to answer on reply.
	// It must return once ctx is done.
	Publish(ctx context.Context, subject, reply string, data []byte, headers map[string]string) error
	// Subscribe delivers every message on subject to fn until unsubscribe is called.
	Subscribe(subject string, fn func(data []byte, headers map[string]string)) (unsubscribe func() error, err error)
}

// Adapter implements rpc.Channel using an injected NATS-like Client.
type Adapter struct {
	Client Client

	inbox   string
	mu      sync.Mutex
	unsub   func() error
	closed  bool
	release func()
}

var _ rpc.Channel = (*Adapter)(nil)

// New creates an adapter receiving replies on the inbox subject.
func New(c Client, inbox string) *Adapter { return &Adapter{Client: c, inbox: inbox} }

func (a *Adapter) ReplyTo() string { return a.inbox }

func (a *Adapter) Publish(ctx context.Context, f rpc.Frame) error {
	if err := a.ready(ctx, berr.ErrPublishFailed, "publish"); err != nil {
		return err
	}

	headers := make(map[string]string, len(f.Headers)+1)
	maps.Copy(headers, f.Headers)

	if f.CorrelationID != "" {
		headers[CorrelationHeader] = f.CorrelationID
	}

	if err := a.Client.Publish(ctx, f.Destination, f.ReplyTo, f.Body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish %q: %w", f.Destination, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) SubscribeReplies(ctx context.Context, h rpc.ReplyHandler) error {
	if err := a.ready(ctx, berr.ErrSubscribeFailed, "subscribe"); err != nil {
		return err
	}

	if h == nil || a.inbox == "" {
		return fmt.Errorf("nats subscribe: handler and inbox required: %w", berr.ErrSubscribeFailed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unsub != nil {
		return fmt.Errorf("nats subscribe %q: already subscribed: %w", a.inbox, berr.ErrSubscribeFailed)
	}

	inbox := a.inbox
	unsub, err := a.Client.Subscribe(inbox, func(data []byte, headers map[string]string) {
		h(context.Background(), rpc.Frame{
			Destination:   inbox,
			CorrelationID: headers[CorrelationHeader],
			Body:          data,
			Headers:       headers,
		})
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %q: %w", inbox, errors.Join(berr.ErrSubscribeFailed, err))
	}

	a.unsub = unsub

	return nil
}

// Close drops the reply subscription and releases the connection when the
// adapter owns one.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}

	a.closed = true
	unsub, release := a.unsub, a.release
	a.unsub = nil
	a.mu.Unlock()

	var err error
	if unsub != nil {
		err = unsub()
	}

	if release != nil {
		release()
	}

	return err
}

func (a *Adapter) ready(ctx context.Context, base error, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil {
		return fmt.Errorf("nats %s: nil client: %w", label, base)
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()

	if closed {
		return fmt.Errorf("nats %s: %w", label, berr.ErrClosed)
	}

	return nil
}
