// Package proxy turns the broker's asynchronous request/reply exchange into a
// blocking call with a timeout, typed errors and exactly-once delivery.
//
// A process builds one Client per broker connection. The Client owns the
// reply subscription and the correlation registry; Proxy values bound to a
// destination are cheap views over it and are meant to be created once at
// startup and injected where needed.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/next-trace/scg-rpc-proxy/codec"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/correlation"
	"github.com/next-trace/scg-rpc-proxy/metrics"
)

// HeaderOperation carries the operation name next to the encoded body.
const HeaderOperation = "x-rpc-operation"

// Client demultiplexes replies of one channel into a correlation registry.
type Client struct {
	ch         rpc.Channel
	codec      codec.Codec
	registry   *correlation.Registry
	ids        correlation.IDGenerator
	timeout    time.Duration
	names      map[rpc.Destination]string
	propagator rpc.HeaderPropagator
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// ownsRegistry is set when NewClient built the registry itself.
	ownsRegistry bool

	closeOnce sync.Once
	closeErr  error
}

// NewClient subscribes to the reply stream of ch and returns the client.
func NewClient(ctx context.Context, ch rpc.Channel, opts ...Option) (*Client, error) {
	if ch == nil {
		return nil, fmt.Errorf("proxy: nil channel: %w", berr.ErrInvalidConfig)
	}

	c := &Client{
		ch:         ch,
		codec:      codec.Nest{},
		ids:        correlation.UUIDGenerator{},
		timeout:    DefaultTimeout,
		names:      make(map[rpc.Destination]string),
		propagator: rpc.NopHeaderPropagator{},
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(c)
	}

	if c.registry == nil {
		c.registry = correlation.NewRegistry(
			correlation.WithLogger(c.logger),
			correlation.WithMetrics(c.metrics),
		)
		c.ownsRegistry = true
	}

	if err := ch.SubscribeReplies(ctx, c.onReply); err != nil {
		if c.ownsRegistry {
			c.registry.Close(nil)
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, fmt.Errorf("proxy: subscribe replies on %q: %w", ch.ReplyTo(), errors.Join(berr.ErrSubscribeFailed, err))
	}

	return c, nil
}

// Registry exposes the correlation registry, mainly for inspection.
func (c *Client) Registry() *correlation.Registry { return c.registry }

// Codec returns the wire envelope in use.
func (c *Client) Codec() codec.Codec { return c.codec } //nolint:ireturn

// ReplyTo returns the reply address stamped on outbound requests.
func (c *Client) ReplyTo() string { return c.ch.ReplyTo() }

// DestinationName resolves the physical queue name of d.
func (c *Client) DestinationName(d rpc.Destination) string {
	if n, ok := c.names[d]; ok {
		return n
	}

	return d.String()
}

// Close closes the channel. When the client built its own registry, every
// pending call fails with ErrClosed; a registry passed with WithRegistry is
// left open for its owner to close.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.ownsRegistry {
			c.registry.Close(nil)
		}

		c.closeErr = c.ch.Close()
	})

	return c.closeErr
}

func (c *Client) onReply(_ context.Context, f rpc.Frame) {
	reply, err := c.codec.DecodeReply(f)
	if err != nil {
		c.logger.Warn("malformed reply frame discarded",
			"correlation_id", f.CorrelationID,
			"codec", c.codec.Name(),
			"err", err,
		)
		c.metrics.RecordMalformedFrame()

		return
	}

	c.registry.Resolve(reply)
}

func (c *Client) publish(ctx context.Context, queue, op string, req rpc.Request, extra map[string]string) error {
	body, err := c.codec.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}

	headers := make(map[string]string, len(extra)+1)
	maps.Copy(headers, extra)
	headers[HeaderOperation] = op
	c.propagator.Inject(ctx, headers)

	f := rpc.Frame{
		Destination:   queue,
		CorrelationID: req.CorrelationID,
		ReplyTo:       req.ReplyTo,
		Body:          body,
		Headers:       headers,
	}

	if err := c.ch.Publish(ctx, f); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return &berr.ChannelError{Destination: queue, Operation: op, Err: err}
	}

	return nil
}
