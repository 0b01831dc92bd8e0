// Package bootstrap wires a configured broker binding, the proxy client and
// the optional lifecycle wrapper into one Gateway.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/next-trace/scg-rpc-proxy/adapters/inmemory"
	"github.com/next-trace/scg-rpc-proxy/adapters/kafka"
	natsad "github.com/next-trace/scg-rpc-proxy/adapters/nats"
	"github.com/next-trace/scg-rpc-proxy/adapters/rabbitmq"
	"github.com/next-trace/scg-rpc-proxy/codec"
	"github.com/next-trace/scg-rpc-proxy/config"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/correlation"
	"github.com/next-trace/scg-rpc-proxy/lifecycle"
	"github.com/next-trace/scg-rpc-proxy/metrics"
	"github.com/next-trace/scg-rpc-proxy/operations"
	"github.com/next-trace/scg-rpc-proxy/proxy"
	"github.com/next-trace/scg-rpc-proxy/tracing"
)

// Gateway is the process-wide set of long-lived collaborators.
type Gateway struct {
	Client *proxy.Client
	// Lifecycle is nil unless lifecycle events are enabled.
	Lifecycle *lifecycle.Wrapper
	// Memory is the in-process broker when the memory binding is used.
	Memory *inmemory.Broker

	registry *correlation.Registry
	closeFn  func()
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	memory  *inmemory.Broker
}

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithMemoryBroker supplies the broker used by the memory binding, typically
// one with backends already registered.
func WithMemoryBroker(b *inmemory.Broker) Option { return func(o *options) { o.memory = b } }

// Open connects the configured broker and builds the gateway.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Gateway, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	ids, err := correlation.GeneratorByName(cfg.IDFormat)
	if err != nil {
		return nil, err
	}

	g := &Gateway{}

	ch, cleanup, err := g.channel(cfg, c, o)
	if err != nil {
		return nil, err
	}

	registry := correlation.NewRegistry(
		correlation.WithLogger(o.logger),
		correlation.WithMetrics(o.metrics),
		correlation.WithMaxInFlight(cfg.MaxInFlight),
	)

	client, err := proxy.NewClient(ctx, ch,
		proxy.WithCodec(c),
		proxy.WithRegistry(registry),
		proxy.WithIDGenerator(ids),
		proxy.WithDefaultTimeout(cfg.DefaultTimeout),
		proxy.WithDestinationNames(cfg.DestinationNames()),
		proxy.WithPropagator(tracing.New(nil)),
		proxy.WithLogger(o.logger),
		proxy.WithMetrics(o.metrics),
	)
	if err != nil {
		registry.Close(nil)
		cleanup()

		return nil, err
	}

	g.Client = client
	g.registry = registry
	g.closeFn = cleanup

	if cfg.Lifecycle {
		g.Lifecycle = lifecycle.New(
			lifecycle.NewProxyEmitter(proxy.For[operations.OrderProcessor](client)),
			lifecycle.WithLogger(o.logger),
			lifecycle.WithMetrics(o.metrics),
			lifecycle.WithEmitTimeout(cfg.EmitTimeout),
		)
	}

	o.logger.Info("gateway ready",
		"broker", cfg.Broker,
		"codec", c.Name(),
		"reply_to", client.ReplyTo(),
		"lifecycle", cfg.Lifecycle,
	)

	return g, nil
}

// Close fails pending calls and releases the broker connection.
func (g *Gateway) Close() error {
	if g.registry != nil {
		g.registry.Close(nil)
	}

	var err error
	if g.Client != nil {
		err = g.Client.Close()
	}

	if g.closeFn != nil {
		g.closeFn()
	}

	return err
}

func (g *Gateway) channel(cfg config.Config, c codec.Codec, o options) (rpc.Channel, func(), error) { //nolint:ireturn
	switch cfg.Broker {
	case config.BrokerMemory:
		b := o.memory
		if b == nil {
			b = inmemory.NewBroker(c)
		}
		g.Memory = b
		ch := b.NewChannel(cfg.ReplyTopic)

		return ch, func() { _ = ch.Close() }, nil
	case config.BrokerNATS:
		return natsad.NewWithNATS(natsad.Config{
			URL:          cfg.BrokerURL,
			Name:         cfg.ClientName,
			ConnTimeout:  cfg.ConnectTimeout,
			ReplySubject: cfg.ReplyTopic,
			Logger:       o.logger,
		})
	case config.BrokerRabbitMQ:
		return rabbitmq.NewWithAMQPConn(rabbitmq.Config{
			URL:         cfg.BrokerURL,
			ConnTimeout: cfg.ConnectTimeout,
			ReplyQueue:  cfg.ReplyTopic,
			PublishWait: cfg.ConnectTimeout,
			ClientName:  cfg.ClientName,
			Logger:      o.logger,
		})
	case config.BrokerKafka:
		return kafka.NewWithKgo(kafka.Config{
			Brokers:    cfg.KafkaBrokers,
			ClientID:   cfg.ClientName,
			ReplyTopic: cfg.ReplyTopic,
			Logger:     o.logger,
		})
	default:
		return nil, nil, fmt.Errorf("broker %q: %w", cfg.Broker, berr.ErrInvalidConfig)
	}
}
