package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
)

// Concrete NATS connection-backed Client and constructor.

type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	MaxReconnects int
	// ReplySubject overrides the generated process inbox.
	ReplySubject string
	Logger       *slog.Logger
}

const defaultFlushTimeout = 2 * time.Second

// conn is the part of *nats.Conn the client uses.
type conn interface {
	Status() nats.Status
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type natsClient struct {
	nc           conn
	flushTimeout time.Duration
}

// Publish fails fast with ErrChannel unless the connection is up, so a
// reconnecting client never parks a request in its reconnect buffer. The
// flush is bounded by ctx and the flush timeout.
func (c natsClient) Publish(ctx context.Context, subject, reply string, data []byte, headers map[string]string) error {
	if st := c.nc.Status(); st != nats.CONNECTED {
		return fmt.Errorf("%w: nats connection %s", berr.ErrChannel, st)
	}

	msg := &nats.Msg{Subject: subject, Reply: reply, Data: data}

	if len(headers) > 0 {
		msg.Header = nats.Header{}
		for k, v := range headers {
			msg.Header.Set(k, v)
		}
	}

	if err := c.nc.PublishMsg(msg); err != nil {
		return err
	}

	timeout := c.flushTimeout
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}

	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.nc.FlushWithContext(fctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: nats flush after %s: %v", berr.ErrChannel, timeout, err) //nolint:errorlint // the flush deadline is not the caller's
	}

	return nil
}

func (c natsClient) Subscribe(subject string, fn func([]byte, map[string]string)) (func() error, error) {
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		var headers map[string]string
		if len(m.Header) > 0 {
			headers = make(map[string]string, len(m.Header))
			for k, vs := range m.Header {
				if len(vs) > 0 {
					headers[k] = vs[0]
				}
			}
		}

		fn(m.Data, headers)
	})
	if err != nil {
		return nil, err
	}

	return sub.Unsubscribe, nil
}

// NewWithNATS creates a real NATS connection and returns an Adapter and a cleanup.
func NewWithNATS(cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: nats url required", berr.ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}

	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nats connect: %w", berr.ErrChannel, err)
	}

	inbox := cfg.ReplySubject
	if inbox == "" {
		inbox = nc.NewInbox()
	}

	ad := New(natsClient{nc: nc, flushTimeout: cfg.ConnTimeout}, inbox)
	ad.release = func() {
		if !nc.IsClosed() {
			_ = nc.Drain() //nolint:errcheck // best-effort shutdown; cannot return error here
			nc.Close()
		}
	}

	cleanup := func() { _ = ad.Close() }

	return ad, cleanup, nil
}
