package proxy

import (
	"log/slog"
	"maps"
	"time"

	"github.com/next-trace/scg-rpc-proxy/codec"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/correlation"
	"github.com/next-trace/scg-rpc-proxy/metrics"
)

// DefaultTimeout bounds a call when neither the client nor the call sets one.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the wire envelope. The NestJS envelope is used by default.
func WithCodec(c codec.Codec) Option {
	return func(cl *Client) {
		if c != nil {
			cl.codec = c
		}
	}
}

// WithRegistry shares an existing correlation registry. The caller owns it:
// Client.Close leaves it open, so pending calls on it outlive the client
// until the owner closes the registry.
// When omitted the client builds one from its logger and metrics and closes
// it on Close.
func WithRegistry(r *correlation.Registry) Option { return func(cl *Client) { cl.registry = r } }

// WithIDGenerator sets the process-wide correlation id source.
func WithIDGenerator(g correlation.IDGenerator) Option {
	return func(cl *Client) {
		if g != nil {
			cl.ids = g
		}
	}
}

// WithDefaultTimeout sets the budget of calls that do not pass WithTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithDestinationName maps a logical destination to the physical queue or topic name.
func WithDestinationName(d rpc.Destination, physical string) Option {
	return func(cl *Client) {
		if physical != "" {
			cl.names[d] = physical
		}
	}
}

// WithDestinationNames applies several WithDestinationName mappings.
func WithDestinationNames(names map[rpc.Destination]string) Option {
	return func(cl *Client) {
		for d, n := range names {
			if n != "" {
				cl.names[d] = n
			}
		}
	}
}

// WithPropagator injects context into outbound frame headers.
func WithPropagator(p rpc.HeaderPropagator) Option {
	return func(cl *Client) {
		if p != nil {
			cl.propagator = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(cl *Client) { cl.metrics = m } }

// CallOption tunes a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
	headers map[string]string
}

// WithTimeout overrides the client default for this call. d <= 0 leaves only
// the caller's context to bound the wait.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithHeaders adds transport headers to the outbound frame.
func WithHeaders(h map[string]string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(h))
		}
		maps.Copy(o.headers, h)
	}
}
