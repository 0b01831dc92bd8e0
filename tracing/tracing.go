// Package tracing bridges OpenTelemetry context propagation onto frame headers,
// so a backend can continue the trace of the resolver that issued the call.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// Propagator implements rpc.HeaderPropagator over an OpenTelemetry TextMapPropagator.
type Propagator struct {
	tm propagation.TextMapPropagator
}

var (
	_ rpc.HeaderPropagator = Propagator{}
	_ rpc.HeaderExtractor  = Propagator{}
)

// New wraps tm. A nil tm uses the global propagator, resolved on every call, so
// one installed later with otel.SetTextMapPropagator still applies.
func New(tm propagation.TextMapPropagator) Propagator {
	if tm == nil {
		tm = otel.GetTextMapPropagator()
	}

	return Propagator{tm: tm}
}

// Default is W3C trace context plus baggage.
func Default() propagation.TextMapPropagator { //nolint:ireturn
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func (p Propagator) Inject(ctx context.Context, headers map[string]string) {
	if headers == nil || p.tm == nil {
		return
	}

	p.tm.Inject(ctx, propagation.MapCarrier(headers))
}

// Extract is the backend side of Inject.
func (p Propagator) Extract(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 || p.tm == nil {
		return ctx
	}

	return p.tm.Extract(ctx, propagation.MapCarrier(headers))
}
