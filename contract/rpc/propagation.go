package rpc

import "context"

// HeaderPropagator writes request-scoped context (trace ids, baggage) into the
// headers of an outbound frame. Inject must only add keys and must be safe for
// concurrent use.
type HeaderPropagator interface {
	Inject(ctx context.Context, headers map[string]string)
}

// HeaderExtractor is the receiving side of HeaderPropagator.
type HeaderExtractor interface {
	Extract(ctx context.Context, headers map[string]string) context.Context
}

// NopHeaderPropagator leaves headers untouched.
type NopHeaderPropagator struct{}

func (NopHeaderPropagator) Inject(context.Context, map[string]string) {}
