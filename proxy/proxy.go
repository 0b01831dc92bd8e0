package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/correlation"
	"github.com/next-trace/scg-rpc-proxy/metrics"
)

// Proxy is the call surface of one destination. It only accepts operations of
// type O, so a proxy bound to the users queue cannot send a role operation.
type Proxy[O rpc.Operation] struct {
	c           *Client
	destination rpc.Destination
	queue       string
}

// For returns the proxy for O's destination. O must be a concrete operation
// type whose zero value reports its destination.
func For[O rpc.Operation](c *Client) *Proxy[O] {
	var zero O
	d := zero.Destination()

	return &Proxy[O]{c: c, destination: d, queue: c.DestinationName(d)}
}

// Dynamic returns a proxy for d that takes operations resolved at runtime,
// for tooling that receives operation names as text. Operations declared for
// another destination are rejected.
func Dynamic(c *Client, d rpc.Destination) *Proxy[rpc.Operation] {
	return &Proxy[rpc.Operation]{c: c, destination: d, queue: c.DestinationName(d)}
}

// Destination returns the logical destination of the proxy.
func (p *Proxy[O]) Destination() rpc.Destination { return p.destination }

// Queue returns the physical queue or topic the proxy publishes to.
func (p *Proxy[O]) Queue() string { return p.queue }

// Operations publishes op with payload and waits for the correlated reply.
//
// It returns the raw success body, or one of: *berr.ChannelError when the
// frame could not be published, *berr.TimeoutError when no reply arrived in
// time, *berr.RemoteError when the backend answered with a failure, or
// ctx.Err() when the caller gave up. A reply for an abandoned call is
// discarded as late.
func (p *Proxy[O]) Operations(ctx context.Context, op O, payload any, opts ...CallOption) (json.RawMessage, error) {
	co := callOptions{timeout: p.c.timeout}
	for _, o := range opts {
		o(&co)
	}

	name := nameOf(op)
	if !p.accepts(op) {
		p.c.metrics.RecordCall(p.queue, name, metrics.OutcomeRejected, 0)
		return nil, fmt.Errorf("operations %q on %s: %w", name, p.destination, berr.ErrUnknownOperation)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := p.c.ids.NewID()
	start := time.Now()

	pc, err := p.c.registry.Register(correlation.Entry{
		CorrelationID: id,
		Destination:   p.queue,
		Operation:     name,
		Timeout:       co.timeout,
	})
	if err != nil {
		p.c.metrics.RecordCall(p.queue, name, metrics.OutcomeRejected, 0)
		return nil, err
	}

	req := rpc.Request{Operation: name, CorrelationID: id, ReplyTo: p.c.ch.ReplyTo(), Payload: payload}
	if err := p.c.publish(ctx, p.queue, name, req, co.headers); err != nil {
		p.c.registry.Cancel(id, err)
		p.record(name, id, outcomeOf(ctx, err), start, err)

		return nil, err
	}

	reply, err := pc.Wait(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if !p.c.registry.Cancel(id, err) {
			// lost the race against a reply or the timer; report that outcome
			<-pc.Done()
			o, _ := pc.Result()
			reply, err = o.Reply, o.Err
		}
	}

	p.record(name, id, outcomeOf(ctx, err), start, err)
	if err != nil {
		return nil, err
	}

	return reply.Body, nil
}

// OperationsEmit publishes op without registering a pending call. It returns
// once the broker accepted the frame and never waits for a reply.
func (p *Proxy[O]) OperationsEmit(ctx context.Context, op O, payload any, opts ...CallOption) error {
	var co callOptions
	for _, o := range opts {
		o(&co)
	}

	name := nameOf(op)
	if !p.accepts(op) {
		p.c.metrics.RecordEmit(p.queue, name, berr.ErrUnknownOperation)
		return fmt.Errorf("emit %q on %s: %w", name, p.destination, berr.ErrUnknownOperation)
	}

	err := p.c.publish(ctx, p.queue, name, rpc.Request{Operation: name, Payload: payload}, co.headers)
	p.c.metrics.RecordEmit(p.queue, name, err)

	if err != nil {
		p.c.logger.Warn("emit failed", "destination", p.queue, "operation", name, "err", err)
	}

	return err
}

func (p *Proxy[O]) accepts(op O) bool {
	if any(op) == nil {
		return false
	}

	return op.Valid() && op.Destination() == p.destination
}

func nameOf[O rpc.Operation](op O) string {
	if any(op) == nil {
		return ""
	}

	return op.String()
}

func (p *Proxy[O]) record(op, id, outcome string, start time.Time, err error) {
	p.c.metrics.RecordCall(p.queue, op, outcome, time.Since(start))

	switch outcome {
	case metrics.OutcomeSuccess:
		p.c.logger.Debug("call resolved", "destination", p.queue, "operation", op, "correlation_id", id)
	case metrics.OutcomeTimeout, metrics.OutcomeChannelError:
		p.c.logger.Warn("call failed",
			"destination", p.queue,
			"operation", op,
			"correlation_id", id,
			"outcome", outcome,
			"err", err,
		)
	default:
		p.c.logger.Debug("call failed",
			"destination", p.queue,
			"operation", op,
			"correlation_id", id,
			"outcome", outcome,
			"err", err,
		)
	}
}

func outcomeOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, berr.ErrRemote):
		return metrics.OutcomeRemoteError
	case errors.Is(err, berr.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, berr.ErrSerializationFailed):
		// the request never left the process
		return metrics.OutcomeRejected
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeChannelError
	}
}

// Call runs Operations and decodes the success body into R.
// An empty or null body leaves R at its zero value.
func Call[R any, O rpc.Operation](ctx context.Context, p *Proxy[O], op O, payload any, opts ...CallOption) (R, error) {
	var out R

	raw, err := p.Operations(ctx, op, payload, opts...)
	if err != nil {
		return out, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		var zero R
		return zero, fmt.Errorf("decode %s reply: %w", op.String(), errors.Join(berr.ErrSerializationFailed, err))
	}

	return out, nil
}
