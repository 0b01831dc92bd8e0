// Package lifecycle wraps a unit of work with pre- and post-processing
// notifications sent to a side channel.
//
// The wrapper is transparent: Handle returns exactly what the work returned.
// Emission failures, slow emitters and emitter panics are logged and dropped.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/metrics"
	"github.com/next-trace/scg-rpc-proxy/proxy"
)

// DefaultEmitTimeout bounds each event emission.
const DefaultEmitTimeout = time.Second

// Wrapper emits lifecycle events around units of work.
// A nil Wrapper runs the work without emitting anything.
type Wrapper struct {
	emitter     Emitter
	logger      *slog.Logger
	metrics     *metrics.Metrics
	emitTimeout time.Duration
	destination string
}

// Option configures a Wrapper.
type Option func(*Wrapper)

func WithLogger(l *slog.Logger) Option {
	return func(w *Wrapper) {
		if l != nil {
			w.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(w *Wrapper) { w.metrics = m } }

// WithEmitTimeout bounds each emission; d <= 0 keeps the default.
func WithEmitTimeout(d time.Duration) Option {
	return func(w *Wrapper) {
		if d > 0 {
			w.emitTimeout = d
		}
	}
}

// WithDestination sets orderData.destination for work run through Handle.
func WithDestination(name string) Option { return func(w *Wrapper) { w.destination = name } }

// New returns a wrapper emitting through e.
func New(e Emitter, opts ...Option) *Wrapper {
	w := &Wrapper{
		emitter:     e,
		logger:      slog.New(slog.DiscardHandler),
		emitTimeout: DefaultEmitTimeout,
	}

	for _, o := range opts {
		o(w)
	}

	return w
}

// Handle runs work on data between a pre-processing and a post-processing event
// and returns its result and error unchanged. The post-processing event is
// emitted on failure and on panic too; a panic is re-raised afterwards.
func Handle[T, R any](ctx context.Context, w *Wrapper, data T, work func(context.Context, T) (R, error)) (R, error) {
	if w == nil {
		return work(ctx, data)
	}

	return run(ctx, w, w.destination, "", data, work)
}

// Operations performs a proxy call wrapped in lifecycle events whose snapshot
// names the destination queue and the operation.
func Operations[O rpc.Operation](
	ctx context.Context, w *Wrapper, p *proxy.Proxy[O], op O, payload any, opts ...proxy.CallOption,
) (json.RawMessage, error) {
	call := func(ctx context.Context, payload any) (json.RawMessage, error) {
		return p.Operations(ctx, op, payload, opts...)
	}

	if w == nil {
		return call(ctx, payload)
	}

	return run(ctx, w, p.Queue(), op.String(), payload, call)
}

// Notify emits a processing event. It never fails.
func (w *Wrapper) Notify(ctx context.Context, data any) {
	if w == nil {
		return
	}

	w.emit(ctx, Event{Status: Processing, OrderData: OrderData{Destination: w.destination, Data: data}})
}

func run[T, R any](
	ctx context.Context, w *Wrapper, destination, msg string, data T, work func(context.Context, T) (R, error),
) (res R, err error) {
	s := phase{w: w, destination: destination, msg: msg}

	w.emit(ctx, Event{Status: PreProcessing, OrderData: OrderData{Destination: destination, Msg: msg, Data: data}})
	s.to(statePreEmitted)

	defer func() {
		if v := recover(); v != nil {
			s.to(stateFailed)
			w.emit(ctx, s.post(nil, fmt.Errorf("panic: %v", v)))
			s.to(statePostEmitted)
			panic(v)
		}
	}()

	s.to(stateWorking)
	res, err = work(ctx, data)

	if err != nil {
		s.to(stateFailed)
		w.emit(ctx, s.post(nil, err))
	} else {
		w.emit(ctx, s.post(res, nil))
	}

	s.to(statePostEmitted)
	s.to(stateDone)

	return res, err
}

// emit delivers ev within the emit timeout, detached from the cancellation of
// ctx so a canceled caller still produces its post-processing event.
func (w *Wrapper) emit(ctx context.Context, ev Event) {
	if w.emitter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.emitTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- fmt.Errorf("emitter panic: %v", v)
			}
		}()
		done <- w.emitter.Emit(ctx, ev)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		w.logger.Warn("lifecycle event dropped",
			"status", string(ev.Status),
			"destination", ev.OrderData.Destination,
			"msg", ev.OrderData.Msg,
			"err", err,
		)
		w.metrics.RecordLifecycleDrop(string(ev.Status))
	}
}
