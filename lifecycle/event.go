package lifecycle

import (
	"context"
	"errors"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/operations"
	"github.com/next-trace/scg-rpc-proxy/proxy"
)

// Status is the phase a lifecycle event reports.
type Status string

const (
	PreProcessing  Status = "pre-processing"
	Processing     Status = "processing"
	PostProcessing Status = "post-processing"
)

// OrderData is the snapshot carried by an event.
type OrderData struct {
	Destination string `json:"destination"`
	Msg         string `json:"msg,omitempty"`
	Data        any    `json:"data"`
}

// Event is the body published with ORDER_LIFE_CYCLE.
// Error is set on the post-processing event of a failed unit of work.
type Event struct {
	Status    Status         `json:"status"`
	OrderData OrderData      `json:"orderData"`
	Error     *rpc.ErrorBody `json:"error,omitempty"`
}

// Emitter delivers lifecycle events. Delivery is best effort.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NewProxyEmitter publishes events to the order processor as fire-and-forget emits.
func NewProxyEmitter(p *proxy.Proxy[operations.OrderProcessor]) Emitter { //nolint:ireturn
	return EmitterFunc(func(ctx context.Context, ev Event) error {
		return p.OperationsEmit(ctx, operations.OrderLifeCycle, ev)
	})
}

func describe(err error) *rpc.ErrorBody {
	var re *berr.RemoteError
	if errors.As(err, &re) {
		return &rpc.ErrorBody{Code: re.Code, Message: re.Message, Details: re.Details}
	}

	return &rpc.ErrorBody{Code: berr.GraphQLCode(err), Message: err.Error()}
}
