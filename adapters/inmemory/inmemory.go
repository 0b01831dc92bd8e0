// Package inmemory provides an in-process broker and rpc.Channel.
// It serves tests, examples and the memory:// broker of the CLI.
package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/next-trace/scg-rpc-proxy/codec"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// ErrNoReply makes a Backend swallow a request, as a backend that never answers would.
var ErrNoReply = errors.New("inmemory: no reply")

// Backend serves requests published to one destination. It returns the success
// body, or an error: *berr.RemoteError and rpc.ErrorBody keep their code and
// message, any other error is answered with code RPC_ERROR.
type Backend func(ctx context.Context, req rpc.IncomingRequest) (any, error)

// Broker is a thread-safe in-process message broker.
// It records every published frame for inspection.
type Broker struct {
	mu       sync.RWMutex
	codec    codec.Codec
	backends map[string]Backend
	replies  map[string]rpc.ReplyHandler
	frames   []rpc.Frame
	failErr  error
	extract  rpc.HeaderExtractor
	seq      atomic.Int64
	wg       sync.WaitGroup
}

// NewBroker creates a broker whose backends speak c (the NestJS envelope when nil).
func NewBroker(c codec.Codec) *Broker {
	if c == nil {
		c = codec.Nest{}
	}

	return &Broker{
		codec:    c,
		backends: make(map[string]Backend),
		replies:  make(map[string]rpc.ReplyHandler),
	}
}

// Codec returns the codec used by the broker's backends.
func (b *Broker) Codec() codec.Codec { return b.codec } //nolint:ireturn

// ExtractWith makes backends run with the context e recovers from frame headers.
func (b *Broker) ExtractWith(e rpc.HeaderExtractor) {
	b.mu.Lock()
	b.extract = e
	b.mu.Unlock()
}

// Handle binds a backend to a destination, replacing any previous one.
func (b *Broker) Handle(destination string, fn Backend) {
	b.mu.Lock()
	b.backends[destination] = fn
	b.mu.Unlock()
}

// FailPublishes makes every publish fail with err until called with nil.
func (b *Broker) FailPublishes(err error) {
	b.mu.Lock()
	b.failErr = err
	b.mu.Unlock()
}

// Published returns the frames published to destination, in order.
// An empty destination returns every frame.
func (b *Broker) Published(destination string) []rpc.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []rpc.Frame
	for _, f := range b.frames {
		if destination == "" || f.Destination == destination {
			out = append(out, f)
		}
	}

	return out
}

// Deliver hands a raw frame to the reply handler subscribed on replyTo.
// It reports whether a subscriber existed.
func (b *Broker) Deliver(ctx context.Context, replyTo string, f rpc.Frame) bool {
	b.mu.RLock()
	h, ok := b.replies[replyTo]
	b.mu.RUnlock()

	if !ok {
		return false
	}

	h(ctx, f)

	return true
}

// Reply encodes reply with the broker codec and delivers it to replyTo.
func (b *Broker) Reply(ctx context.Context, replyTo string, reply rpc.Reply) error {
	body, err := b.codec.EncodeReply(reply)
	if err != nil {
		return err
	}

	if !b.Deliver(ctx, replyTo, rpc.Frame{CorrelationID: reply.CorrelationID, Body: body}) {
		return fmt.Errorf("inmemory reply to %q: %w", replyTo, berr.ErrSubscribeFailed)
	}

	return nil
}

// Wait blocks until every backend invocation started so far has finished.
func (b *Broker) Wait() { b.wg.Wait() }

// NewChannel returns a channel with its own reply address. An empty replyTo
// picks a unique one.
func (b *Broker) NewChannel(replyTo string) *Channel {
	if replyTo == "" {
		replyTo = "inmemory.reply." + strconv.FormatInt(b.seq.Add(1), 10)
	}

	return &Channel{b: b, replyTo: replyTo}
}

func (b *Broker) publish(ctx context.Context, f rpc.Frame) error {
	b.mu.Lock()
	if b.failErr != nil {
		err := b.failErr
		b.mu.Unlock()

		return err
	}

	f.Headers = copyHeaders(f.Headers)
	f.Body = append([]byte(nil), f.Body...)
	b.frames = append(b.frames, f)
	be, ok := b.backends[f.Destination]
	extract := b.extract
	b.mu.Unlock()

	if ok {
		sctx := context.WithoutCancel(ctx)
		if extract != nil {
			sctx = extract.Extract(context.Background(), f.Headers)
		}

		b.wg.Add(1)
		go b.serve(sctx, be, f)
	}

	return nil
}

func (b *Broker) serve(ctx context.Context, be Backend, f rpc.Frame) {
	defer b.wg.Done()

	req, err := b.codec.DecodeRequest(f)
	if err != nil {
		return
	}

	result, herr := be(ctx, req)
	if req.CorrelationID == "" || errors.Is(herr, ErrNoReply) {
		return
	}

	reply := rpc.Reply{CorrelationID: req.CorrelationID, Status: rpc.StatusSuccess}
	if herr != nil {
		reply.Status = rpc.StatusFailure
		reply.Body, err = json.Marshal(errorBody(herr))
	} else {
		reply.Body, err = json.Marshal(result)
	}

	if err != nil {
		return
	}

	_ = b.Reply(ctx, req.ReplyTo, reply) //nolint:errcheck // a vanished subscriber means the caller is gone
}

func errorBody(err error) rpc.ErrorBody {
	var re *berr.RemoteError
	if errors.As(err, &re) {
		return rpc.ErrorBody{Code: re.Code, Message: re.Message, Details: re.Details}
	}

	var eb rpc.ErrorBody
	if errors.As(err, &eb) {
		return eb
	}

	return rpc.ErrorBody{Code: "RPC_ERROR", Message: err.Error()}
}

func copyHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}

	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}

	return out
}

// Channel is an rpc.Channel attached to a Broker.
type Channel struct {
	b       *Broker
	replyTo string
	closed  atomic.Bool
}

var _ rpc.Channel = (*Channel)(nil)

func (c *Channel) ReplyTo() string { return c.replyTo }

func (c *Channel) Publish(ctx context.Context, f rpc.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.closed.Load() {
		return fmt.Errorf("inmemory publish: %w", berr.ErrClosed)
	}

	if err := c.b.publish(ctx, f); err != nil {
		return fmt.Errorf("inmemory publish: %w", errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (c *Channel) SubscribeReplies(_ context.Context, h rpc.ReplyHandler) error {
	if h == nil {
		return fmt.Errorf("inmemory subscribe: nil handler: %w", berr.ErrSubscribeFailed)
	}

	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	if _, exists := c.b.replies[c.replyTo]; exists {
		return fmt.Errorf("inmemory subscribe %q: already subscribed: %w", c.replyTo, berr.ErrSubscribeFailed)
	}

	c.b.replies[c.replyTo] = h

	return nil
}

func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.b.mu.Lock()
	delete(c.b.replies, c.replyTo)
	c.b.mu.Unlock()

	return nil
}
