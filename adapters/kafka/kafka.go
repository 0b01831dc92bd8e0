// Package kafka binds rpc.Channel to Kafka topics.
//
// Requests are produced to the destination topic keyed by correlation id,
// with the headers the NestJS Kafka transport reads (kafka_correlationId,
// kafka_replyTopic). Replies are read from one reply topic per process.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

const (
	HeaderCorrelationID = "kafka_correlationId"
	HeaderReplyTopic    = "kafka_replyTopic"
)

// Record is one consumed Kafka record.
type Record struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Writer is a minimal Kafka-like writer interface.
// Users can adapt franz-go or any other client to this.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Reader streams the records of one topic to fn until stop is called.
type Reader interface {
	Read(ctx context.Context, topic string, fn func(Record)) (stop func() error, err error)
}

// Adapter implements rpc.Channel using an injected Writer and Reader.
type Adapter struct {
	Writer Writer
	Reader Reader

	replyTopic string
	mu         sync.Mutex
	stop       func() error
	closed     bool
	release    func()
}

var _ rpc.Channel = (*Adapter)(nil)

// New creates a new Kafka adapter reading replies from replyTopic.
func New(w Writer, r Reader, replyTopic string) *Adapter {
	return &Adapter{Writer: w, Reader: r, replyTopic: replyTopic}
}

func (a *Adapter) ReplyTo() string { return a.replyTopic }

func (a *Adapter) Publish(ctx context.Context, f rpc.Frame) error {
	if err := a.ready(ctx, a.Writer == nil, berr.ErrPublishFailed, "publish"); err != nil {
		return err
	}

	headers := make(map[string]string, len(f.Headers)+2)
	maps.Copy(headers, f.Headers)

	var key []byte
	if f.CorrelationID != "" {
		key = []byte(f.CorrelationID)
		headers[HeaderCorrelationID] = f.CorrelationID
	}

	if f.ReplyTo != "" {
		headers[HeaderReplyTopic] = f.ReplyTo
	}

	if err := a.Writer.Write(ctx, f.Destination, key, f.Body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// separate return from preceding multi-line block (wsl)
		return fmt.Errorf("kafka publish write %q: %w", f.Destination, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) SubscribeReplies(ctx context.Context, h rpc.ReplyHandler) error {
	if err := a.ready(ctx, a.Reader == nil, berr.ErrSubscribeFailed, "subscribe"); err != nil {
		return err
	}

	if h == nil || a.replyTopic == "" {
		return fmt.Errorf("kafka subscribe: handler and reply topic required: %w", berr.ErrSubscribeFailed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stop != nil {
		return fmt.Errorf("kafka subscribe %q: already subscribed: %w", a.replyTopic, berr.ErrSubscribeFailed)
	}

	topic := a.replyTopic
	stop, err := a.Reader.Read(ctx, topic, func(r Record) {
		id := r.Headers[HeaderCorrelationID]
		if id == "" {
			id = string(r.Key)
		}

		h(context.Background(), rpc.Frame{Destination: topic, CorrelationID: id, Body: r.Value, Headers: r.Headers})
	})
	if err != nil {
		return fmt.Errorf("kafka subscribe %q: %w", topic, errors.Join(berr.ErrSubscribeFailed, err))
	}

	a.stop = stop

	return nil
}

// Close stops the reply reader and releases the clients when the adapter owns them.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}

	a.closed = true
	stop, release := a.stop, a.release
	a.stop = nil
	a.mu.Unlock()

	var err error
	if stop != nil {
		err = stop()
	}

	if release != nil {
		release()
	}

	return err
}

func (a *Adapter) ready(ctx context.Context, missing bool, base error, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if missing {
		return fmt.Errorf("kafka %s: %w", label, base)
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()

	if closed {
		return fmt.Errorf("kafka %s: %w", label, berr.ErrClosed)
	}

	return nil
}
