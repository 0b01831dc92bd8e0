package kafka_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/next-trace/scg-rpc-proxy/adapters/kafka"
	"github.com/next-trace/scg-rpc-proxy/codec"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/operations"
	"github.com/next-trace/scg-rpc-proxy/proxy"
)

// Unified Kafka adapter tests (single file).

type write struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []write
	err   error
	after func(w write)
}

func (f *fakeWriter) Write(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.mu.Lock()
	w := write{topic, key, value, headers}
	f.calls = append(f.calls, w)
	err, after := f.err, f.after
	f.mu.Unlock()

	if err == nil && after != nil {
		go after(w)
	}

	return err
}

type fakeReader struct {
	mu      sync.Mutex
	topic   string
	fn      func(kafka.Record)
	stopped bool
	err     error
}

func (f *fakeReader) Read(_ context.Context, topic string, fn func(kafka.Record)) (func() error, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	f.topic, f.fn = topic, fn
	f.mu.Unlock()

	return func() error {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()

		return nil
	}, nil
}

func (f *fakeReader) push(r kafka.Record) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		fn(r)
	}
}

func TestKafka_PublishKeysByCorrelationID(t *testing.T) {
	fw := &fakeWriter{}
	ad := kafka.New(fw, &fakeReader{}, "gateway.reply.1")

	f := rpc.Frame{
		Destination:   "organization",
		CorrelationID: "c1",
		ReplyTo:       ad.ReplyTo(),
		Body:          []byte(`{}`),
		Headers:       map[string]string{"h": "1"},
	}
	if err := ad.Publish(t.Context(), f); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(fw.calls) != 1 {
		t.Fatalf("want 1, got %d", len(fw.calls))
	}

	c := fw.calls[0]
	if c.topic != "organization" || string(c.key) != "c1" {
		t.Fatalf("topic/key: %s %s", c.topic, c.key)
	}

	if c.headers["h"] != "1" ||
		c.headers[kafka.HeaderCorrelationID] != "c1" ||
		c.headers[kafka.HeaderReplyTopic] != "gateway.reply.1" {
		t.Fatalf("headers: %+v", c.headers)
	}
}

func TestKafka_EmitIsUnkeyed(t *testing.T) {
	fw := &fakeWriter{}
	ad := kafka.New(fw, &fakeReader{}, "gateway.reply.1")

	if err := ad.Publish(t.Context(), rpc.Frame{Destination: "order-processor", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	c := fw.calls[0]
	if c.key != nil || c.headers[kafka.HeaderReplyTopic] != "" {
		t.Fatalf("emit should be unkeyed and carry no reply topic: %+v", c)
	}
}

func TestKafka_Errors(t *testing.T) {
	ad := kafka.New(nil, nil, "r")
	if err := ad.Publish(t.Context(), rpc.Frame{}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("nil writer: want ErrPublishFailed, got %v", err)
	}

	if err := ad.SubscribeReplies(t.Context(), func(context.Context, rpc.Frame) {}); !errors.Is(err, berr.ErrSubscribeFailed) {
		t.Fatalf("nil reader: want ErrSubscribeFailed, got %v", err)
	}

	fw := &fakeWriter{err: errors.New("leader not available")}
	ad = kafka.New(fw, &fakeReader{err: errors.New("unknown topic")}, "r")

	if err := ad.Publish(t.Context(), rpc.Frame{Destination: "users"}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("want ErrPublishFailed, got %v", err)
	}

	fw.err = context.DeadlineExceeded
	if err := ad.Publish(t.Context(), rpc.Frame{Destination: "users"}); !errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("context errors must propagate as-is, got %v", err)
	}

	if err := ad.SubscribeReplies(t.Context(), func(context.Context, rpc.Frame) {}); !errors.Is(err, berr.ErrSubscribeFailed) {
		t.Fatalf("want ErrSubscribeFailed, got %v", err)
	}
}

func TestKafka_SubscribeFallsBackToKey(t *testing.T) {
	fr := &fakeReader{}
	ad := kafka.New(&fakeWriter{}, fr, "gateway.reply.1")

	got := make(chan rpc.Frame, 2)
	if err := ad.SubscribeReplies(t.Context(), func(_ context.Context, f rpc.Frame) { got <- f }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if fr.topic != "gateway.reply.1" {
		t.Fatalf("read wrong topic %q", fr.topic)
	}

	fr.push(kafka.Record{Key: []byte("k1"), Value: []byte(`{}`)})
	fr.push(kafka.Record{Key: []byte("k2"), Headers: map[string]string{kafka.HeaderCorrelationID: "h2"}})

	if f := <-got; f.CorrelationID != "k1" {
		t.Fatalf("want key fallback, got %+v", f)
	}

	if f := <-got; f.CorrelationID != "h2" {
		t.Fatalf("header should win over key, got %+v", f)
	}

	if err := ad.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !fr.stopped {
		t.Fatal("close should stop the reader")
	}

	if err := ad.Publish(t.Context(), rpc.Frame{}); !errors.Is(err, berr.ErrClosed) {
		t.Fatalf("publish after close: want ErrClosed, got %v", err)
	}
}

func TestKafka_ProxyRoundTrip(t *testing.T) {
	js := codec.JSON{}
	fr := &fakeReader{}
	fw := &fakeWriter{}
	fw.after = func(w write) {
		reply := w.headers[kafka.HeaderReplyTopic]
		if reply == "" {
			return
		}

		req, err := js.DecodeRequest(rpc.Frame{Body: w.value})
		if err != nil {
			return
		}

		body, _ := js.EncodeReply(rpc.Reply{CorrelationID: req.CorrelationID, Status: rpc.StatusSuccess, Body: req.Data})
		fr.push(kafka.Record{Key: w.key, Value: body})
	}

	c, err := proxy.NewClient(t.Context(), kafka.New(fw, fr, "gateway.reply.1"), proxy.WithCodec(js))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer func() { _ = c.Close() }()

	got, err := proxy.Call[map[string]string](t.Context(), proxy.For[operations.Organization](c),
		operations.FindOrganization, map[string]string{"name": "acme"}, proxy.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	if got["name"] != "acme" {
		t.Fatalf("unexpected echo: %+v", got)
	}
}

func TestNewWithKgo_Validation(t *testing.T) {
	if _, _, err := kafka.NewWithKgo(kafka.Config{}); !errors.Is(err, berr.ErrInvalidConfig) {
		t.Fatalf("no brokers: want ErrInvalidConfig, got %v", err)
	}

	cfg := kafka.Config{Brokers: []string{"127.0.0.1:1"}, SASL: &kafka.SASLConfig{Mechanism: "GSSAPI"}}
	if _, _, err := kafka.NewWithKgo(cfg); !errors.Is(err, berr.ErrInvalidConfig) {
		t.Fatalf("bad SASL: want ErrInvalidConfig, got %v", err)
	}
}
