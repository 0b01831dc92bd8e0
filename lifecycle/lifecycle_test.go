package lifecycle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-rpc-proxy/adapters/inmemory"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/lifecycle"
	"github.com/next-trace/scg-rpc-proxy/metrics"
	"github.com/next-trace/scg-rpc-proxy/operations"
	"github.com/next-trace/scg-rpc-proxy/proxy"
)

type recorder struct {
	mu     sync.Mutex
	events []lifecycle.Event
	err    error
}

func (r *recorder) Emit(_ context.Context, ev lifecycle.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)

	return r.err
}

func (r *recorder) statuses() []lifecycle.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]lifecycle.Status, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}

	return out
}

func TestHandle_SuccessIsTransparent(t *testing.T) {
	rec := &recorder{}
	w := lifecycle.New(rec, lifecycle.WithDestination("users"))

	got, err := lifecycle.Handle(t.Context(), w, 21, func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	require.Equal(t, []lifecycle.Status{lifecycle.PreProcessing, lifecycle.PostProcessing}, rec.statuses())
	assert.Equal(t, 21, rec.events[0].OrderData.Data)
	assert.Equal(t, 42, rec.events[1].OrderData.Data)
	assert.Equal(t, "users", rec.events[1].OrderData.Destination)
	assert.Nil(t, rec.events[1].Error)
}

func TestHandle_FailureIsTransparent(t *testing.T) {
	rec := &recorder{}
	w := lifecycle.New(rec)

	want := &berr.RemoteError{Operation: "FIND_USER", Code: "NOT_FOUND", Message: "no such user"}
	_, err := lifecycle.Handle(t.Context(), w, "in", func(context.Context, string) (string, error) {
		return "", want
	})
	require.Same(t, want, err)

	require.Equal(t, []lifecycle.Status{lifecycle.PreProcessing, lifecycle.PostProcessing}, rec.statuses())
	post := rec.events[1]
	require.NotNil(t, post.Error)
	assert.Equal(t, "NOT_FOUND", post.Error.Code)
	assert.Equal(t, "no such user", post.Error.Message)
	assert.Nil(t, post.OrderData.Data)
}

func TestHandle_EmitterFailuresAreSwallowed(t *testing.T) {
	var logs bytes.Buffer
	m := metrics.New()
	rec := &recorder{err: errors.New("side channel down")}
	w := lifecycle.New(rec,
		lifecycle.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		lifecycle.WithMetrics(m),
	)

	got, err := lifecycle.Handle(t.Context(), w, "x", func(_ context.Context, s string) (string, error) { return s + "y", nil })
	require.NoError(t, err)
	assert.Equal(t, "xy", got)
	assert.Contains(t, logs.String(), "lifecycle event dropped")
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifecycleDrops.WithLabelValues("pre-processing")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifecycleDrops.WithLabelValues("post-processing")), 0)
}

func TestHandle_PanickingEmitter(t *testing.T) {
	w := lifecycle.New(lifecycle.EmitterFunc(func(context.Context, lifecycle.Event) error { panic("boom") }))

	got, err := lifecycle.Handle(t.Context(), w, 1, func(_ context.Context, n int) (int, error) { return n, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestHandle_SlowEmitterIsBounded(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	w := lifecycle.New(lifecycle.EmitterFunc(func(ctx context.Context, _ lifecycle.Event) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return ctx.Err()
	}), lifecycle.WithEmitTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := lifecycle.Handle(t.Context(), w, 0, func(context.Context, int) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHandle_PanicStillEmitsPost(t *testing.T) {
	rec := &recorder{}
	w := lifecycle.New(rec)

	assert.PanicsWithValue(t, "work exploded", func() {
		_, _ = lifecycle.Handle(t.Context(), w, 0, func(context.Context, int) (int, error) { panic("work exploded") })
	})

	require.Equal(t, []lifecycle.Status{lifecycle.PreProcessing, lifecycle.PostProcessing}, rec.statuses())
	require.NotNil(t, rec.events[1].Error)
	assert.Contains(t, rec.events[1].Error.Message, "work exploded")
}

func TestHandle_CanceledCallerStillEmitsPost(t *testing.T) {
	rec := &recorder{}
	w := lifecycle.New(lifecycle.EmitterFunc(func(ctx context.Context, ev lifecycle.Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return rec.Emit(ctx, ev)
	}))

	ctx, cancel := context.WithCancel(t.Context())
	_, err := lifecycle.Handle(ctx, w, 0, func(context.Context, int) (int, error) {
		cancel()
		return 0, context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []lifecycle.Status{lifecycle.PreProcessing, lifecycle.PostProcessing}, rec.statuses())
}

func TestHandle_NilWrapperRunsWork(t *testing.T) {
	got, err := lifecycle.Handle(t.Context(), nil, 3, func(_ context.Context, n int) (int, error) { return n + 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestOperations_EmitsAroundProxyCall(t *testing.T) {
	b := inmemory.NewBroker(nil)
	b.Handle("users", func(_ context.Context, req rpc.IncomingRequest) (any, error) {
		return map[string]string{"id": "123", "name": "Ada"}, nil
	})

	var evMu sync.Mutex
	var events []rpc.IncomingRequest
	b.Handle("order-processor", func(_ context.Context, req rpc.IncomingRequest) (any, error) {
		evMu.Lock()
		events = append(events, req)
		evMu.Unlock()

		return nil, nil
	})

	c, err := proxy.NewClient(t.Context(), b.NewChannel(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	w := lifecycle.New(lifecycle.NewProxyEmitter(proxy.For[operations.OrderProcessor](c)))
	users := proxy.For[operations.User](c)

	body, err := lifecycle.Operations(t.Context(), w, users, operations.FindUserByID, map[string]string{"id": "123"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"123","name":"Ada"}`, string(body))

	frames := b.Published("order-processor")
	require.Len(t, frames, 2)
	b.Wait()

	decode := func(f rpc.Frame) lifecycle.Event {
		req, err := b.Codec().DecodeRequest(f)
		require.NoError(t, err)
		assert.Equal(t, "ORDER_LIFE_CYCLE", req.Operation)

		var raw struct {
			Status    lifecycle.Status `json:"status"`
			OrderData struct {
				Destination string          `json:"destination"`
				Msg         string          `json:"msg"`
				Data        json.RawMessage `json:"data"`
			} `json:"orderData"`
		}
		require.NoError(t, json.Unmarshal(req.Data, &raw))

		return lifecycle.Event{
			Status:    raw.Status,
			OrderData: lifecycle.OrderData{Destination: raw.OrderData.Destination, Msg: raw.OrderData.Msg, Data: string(raw.OrderData.Data)},
		}
	}

	pre, post := decode(frames[0]), decode(frames[1])
	assert.Equal(t, lifecycle.PreProcessing, pre.Status)
	assert.Equal(t, "users", pre.OrderData.Destination)
	assert.Equal(t, "FIND_BY_ID_USER", pre.OrderData.Msg)
	assert.JSONEq(t, `{"id":"123"}`, pre.OrderData.Data.(string))

	assert.Equal(t, lifecycle.PostProcessing, post.Status)
	assert.JSONEq(t, `{"id":"123","name":"Ada"}`, post.OrderData.Data.(string))

	evMu.Lock()
	assert.Len(t, events, 2)
	evMu.Unlock()
}

func TestNotify_EmitsProcessing(t *testing.T) {
	rec := &recorder{}
	w := lifecycle.New(rec, lifecycle.WithDestination("organization"))

	w.Notify(t.Context(), map[string]string{})
	require.Equal(t, []lifecycle.Status{lifecycle.Processing}, rec.statuses())
	assert.Equal(t, "organization", rec.events[0].OrderData.Destination)

	var nilW *lifecycle.Wrapper
	nilW.Notify(t.Context(), nil)
}
