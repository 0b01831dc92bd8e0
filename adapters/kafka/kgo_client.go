package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
)

// Concrete franz-go based constructor, writer and reader.

type SASLConfig struct {
	Mechanism string // only PLAIN is supported
	Username  string
	Password  string
}

type Config struct {
	Brokers     []string
	TLS         *tls.Config
	SASL        *SASLConfig
	Acks        kgo.Acks
	Idempotent  bool
	ClientID    string
	Compression []kgo.CompressionCodec
	// ReplyTopic is read for replies; empty generates gateway.reply.<uuid>.
	ReplyTopic string
	Logger     *slog.Logger
}

type kgoWriter struct{ cl *kgo.Client }

func (w kgoWriter) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}

	return w.cl.ProduceSync(ctx, rec).FirstErr()
}

// kgoReader opens a dedicated consuming client per Read. The reply topic is
// usually brand new, so the consumer may create it and starts at the first
// record stamped at or after the Read call rather than at the log end: the
// first reply can be the record that creates the partition at offset 0.
type kgoReader struct {
	opts   []kgo.Opt
	logger *slog.Logger
	now    func() time.Time
}

func (r kgoReader) Read(_ context.Context, topic string, fn func(Record)) (func() error, error) {
	now := r.now
	if now == nil {
		now = time.Now
	}

	opts := readerOpts(r.opts, topic, now())

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			fetches := cl.PollFetches(ctx)
			if ctx.Err() != nil || fetches.IsClientClosed() {
				return
			}

			fetches.EachError(func(t string, p int32, err error) {
				if !errors.Is(err, context.Canceled) {
					r.logger.Warn("kafka fetch error", "topic", t, "partition", p, "err", err)
				}
			})

			fetches.EachRecord(func(rec *kgo.Record) {
				fn(Record{Key: rec.Key, Value: rec.Value, Headers: recordHeaders(rec.Headers)})
			})
		}
	}()

	stop := func() error {
		cancel()
		wg.Wait()
		cl.Close()

		return nil
	}

	return stop, nil
}

// replyClockSkew widens the start timestamp for backends whose clocks run
// behind ours. Older records on the topic are unknown ids and get discarded.
const replyClockSkew = 5 * time.Second

// readerOpts consumes topic from since onwards, creating it when missing.
func readerOpts(base []kgo.Opt, topic string, since time.Time) []kgo.Opt {
	opts := append([]kgo.Opt{}, base...)

	return append(opts,
		kgo.ConsumeTopics(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AfterMilli(since.Add(-replyClockSkew).UnixMilli())),
	)
}

func recordHeaders(hs []kgo.RecordHeader) map[string]string {
	if len(hs) == 0 {
		return nil
	}

	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}

	return out
}

func baseOpts(cfg Config) ([]kgo.Opt, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}

	if cfg.SASL != nil && cfg.SASL.Mechanism != "" {
		if !strings.EqualFold(cfg.SASL.Mechanism, "PLAIN") {
			return nil, fmt.Errorf("%w: unsupported SASL mechanism %q", berr.ErrInvalidConfig, cfg.SASL.Mechanism)
		}

		opts = append(opts, kgo.SASL(plain.Auth{User: cfg.SASL.Username, Pass: cfg.SASL.Password}.AsMechanism()))
	}

	return opts, nil
}

// NewWithKgo builds a franz-go client based Adapter. The returned cleanup should be called to close the client.
func NewWithKgo(cfg Config) (*Adapter, func(), error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, fmt.Errorf("%w: kafka brokers required", berr.ErrInvalidConfig)
	}

	base, err := baseOpts(cfg)
	if err != nil {
		return nil, nil, err
	}

	produce := append([]kgo.Opt{}, base...)
	produce = append(produce, kgo.AllowAutoTopicCreation())
	if !cfg.Idempotent {
		produce = append(produce, kgo.DisableIdempotentWrite())
	}

	if len(cfg.Compression) > 0 {
		produce = append(produce, kgo.ProducerBatchCompression(cfg.Compression...))
	}

	if cfg.Acks != (kgo.Acks{}) {
		produce = append(produce, kgo.RequiredAcks(cfg.Acks))
	}

	cl, err := kgo.NewClient(produce...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", berr.ErrChannel, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	replyTopic := cfg.ReplyTopic
	if replyTopic == "" {
		replyTopic = "gateway.reply." + uuid.NewString()
	}

	ad := New(kgoWriter{cl: cl}, kgoReader{opts: base, logger: logger}, replyTopic)
	ad.release = cl.Close
	cleanup := func() { _ = ad.Close() }

	return ad, cleanup, nil
}
