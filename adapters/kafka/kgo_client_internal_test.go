package kafka

import (
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

func TestReaderOpts_StartsAtSubscriptionTime(t *testing.T) {
	since := time.UnixMilli(1_760_000_000_000)

	opts := readerOpts([]kgo.Opt{kgo.SeedBrokers("127.0.0.1:1")}, "gateway.reply.test", since)
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer cl.Close()

	off, ok := cl.OptValue(kgo.ConsumeResetOffset).(kgo.Offset)
	if !ok {
		t.Fatalf("reset offset not set: %v", cl.OptValue(kgo.ConsumeResetOffset))
	}

	// A fresh reply topic gets its partition from the first reply, so the
	// log end would skip that reply; a timestamp start keeps it.
	want := since.Add(-replyClockSkew).UnixMilli()
	if got := off.EpochOffset().Offset; got != want {
		t.Fatalf("reset offset %d, want timestamp %d", got, want)
	}
	if end := kgo.NewOffset().AtEnd().EpochOffset().Offset; off.EpochOffset().Offset == end {
		t.Fatal("reader starts at the log end")
	}

	if auto, _ := cl.OptValue(kgo.AllowAutoTopicCreation).(bool); !auto {
		t.Fatal("reader does not create a missing reply topic")
	}

	topics, _ := cl.OptValue(kgo.ConsumeTopics).(map[string]*regexp.Regexp)
	if _, ok := topics["gateway.reply.test"]; !ok || len(topics) != 1 {
		t.Fatalf("unexpected consume topics: %v", topics)
	}
}

func TestKgoReader_StopReturns(t *testing.T) {
	fixed := time.UnixMilli(1_760_000_000_000)
	r := kgoReader{
		opts:   []kgo.Opt{kgo.SeedBrokers("127.0.0.1:1")},
		logger: slog.New(slog.DiscardHandler),
		now:    func() time.Time { return fixed },
	}

	stop, err := r.Read(t.Context(), "gateway.reply.test", func(Record) {})
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
}
