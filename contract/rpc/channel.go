package rpc

import "context"

// Frame is the unit a Channel moves across the broker boundary.
// Body is already encoded by a Codec; adapters map CorrelationID and ReplyTo
// onto the native transport fields (AMQP properties, NATS reply subject, Kafka headers).
type Frame struct {
	Destination   string
	CorrelationID string
	ReplyTo       string
	Body          []byte
	Headers       map[string]string
}

// ReplyHandler is invoked for every inbound frame on the process reply channel.
// Implementations must be safe for concurrent use and must not block for long.
type ReplyHandler func(ctx context.Context, f Frame)

// Channel is the message channel binding: one broker connection plus the
// process-exclusive reply channel shared by all outbound requests.
//
// Publish returns once the broker accepted the frame; it never waits for a reply.
// SubscribeReplies registers the single reply handler; replies are demultiplexed
// by correlation id only, regardless of which destination produced them.
type Channel interface {
	Publish(ctx context.Context, f Frame) error
	SubscribeReplies(ctx context.Context, h ReplyHandler) error
	ReplyTo() string
	Close() error
}
