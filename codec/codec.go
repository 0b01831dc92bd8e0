/*
Package codec frames rpc requests and replies for the wire.

Two envelopes are provided: the native JSON envelope and one compatible with
the NestJS microservice transport spoken by the existing backends.
Both implement the client side (EncodeRequest/DecodeReply) used by the proxy and
the server side (DecodeRequest/EncodeReply) used by in-process backends and tests.
*/
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// Codec converts between rpc messages and frame bodies.
type Codec interface {
	Name() string
	EncodeRequest(req rpc.Request) ([]byte, error)
	DecodeReply(f rpc.Frame) (rpc.Reply, error)
	DecodeRequest(f rpc.Frame) (rpc.IncomingRequest, error)
	EncodeReply(r rpc.Reply) ([]byte, error)
}

const (
	NameJSON = "json"
	NameNest = "nest"
)

// ByName returns the codec registered under name. An empty name selects the NestJS envelope.
func ByName(name string) (Codec, error) { //nolint:ireturn
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameNest:
		return Nest{}, nil
	case NameJSON:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("codec %q: %w", name, berr.ErrInvalidConfig)
	}
}

func marshal(label string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, errors.Join(berr.ErrSerializationFailed, err))
	}

	return b, nil
}

func unmarshal(label string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", label, errors.Join(berr.ErrSerializationFailed, err))
	}

	return nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// payloadRaw marshals a payload unless it is already encoded.
func payloadRaw(label string, v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		return marshal(label, v)
	}
}

func pick(primary, fallback string) string {
	if primary != "" {
		return primary
	}

	return fallback
}
