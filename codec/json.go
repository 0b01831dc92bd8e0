package codec

import (
	"encoding/json"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// JSON is the native envelope:
// request {"pattern","id","replyTo","data"}, reply {"id","status","body"}.
type JSON struct{}

var _ Codec = JSON{}

type jsonRequest struct {
	Pattern string          `json:"pattern"`
	ID      string          `json:"id,omitempty"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type jsonReply struct {
	ID     string          `json:"id"`
	Status rpc.Status      `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

func (JSON) Name() string { return NameJSON }

func (JSON) EncodeRequest(req rpc.Request) ([]byte, error) {
	data, err := payloadRaw("json encode payload", req.Payload)
	if err != nil {
		return nil, err
	}

	return marshal("json encode request", jsonRequest{
		Pattern: req.Operation,
		ID:      req.CorrelationID,
		ReplyTo: req.ReplyTo,
		Data:    data,
	})
}

func (JSON) DecodeReply(f rpc.Frame) (rpc.Reply, error) {
	var m jsonReply
	if err := unmarshal("json decode reply", f.Body, &m); err != nil {
		return rpc.Reply{}, err
	}

	st := m.Status
	if st != rpc.StatusFailure {
		st = rpc.StatusSuccess
	}

	return rpc.Reply{
		CorrelationID: pick(m.ID, f.CorrelationID),
		Status:        st,
		Body:          m.Body,
	}, nil
}

func (JSON) DecodeRequest(f rpc.Frame) (rpc.IncomingRequest, error) {
	var m jsonRequest
	if err := unmarshal("json decode request", f.Body, &m); err != nil {
		return rpc.IncomingRequest{}, err
	}

	return rpc.IncomingRequest{
		Operation:     m.Pattern,
		CorrelationID: pick(m.ID, f.CorrelationID),
		ReplyTo:       pick(m.ReplyTo, f.ReplyTo),
		Data:          m.Data,
	}, nil
}

func (JSON) EncodeReply(r rpc.Reply) ([]byte, error) {
	st := r.Status
	if st == "" {
		st = rpc.StatusSuccess
	}

	return marshal("json encode reply", jsonReply{ID: r.CorrelationID, Status: st, Body: r.Body})
}
