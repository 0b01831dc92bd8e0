package codec

import (
	"encoding/json"
	"strconv"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// Nest speaks the NestJS microservice envelope:
// request {"pattern","data","id"} (emits omit id), reply {"id","response","err","isDisposed"}.
type Nest struct{}

var _ Codec = Nest{}

// nestRemoteCode is used when a backend rejects with a bare string.
const nestRemoteCode = "RPC_ERROR"

type nestRequest struct {
	Pattern json.RawMessage `json:"pattern"`
	Data    json.RawMessage `json:"data"`
	ID      string          `json:"id,omitempty"`
}

type nestReply struct {
	ID         string          `json:"id,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Err        json.RawMessage `json:"err,omitempty"`
	IsDisposed bool            `json:"isDisposed"`
}

func (Nest) Name() string { return NameNest }

func (Nest) EncodeRequest(req rpc.Request) ([]byte, error) {
	data, err := payloadRaw("nest encode payload", req.Payload)
	if err != nil {
		return nil, err
	}

	if data == nil {
		data = json.RawMessage("{}")
	}

	pattern, err := marshal("nest encode pattern", req.Operation)
	if err != nil {
		return nil, err
	}

	return marshal("nest encode request", nestRequest{Pattern: pattern, Data: data, ID: req.CorrelationID})
}

func (Nest) DecodeReply(f rpc.Frame) (rpc.Reply, error) {
	var m nestReply
	if err := unmarshal("nest decode reply", f.Body, &m); err != nil {
		return rpc.Reply{}, err
	}

	id := pick(m.ID, f.CorrelationID)
	if !isNull(m.Err) {
		eb := nestError(m.Err)

		body, err := marshal("nest encode error", eb)
		if err != nil {
			return rpc.Reply{}, err
		}

		return rpc.Reply{CorrelationID: id, Status: rpc.StatusFailure, Body: body}, nil
	}

	body := m.Response
	if isNull(body) {
		body = nil
	}

	return rpc.Reply{CorrelationID: id, Status: rpc.StatusSuccess, Body: body}, nil
}

func (Nest) DecodeRequest(f rpc.Frame) (rpc.IncomingRequest, error) {
	var m nestRequest
	if err := unmarshal("nest decode request", f.Body, &m); err != nil {
		return rpc.IncomingRequest{}, err
	}

	// patterns may be objects; keep them verbatim in that case
	var pattern string
	if err := json.Unmarshal(m.Pattern, &pattern); err != nil {
		pattern = string(m.Pattern)
	}

	return rpc.IncomingRequest{
		Operation:     pattern,
		CorrelationID: pick(m.ID, f.CorrelationID),
		ReplyTo:       f.ReplyTo,
		Data:          m.Data,
	}, nil
}

func (Nest) EncodeReply(r rpc.Reply) ([]byte, error) {
	m := nestReply{ID: r.CorrelationID, IsDisposed: true}
	if r.Status == rpc.StatusFailure {
		m.Err = r.Body
		if isNull(m.Err) {
			m.Err = json.RawMessage(strconv.Quote(nestRemoteCode))
		}
	} else {
		m.Response = r.Body
		if isNull(m.Response) {
			m.Response = json.RawMessage("null")
		}
	}

	return marshal("nest encode reply", m)
}

// nestError normalizes the shapes NestJS backends reject with: a bare string,
// an RpcException payload, or an HttpException-like object with status/statusCode.
func nestError(raw json.RawMessage) rpc.ErrorBody {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return rpc.ErrorBody{Code: nestRemoteCode, Message: s}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return rpc.ErrorBody{Code: nestRemoteCode, Message: string(raw)}
	}

	eb := rpc.ErrorBody{Details: append(json.RawMessage(nil), raw...)}
	for _, key := range []string{"code", "codeError", "status", "statusCode"} {
		if c := scalar(obj[key]); c != "" {
			eb.Code = c
			break
		}
	}

	if eb.Code == "" {
		eb.Code = nestRemoteCode
	}

	eb.Message = scalar(obj["message"])

	return eb
}

func scalar(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}
