package rpc

import "encoding/json"

// Status is the outcome carried by a Reply.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Request is one outbound call before encoding.
// An empty CorrelationID marks a fire-and-forget emit.
type Request struct {
	Operation     string
	CorrelationID string
	ReplyTo       string
	Payload       any
}

// Reply is an inbound message correlated back to a pending call.
// On failure Body holds the encoded ErrorBody.
type Reply struct {
	CorrelationID string
	Status        Status
	Body          json.RawMessage
}

// ErrorBody is the structured error descriptor a backend returns on failure.
type ErrorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error lets a backend return the descriptor as an error value.
func (e ErrorBody) Error() string {
	if e.Message == "" {
		return e.Code
	}

	return e.Code + ": " + e.Message
}

// Failure decodes the error descriptor of a failed reply.
// A body that is not an ErrorBody is kept whole as Details.
func (r Reply) Failure() ErrorBody {
	var eb ErrorBody
	if len(r.Body) == 0 {
		return eb
	}

	if err := json.Unmarshal(r.Body, &eb); err != nil || (eb.Code == "" && eb.Message == "") {
		return ErrorBody{Details: append(json.RawMessage(nil), r.Body...)}
	}

	return eb
}

// IncomingRequest is a decoded request on the backend side of a destination.
type IncomingRequest struct {
	Operation     string
	CorrelationID string
	ReplyTo       string
	Data          json.RawMessage
}
