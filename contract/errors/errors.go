package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error codes for the rpc contracts. Keep stable; used across adapters, registry and proxy.
const (
	ErrCodeChannel              = "rpc.channel_unavailable"
	ErrCodePublishFailed        = "rpc.publish_failed"
	ErrCodeSubscribeFailed      = "rpc.subscribe_failed"
	ErrCodeSerializationFailed  = "rpc.serialization_failed"
	ErrCodeTimeout              = "rpc.timeout"
	ErrCodeRemote               = "rpc.remote_error"
	ErrCodeDuplicateCorrelation = "rpc.duplicate_correlation"
	ErrCodeCapacityExceeded     = "rpc.capacity_exceeded"
	ErrCodeClosed               = "rpc.closed"
	ErrCodeUnknownOperation     = "rpc.unknown_operation"
	ErrCodeInvalidConfig        = "rpc.invalid_config"
	ErrCodeInvalidCorrelation   = "rpc.invalid_correlation"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrChannel              = Code(ErrCodeChannel)
	ErrPublishFailed        = Code(ErrCodePublishFailed)
	ErrSubscribeFailed      = Code(ErrCodeSubscribeFailed)
	ErrSerializationFailed  = Code(ErrCodeSerializationFailed)
	ErrTimeout              = Code(ErrCodeTimeout)
	ErrRemote               = Code(ErrCodeRemote)
	ErrDuplicateCorrelation = Code(ErrCodeDuplicateCorrelation)
	ErrCapacityExceeded     = Code(ErrCodeCapacityExceeded)
	ErrClosed               = Code(ErrCodeClosed)
	ErrUnknownOperation     = Code(ErrCodeUnknownOperation)
	ErrInvalidConfig        = Code(ErrCodeInvalidConfig)
	ErrInvalidCorrelation   = Code(ErrCodeInvalidCorrelation)
)

// ChannelError reports that a frame could not be handed to the broker.
// It matches ErrChannel and unwraps to the transport cause.
type ChannelError struct {
	Destination string
	Operation   string
	Err         error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %s to %q: %v", ErrCodeChannel, e.Operation, e.Destination, e.Err)
}

func (e *ChannelError) Is(target error) bool { return target == ErrChannel }

func (e *ChannelError) Unwrap() error { return e.Err }

// TimeoutError reports that no reply arrived within the call budget.
type TimeoutError struct {
	Operation     string
	CorrelationID string
	After         time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s (correlation %s) after %s", ErrCodeTimeout, e.Operation, e.CorrelationID, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteError carries the backend's own failure descriptor.
type RemoteError struct {
	Operation     string
	CorrelationID string
	Code          string
	Message       string
	Details       json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %s", ErrCodeRemote, e.Operation, e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// DuplicateCorrelationError reports a correlation id that is already in flight.
type DuplicateCorrelationError struct {
	CorrelationID string
}

func (e *DuplicateCorrelationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeDuplicateCorrelation, e.CorrelationID)
}

func (e *DuplicateCorrelationError) Is(target error) bool { return target == ErrDuplicateCorrelation }
