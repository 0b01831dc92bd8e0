package errors

import (
	"errors"
	"strings"
)

// Outward GraphQL error codes produced by GraphQLCode.
const (
	GraphQLBadUserInput        = "BAD_USER_INPUT"
	GraphQLUnauthenticated     = "UNAUTHENTICATED"
	GraphQLForbidden           = "FORBIDDEN"
	GraphQLNotFound            = "NOT_FOUND"
	GraphQLConflict            = "CONFLICT"
	GraphQLRequestTimeout      = "REQUEST_TIMEOUT"
	GraphQLUnprocessable       = "UNPROCESSABLE_ENTITY"
	GraphQLTooManyRequests     = "TOO_MANY_REQUESTS"
	GraphQLServiceUnavailable  = "SERVICE_UNAVAILABLE"
	GraphQLInternalServerError = "INTERNAL_SERVER_ERROR"
)

var remoteCodes = map[string]string{
	"BAD_REQUEST":          GraphQLBadUserInput,
	"400":                  GraphQLBadUserInput,
	"UNAUTHENTICATED":      GraphQLUnauthenticated,
	"401":                  GraphQLUnauthenticated,
	"FORBIDDEN":            GraphQLForbidden,
	"403":                  GraphQLForbidden,
	"NOT_FOUND":            GraphQLNotFound,
	"404":                  GraphQLNotFound,
	"RPC_ERROR":            GraphQLInternalServerError,
	"500":                  GraphQLInternalServerError,
	"CONFLICT":             GraphQLConflict,
	"409":                  GraphQLConflict,
	"REQUEST_TIMEOUT":      GraphQLRequestTimeout,
	"408":                  GraphQLRequestTimeout,
	"UNPROCESSABLE_ENTITY": GraphQLUnprocessable,
	"422":                  GraphQLUnprocessable,
	"TOO_MANY_REQUESTS":    GraphQLTooManyRequests,
	"429":                  GraphQLTooManyRequests,
}

// GraphQLCode maps an error returned by a proxy call onto the outward API taxonomy.
// Transport-side failures are "service unavailable"; remote failures are mapped by their code.
func GraphQLCode(err error) string {
	if err == nil {
		return ""
	}

	var re *RemoteError
	if errors.As(err, &re) {
		if code, ok := remoteCodes[strings.ToUpper(strings.TrimSpace(re.Code))]; ok {
			return code
		}

		return GraphQLInternalServerError
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrChannel),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrClosed):
		return GraphQLServiceUnavailable
	case errors.Is(err, ErrUnknownOperation), errors.Is(err, ErrSerializationFailed):
		return GraphQLBadUserInput
	default:
		return GraphQLInternalServerError
	}
}
