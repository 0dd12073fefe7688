package chat

import (
	"errors"
	"fmt"

	"github.com/OgheneDev/FlowChat/store"
)

// Error codes follow the gRPC code numbers.
const (
	ErrorCodeInvalidArguments  = 3
	ErrorCodeNotFound          = 5
	ErrorCodePermissionDenied  = 7
	ErrorCodeResourceExhausted = 8
	ErrorCodeInternal          = 13
	ErrorCodeUnauthenticated   = 16
)

// Error is reported to the acting connection only.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("code %d: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidArgument(format string, args ...interface{}) *Error {
	return newError(ErrorCodeInvalidArguments, format, args...)
}

func permissionDenied(format string, args ...interface{}) *Error {
	return newError(ErrorCodePermissionDenied, format, args...)
}

// internalError hides the cause from the peer, the message names the failed operation.
func internalError(err error, op string) *Error {
	return &Error{Code: ErrorCodeInternal, Message: "server error " + op, cause: err}
}

// lookupError maps store.ErrNotFound to a not-found error.
func lookupError(err error, what, op string) *Error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrorCodeNotFound, "%s not found", what)
	}
	return internalError(err, op)
}

// AsError converts any error into an *Error, unknown errors become internal errors.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError(err, "processing request")
}

// NewRateLimitError is reported when a connection sends events too fast.
func NewRateLimitError() *Error {
	return newError(ErrorCodeResourceExhausted, "too many requests")
}

func NewInvalidArgumentError(msg string) *Error {
	return &Error{Code: ErrorCodeInvalidArguments, Message: msg}
}
