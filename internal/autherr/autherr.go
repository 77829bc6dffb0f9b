// Package autherr defines the closed set of error kinds the auth client
// reports. Callers switch on Kind instead of matching message text.
package autherr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind categorizes an auth client error.
type Kind int

const (
	// KindNetwork indicates the request never produced an HTTP response.
	KindNetwork Kind = iota + 1
	// KindTimeout indicates the request exceeded its deadline.
	KindTimeout
	// KindValidation indicates the server rejected the input (bad email, wrong OTP, duplicate user).
	KindValidation
	// KindUnauthorized indicates missing, expired or rejected credentials.
	KindUnauthorized
	// KindServerError indicates a 5xx response or an undecodable reply.
	KindServerError
	// KindStorage indicates local token storage could not be written or verified.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindServerError:
		return "server_error"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified auth error. Message is user-facing.
type Error struct {
	Cause   error
	Message string
	Kind    Kind
	// Status is the HTTP status code, 0 when no response was received
	Status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindTimeout}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind with a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether an operation failing with err may succeed if
// repeated unchanged. Only transport-level failures qualify.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(status int, message string) *Error {
	kind := KindServerError
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = KindUnauthorized
	case status >= 400 && status < 500:
		kind = KindValidation
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &Error{Kind: kind, Message: message, Status: status}
}

// FromTransport classifies an error returned by http.Client.Do.
func FromTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindTimeout, "request timed out", err)
	}
	return Wrap(KindNetwork, "network error occurred", err)
}
