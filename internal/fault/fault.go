// Package fault defines the typed error taxonomy shared by the resilience
// layer and the watch use case. Every failure that crosses a component
// boundary is wrapped in an *Error carrying a Kind, so callers can branch on
// the class of failure without string matching.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation indicates a malformed or disallowed target or pattern.
	KindValidation Kind = "validation"

	// KindNetwork indicates a downstream error status or transport failure.
	KindNetwork Kind = "network"

	// KindTimeout indicates an attempt exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindRateLimited indicates a quota was exceeded. RetryAfter is set.
	KindRateLimited Kind = "rate_limited"

	// KindServiceUnavailable indicates a circuit is open. RetryAfter is set.
	KindServiceUnavailable Kind = "service_unavailable"

	// KindExhausted indicates all retry attempts failed. Cause holds the
	// last error.
	KindExhausted Kind = "exhausted"

	// KindNotFound indicates a missing target or resource.
	KindNotFound Kind = "not_found"

	// KindConfiguration indicates an invalid configuration value.
	KindConfiguration Kind = "configuration"
)

// Error is a classified failure. It implements errors.Is against other
// *Error values by Kind, and errors.Unwrap against its Cause.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int           // HTTP status, when the failure came from a response
	RetryAfter time.Duration // set for rate_limited and service_unavailable
	MaxRetries int           // set for exhausted
	BaseDelay  time.Duration // set for exhausted
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %v)", msg, e.RetryAfter)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches two *Error values by Kind, enabling errors.Is(err, &Error{Kind: ...}).
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error with the given kind, message, and cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation creates a validation fault.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Network creates a network fault, optionally carrying an HTTP status.
func Network(message string, statusCode int, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, StatusCode: statusCode, Cause: cause}
}

// Timeout creates a timeout fault.
func Timeout(message string, cause error) *Error {
	return Wrap(KindTimeout, message, cause)
}

// RateLimited creates a rate-limited fault carrying the retry-after hint.
func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// ServiceUnavailable creates a circuit-open fault carrying the retry-after hint.
func ServiceUnavailable(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: message, RetryAfter: retryAfter}
}

// Exhausted creates an operation-exhausted fault wrapping the last error.
func Exhausted(maxRetries int, baseDelay time.Duration, lastErr error) *Error {
	return &Error{
		Kind:       KindExhausted,
		Message:    fmt.Sprintf("all %d attempts failed", maxRetries),
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		Cause:      lastErr,
	}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, or an empty
// Kind otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RetryAfterOf returns the retry-after hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
