// Package gwerr defines the gateway's error taxonomy: a small fixed set of
// kinds attached to every error that crosses a package boundary, so the
// pipeline can decide whether to retry, fall back, or surface the error to
// the caller without inspecting provider-specific error types.
package gwerr

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error classes observable in the error envelope.
type Kind string

const (
	InvalidRequest        Kind = "invalid_request"
	Unauthenticated       Kind = "unauthenticated"
	Forbidden             Kind = "forbidden"
	NotFound              Kind = "not_found"
	RateLimited           Kind = "rate_limited"
	ProviderRateLimited   Kind = "provider_rate_limited"
	ProviderTimeout       Kind = "provider_timeout"
	ProviderUnavailable   Kind = "provider_unavailable"
	ContentFiltered       Kind = "content_filtered"
	ContextLengthExceeded Kind = "context_length_exceeded"
	ToolValidationError   Kind = "tool_validation_error"
	UpstreamProtocolError Kind = "upstream_protocol_error"
	CapacityExceeded      Kind = "capacity_exceeded"
	Cancelled             Kind = "cancelled"
	Internal              Kind = "internal"
)

// HTTPStatus returns the status code the pipeline writes for a kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidRequest, ContentFiltered, ContextLengthExceeded, ToolValidationError:
		return 400
	case Unauthenticated:
		return 401
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case RateLimited:
		return 429
	case CapacityExceeded:
		return 503
	case Cancelled:
		return 499
	case Internal, ProviderRateLimited, ProviderTimeout, ProviderUnavailable, UpstreamProtocolError:
		return 500
	default:
		return 500
	}
}

// IsPermanent reports whether errors of this kind must never be retried or
// routed to a fallback candidate.
func IsPermanent(k Kind) bool {
	switch k {
	case InvalidRequest, Unauthenticated, Forbidden, NotFound,
		ContentFiltered, ContextLengthExceeded, ToolValidationError:
		return true
	default:
		return false
	}
}

// IsTransient reports whether the pipeline should treat errors of this kind
// as eligible for fallback to the next routing candidate (subject to
// remaining retries/deadline). rate_limited is deliberately excluded: it is
// a caller throttle, not a signal that another provider would do better.
func IsTransient(k Kind) bool {
	switch k {
	case ProviderRateLimited, ProviderTimeout, ProviderUnavailable, UpstreamProtocolError, CapacityExceeded:
		return true
	default:
		return false
	}
}

// Error is a gateway error carrying a Kind plus an optional underlying
// cause and retry hint.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int64 // milliseconds; 0 if not applicable
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error classifying an existing error under kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRetryAfter sets the retry-after hint (milliseconds) and returns e for chaining.
func (e *Error) WithRetryAfter(ms int64) *Error {
	e.RetryAfter = ms
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to Internal otherwise.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return Internal
}
