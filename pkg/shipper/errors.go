package shipper

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a carrier integration failure.
type ErrorKind string

const (
	KindAuthFailed         ErrorKind = "AUTH_FAILED"
	KindRateLimited        ErrorKind = "RATE_LIMITED"
	KindInvalidRequest     ErrorKind = "INVALID_REQUEST"
	KindCarrierUnavailable ErrorKind = "CARRIER_UNAVAILABLE"
	KindMalformedResponse  ErrorKind = "MALFORMED_RESPONSE"
	KindNetworkError       ErrorKind = "NETWORK_ERROR"
	KindTimeout            ErrorKind = "TIMEOUT"
)

// CarrierError represents a classified error from a carrier integration.
// Builders return copies, so a constructed error is never mutated.
type CarrierError struct {
	Carrier    string
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *CarrierError) Error() string {
	prefix := fmt.Sprintf("%s error", e.Carrier)
	if e.Carrier == "" {
		prefix = "carrier error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", prefix, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", prefix, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CarrierError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CarrierError. Errors match by kind.
func (e *CarrierError) Is(target error) bool {
	t, ok := target.(*CarrierError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewCarrierError creates a new CarrierError.
func NewCarrierError(carrier string, kind ErrorKind, message string) *CarrierError {
	return &CarrierError{
		Carrier: carrier,
		Kind:    kind,
		Message: message,
	}
}

// WithCause returns a copy of the error with the given cause.
func (e *CarrierError) WithCause(err error) *CarrierError {
	c := *e
	c.Cause = err
	return &c
}

// WithStatusCode returns a copy of the error carrying an HTTP status code.
func (e *CarrierError) WithStatusCode(code int) *CarrierError {
	c := *e
	c.StatusCode = code
	return &c
}

// Sentinel errors, one per kind. Use with errors.Is.
var (
	// ErrAuthFailed indicates carrier authentication failed.
	ErrAuthFailed = &CarrierError{Kind: KindAuthFailed, Message: "authentication failed"}

	// ErrRateLimited indicates the carrier rate limit was exceeded.
	ErrRateLimited = &CarrierError{Kind: KindRateLimited, Message: "rate limit exceeded"}

	// ErrInvalidRequest indicates the carrier rejected the request.
	ErrInvalidRequest = &CarrierError{Kind: KindInvalidRequest, Message: "invalid request"}

	// ErrCarrierUnavailable indicates the carrier is unavailable or not configured.
	ErrCarrierUnavailable = &CarrierError{Kind: KindCarrierUnavailable, Message: "carrier unavailable"}

	// ErrMalformedResponse indicates the carrier response could not be trusted.
	ErrMalformedResponse = &CarrierError{Kind: KindMalformedResponse, Message: "malformed response"}

	// ErrNetwork indicates a network-level failure talking to the carrier.
	ErrNetwork = &CarrierError{Kind: KindNetworkError, Message: "network error"}

	// ErrTimeout indicates the carrier call timed out.
	ErrTimeout = &CarrierError{Kind: KindTimeout, Message: "request timed out"}
)

// AsCarrierError extracts a CarrierError from an error chain.
func AsCarrierError(err error) (*CarrierError, bool) {
	var carrierErr *CarrierError
	if errors.As(err, &carrierErr) {
		return carrierErr, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or "" if err is unclassified.
func KindOf(err error) ErrorKind {
	if carrierErr, ok := AsCarrierError(err); ok {
		return carrierErr.Kind
	}
	return ""
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindCarrierUnavailable, KindNetworkError, KindTimeout:
		return true
	default:
		return false
	}
}
