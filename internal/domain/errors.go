package domain

import (
	"errors"
	"fmt"
)

// Configuration errors. Fatal at startup or first use, never retried and
// never converted into a per-request failure.
var (
	ErrMissingSecret   = errors.New("signing secret key is not configured")
	ErrMissingEndpoint = errors.New("provider endpoint URL is not configured")
)

// GatewayError is returned when the provider answered with a non-success
// status. The response body is kept verbatim for diagnostics.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Body)
}

// TransportError wraps a network-level failure reaching the provider (DNS,
// connection refused, timeout).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "provider unreachable: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError is returned when the provider body cannot be parsed
// as a reply envelope. Distinct from a reply without a text bubble, which is
// a valid empty result.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return "malformed provider response: " + e.Err.Error()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
