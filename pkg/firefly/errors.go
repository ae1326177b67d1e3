package firefly

import (
	"errors"
	"fmt"
	"net"
)

// ConfigError reports a base URL or request path that cannot form a valid URL.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("firefly: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a request that produced no usable response:
// connection failures, timeouts and truncated bodies.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("firefly: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// APIError is returned for any non-2xx status. Body is the raw response
// text; Firefly III puts its error message there.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firefly: unexpected status %d: %s", e.StatusCode, e.Body)
}

// DecodeError is returned when a 2xx body is not valid JSON.
type DecodeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("firefly: decode response: %v - %s", e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsAPIError reports whether err wraps an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
