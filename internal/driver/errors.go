package driver

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ConnectionError reports a transport-level failure talking to the provider:
// connection refused, timeout, or an unparseable response. It is retried by
// the HTTP driver's bounded retry policy before propagating. A structured
// non-2xx provider response is not a ConnectionError; it is returned as a
// DeliveryResult with Accepted=false.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "connection error")
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsConnection reports whether an error is a transport-level failure.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func connectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{
		Message: message,
		Cause:   cause,
	}
}
