package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/boardsync/internal/ir"
)

// ErrNotModified is returned by a mutation the platform reports as a no-op.
// The dispatcher records it as unchanged.
var ErrNotModified = errors.New("platform: not modified")

// APIError is a failed platform call. StatusCode is zero for transport
// failures that never produced a response.
type APIError struct {
	StatusCode int
	Code       string // platform error type, e.g. NOT_FOUND
	Message    string
	Err        error
}

// TransportError wraps a failure that never produced a response.
func TransportError(err error) *APIError {
	return &APIError{Message: err.Error(), Err: err}
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the status carried by err, or zero.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// IsRetryable reports whether a failed call may succeed on retry: rate
// limiting (403, 429), server errors (5xx) and transport failures with no
// status. Only *APIError is ever retried; cancellation and errors such as
// an undecodable reply are terminal.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch {
	case ae.StatusCode == 0:
		return true
	case ae.StatusCode == http.StatusForbidden, ae.StatusCode == http.StatusTooManyRequests:
		return true
	case ae.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// Reason maps a terminal error to its outcome reason code.
func Reason(err error) ir.Reason {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ir.ReasonCancelled
	}
	switch StatusCode(err) {
	case http.StatusUnauthorized:
		return ir.ReasonUnauthorized
	case http.StatusNotFound:
		return ir.ReasonNotFound
	case http.StatusForbidden, http.StatusTooManyRequests:
		return ir.ReasonRateLimited
	default:
		return ir.ReasonServerError
	}
}
