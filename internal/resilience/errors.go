package resilience

import (
	"fmt"

	"github.com/wovenweb/ragpipe/pkg/failure"
)

// Error wraps a failure surfaced by one of the resilience wrappers
// (timeout expiry, circuit open, bulkhead saturation) so callers can tell
// it apart from the wrapped operation's own errors.
type Error struct {
	Op        string // "timeout", "circuit_open", "bulkhead", "retry_exhausted"
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resilience: %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("resilience: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *Error) IsRetryable() bool { return e.Retryable }
