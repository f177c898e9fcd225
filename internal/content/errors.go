package content

import (
	"fmt"

	"github.com/wovenweb/ragpipe/pkg/failure"
)

// ErrorCause closes the set of ways content extraction can fail outright.
// Extraction otherwise degrades gracefully by populating Warnings rather
// than returning an error.
type ErrorCause string

const (
	ErrCauseDecodeFailure ErrorCause = "decode failure"
	ErrCauseUnsupported   ErrorCause = "unsupported content type"
)

// Error is content's ClassifiedError. Only decode failures are fatal;
// every other extraction weakness is recorded as a Warning on the
// returned model.ExtractedContent instead of raised here.
type Error struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *Error) Error() string {
	return fmt.Sprintf("content: %s: %s", e.Cause, e.Message)
}

func (e *Error) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *Error) IsRetryable() bool { return e.Retryable }
