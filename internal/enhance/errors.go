package enhance

import (
	"fmt"

	"github.com/wovenweb/ragpipe/pkg/failure"
)

// ErrorCause closes the set of ways an enhancement call can fail outright.
type ErrorCause string

const (
	ErrCauseUnavailable ErrorCause = "CompletionUnavailable"
	ErrCauseAiParse     ErrorCause = "AiParseError"
	ErrCauseUpstream    ErrorCause = "UpstreamError"
)

// Error is enhance's ClassifiedError.
type Error struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *Error) Error() string {
	return fmt.Sprintf("enhance: %s: %s", e.Cause, e.Message)
}

func (e *Error) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *Error) IsRetryable() bool { return e.Retryable }

var _ failure.ClassifiedError = (*Error)(nil)
