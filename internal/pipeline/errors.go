package pipeline

import (
	"fmt"

	"github.com/wovenweb/ragpipe/pkg/failure"
)

// ErrorCause closes the set of ways a façade call can fail outright,
// distinct from the per-URL/per-chunk failures that are recorded and
// carried downstream instead of raised.
type ErrorCause string

const (
	ErrCauseInvalidURL  ErrorCause = "InvalidURL"
	ErrCauseFetchFailed ErrorCause = "FetchFailed"
)

// Error is the pipeline package's ClassifiedError.
type Error struct {
	Message string
	Cause   ErrorCause
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline: %s: %s", e.Cause, e.Message)
}

func (e *Error) Severity() failure.Severity { return failure.SeverityFatal }

var _ failure.ClassifiedError = (*Error)(nil)
