package retry

import (
	"time"

	"github.com/wovenweb/ragpipe/pkg/failure"
	"github.com/wovenweb/ragpipe/pkg/timeutil"
)

// RetryParam holds the parameters for retry logic.
// These parameters are passed from outside (e.g., config) and should not
// be known by the retry handler internally.
type RetryParam struct {
	BaseDelay    time.Duration
	Jitter       time.Duration
	RandomSeed   int64
	MaxAttempts  int
	BackoffParam timeutil.BackoffParam
}

// Result carries the outcome of a Retry call: the final value (zero on
// failure), the terminal classified error (nil on success), and how many
// attempts were made.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult builds a successful Result.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

// Value returns the result value. Zero value if the call failed.
func (r Result[T]) Value() T { return r.value }

// Err returns the terminal classified error, or nil on success.
func (r Result[T]) Err() failure.ClassifiedError { return r.err }

// Attempts reports how many attempts Retry made before returning.
func (r Result[T]) Attempts() int { return r.attempts }

// IsFailure reports whether the call ultimately failed.
func (r Result[T]) IsFailure() bool { return r.err != nil }

// IsSuccess reports whether the call ultimately succeeded.
func (r Result[T]) IsSuccess() bool { return r.err == nil }

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(
	baseDelay time.Duration,
	jitter time.Duration,
	randomSeed int64,
	maxAttempts int,
	backoffParam timeutil.BackoffParam,
) RetryParam {
	return RetryParam{
		BaseDelay:    baseDelay,
		Jitter:       jitter,
		RandomSeed:   randomSeed,
		MaxAttempts:  maxAttempts,
		BackoffParam: backoffParam,
	}
}
