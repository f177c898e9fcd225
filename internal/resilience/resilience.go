// Package resilience wraps the HTTP fetcher and AI enhancement calls with
// a fixed composed policy:
// Bulkhead(Retry(CircuitBreaker(Timeout(op)))).
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wovenweb/ragpipe/pkg/failure"
	"github.com/wovenweb/ragpipe/pkg/retry"
	"github.com/wovenweb/ragpipe/pkg/timeutil"
)

// Resilience is one named pool ("fetcher", "ai") of composed wrappers. A
// pipeline builds one per pool and shares it across all workers in that
// pool so the bulkhead capacity and per-host breakers are meaningfully
// shared state.
type Resilience struct {
	pool     string
	policy   Policy
	bulkhead *Bulkhead
	breakers *breakers
}

// New builds a Resilience for the named logical pool.
func New(pool string, policy Policy) *Resilience {
	return &Resilience{
		pool:     pool,
		policy:   policy,
		bulkhead: NewBulkhead(policy.BulkheadCapacity),
		breakers: newBreakers(policy),
	}
}

// BreakerState reports the circuit state for host, for diagnostics.
func (r *Resilience) BreakerState(host string) gobreaker.State {
	return r.breakers.state(host)
}

// Execute runs fn under the full composed policy for host: the bulkhead
// admits it, retry governs attempts, each attempt runs through the
// per-host circuit breaker, and each circuit-breaker invocation is bounded
// by Policy.Timeout. Only transient errors (network, 5xx, 429, timeout;
// judged via fn's ClassifiedError/IsRetryable contract) are retried.
func Execute[T any](ctx context.Context, r *Resilience, host string, fn func(context.Context) (T, failure.ClassifiedError)) (T, error) {
	var zero T

	if err := r.bulkhead.Acquire(ctx); err != nil {
		return zero, err
	}
	defer r.bulkhead.Release()

	cb := r.breakers.forHost(host)
	backoffParam := timeutil.NewBackoffParam(r.policy.BaseDelay, 2.0, 30*time.Second)

	attempt := func() (T, failure.ClassifiedError) {
		callCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()

		raw, err := cb.Execute(func() (interface{}, error) {
			v, cerr := fn(callCtx)
			if cerr != nil {
				return v, cerr
			}
			if callCtx.Err() != nil {
				return v, callCtx.Err()
			}
			return v, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return zero, &Error{Op: "circuit_open", Message: "breaker open for " + host, Retryable: true, Cause: err}
			}
			if cerr, ok := err.(failure.ClassifiedError); ok {
				return zero, cerr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return zero, &Error{Op: "timeout", Message: "call timed out", Retryable: true, Cause: err}
			}
			return zero, &Error{Op: "call", Message: err.Error(), Retryable: true, Cause: err}
		}
		v, _ := raw.(T)
		return v, nil
	}

	result := retry.Retry(retry.NewRetryParam(
		r.policy.BaseDelay,
		r.policy.Jitter,
		r.policy.RandomSeed,
		maxInt(r.policy.RetryCount, 1),
		backoffParam,
	), attempt)

	if result.IsFailure() {
		return zero, result.Err()
	}
	return result.Value(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
