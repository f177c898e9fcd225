package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// Bulkhead is a semaphore per logical pool (fetcher, AI) with a
// configured capacity. Acquire also waits on a rate.Limiter built with
// rate.Inf (burst 1), which never delays admission; it only makes Acquire
// fail when ctx is already done.
type Bulkhead struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewBulkhead builds a Bulkhead admitting at most capacity concurrent
// callers. A non-positive capacity disables the bulkhead (always admits).
func NewBulkhead(capacity int) *Bulkhead {
	b := &Bulkhead{limiter: rate.NewLimiter(rate.Inf, 1)}
	if capacity > 0 {
		b.sem = make(chan struct{}, capacity)
	}
	return b
}

// Acquire blocks until a slot is free or ctx is done. Every suspension
// inside Acquire observes ctx.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &Error{Op: "bulkhead", Message: "rate wait cancelled", Retryable: false, Cause: err}
	}
	if b.sem == nil {
		return nil
	}
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return &Error{Op: "bulkhead", Message: "saturated, context cancelled", Retryable: false, Cause: ctx.Err()}
	}
}

// Release frees the slot Acquire took. Must be called exactly once per
// successful Acquire, typically via defer.
func (b *Bulkhead) Release() {
	if b.sem == nil {
		return
	}
	<-b.sem
}
