package resilience

import "time"

// Policy configures every wrapper resilience.Resilience composes around a
// call. Composition order is fixed:
// Bulkhead(Retry(CircuitBreaker(Timeout(op)))).
type Policy struct {
	// Timeout bounds a single attempt of the wrapped operation.
	Timeout time.Duration

	// RetryCount is the maximum number of attempts (n in 2^n*100ms,
	// capped at 30s), sourced from CrawlOptions.RetryCount.
	RetryCount int
	BaseDelay  time.Duration
	Jitter     time.Duration
	RandomSeed int64

	// CircuitBreaker: opens after ConsecutiveFailures, half-opens after
	// OpenDuration allowing HalfOpenProbes requests through.
	ConsecutiveFailures uint32
	OpenDuration        time.Duration
	HalfOpenProbes      uint32

	// Bulkhead caps in-flight calls per logical pool ("fetcher", "ai").
	BulkheadCapacity int
}

// DefaultPolicy is the production default for both pools.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:             30 * time.Second,
		RetryCount:          3,
		BaseDelay:           100 * time.Millisecond,
		Jitter:              50 * time.Millisecond,
		RandomSeed:          1,
		ConsecutiveFailures: 5,
		OpenDuration:        30 * time.Second,
		HalfOpenProbes:      1,
		BulkheadCapacity:    10,
	}
}
