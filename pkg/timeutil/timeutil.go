package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest duration in durations, or 0 if empty.
func MaxDuration(durations []time.Duration) time.Duration {
	var max time.Duration
	if len(durations) > 0 {
		max = durations[0]
	}
	for _, d := range durations {
		if d > max {
			max = d
		}
	}
	return max
}

// ComputeJitter returns a uniform random duration in [0, max). It returns 0
// if max is zero or negative.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay computes initialDuration * multiplier^(attempt-1),
// capped at maxDuration, plus a uniform random jitter in [0, jitter).
func ExponentialBackoffDelay(attempt int, jitter time.Duration, rng rand.Rand, backoffParam BackoffParam) time.Duration {
	exponent := float64(attempt - 1)
	delay := float64(backoffParam.InitialDuration()) * math.Pow(backoffParam.Multiplier(), exponent)
	if max := float64(backoffParam.MaxDuration()); max > 0 && delay > max {
		delay = max
	}
	if jitter > 0 {
		delay += float64(rng.Int63n(int64(jitter)))
	}
	return time.Duration(delay)
}
