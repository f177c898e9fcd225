package resilience

import (
	"sync"

	"github.com/sony/gobreaker"
)

// breakers is a per-host registry of circuit breakers: a breaker opens
// after Policy.ConsecutiveFailures, half-opens after Policy.OpenDuration
// allowing Policy.HalfOpenProbes through, and closes on success.
type breakers struct {
	mu     sync.Mutex
	byHost map[string]*gobreaker.CircuitBreaker
	policy Policy
}

func newBreakers(policy Policy) *breakers {
	return &breakers{byHost: make(map[string]*gobreaker.CircuitBreaker), policy: policy}
}

func (b *breakers) forHost(host string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byHost[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: b.policy.HalfOpenProbes,
		Timeout:     b.policy.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.policy.ConsecutiveFailures
		},
	})
	b.byHost[host] = cb
	return cb
}

// state reports the current breaker state for host, for diagnostics/tests.
func (b *breakers) state(host string) gobreaker.State {
	return b.forHost(host).State()
}
