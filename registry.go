package resilience

import (
	"sync"
)

// Registry is the process-wide store of circuit breakers, one per operation
// name. It is constructed explicitly and passed by handle (every Executor
// owns or shares one) rather than living as a package singleton, so tests
// and multi-tenant setups can hold isolated registries.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker for name, creating it with config on first
// reference. The first caller's configuration wins for the lifetime of the
// breaker; a differing config on later calls is ignored.
func (r *Registry) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	breaker, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check: another caller may have created it between the locks.
	if breaker, ok := r.breakers[name]; ok {
		return breaker
	}

	breaker = NewCircuitBreaker(name, config)
	r.breakers[name] = breaker
	return breaker
}

// Get returns the breaker for name if one exists.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	breaker, ok := r.breakers[name]
	return breaker, ok
}

// StatsSnapshot returns a point-in-time view of every breaker, keyed by
// operation name. Under concurrent traffic the snapshot is eventually
// consistent: each breaker is read atomically, but not all at the same
// instant.
func (r *Registry) StatsSnapshot() map[string]BreakerSnapshot {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	stats := make(map[string]BreakerSnapshot, len(breakers))
	for _, b := range breakers {
		stats[b.Name()] = b.Snapshot()
	}
	return stats
}

// ResetOne forces the named breaker back to closed. It reports whether a
// breaker with that name existed.
func (r *Registry) ResetOne(name string) bool {
	r.mu.RLock()
	breaker, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	breaker.Reset()
	return true
}

// ResetAll forces every registered breaker back to closed. Breakers stay
// registered; only their state resets.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	for _, b := range breakers {
		b.Reset()
	}
}
