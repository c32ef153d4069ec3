package resilience

import "time"

// HealthStatus represents the health status of a circuit breaker.
// It provides a strongly-typed alternative to map[string]interface{} for health checks.
type HealthStatus struct {
	// Healthy indicates whether the breaker is in a healthy state.
	// True for closed and half-open states, false for open.
	Healthy bool `json:"healthy"`

	// Status is a short string description of the state ("closed",
	// "half-open", "open", "unknown").
	Status string `json:"status"`

	// FailureCount is the breaker's current failure counter.
	FailureCount uint32 `json:"failure_count"`

	// SuccessCount is the breaker's current success counter.
	SuccessCount uint32 `json:"success_count"`

	// LastFailureTime is when the breaker last recorded a failure. Zero if
	// it never has.
	LastFailureTime time.Time `json:"last_failure_time"`

	// NextAttemptTime is when an open breaker will next allow a probe. Zero
	// unless the breaker is open.
	NextAttemptTime time.Time `json:"next_attempt_time"`
}

// GetHealth returns the health status of the circuit breaker.
func (b *CircuitBreaker) GetHealth() HealthStatus {
	return healthFromSnapshot(b.Snapshot())
}

// Health returns the health status of every registered breaker, keyed by
// operation name.
func (e *Executor) Health() map[string]HealthStatus {
	stats := e.registry.StatsSnapshot()
	health := make(map[string]HealthStatus, len(stats))
	for name, snapshot := range stats {
		health[name] = healthFromSnapshot(snapshot)
	}
	return health
}

func healthFromSnapshot(s BreakerSnapshot) HealthStatus {
	var healthy bool
	switch s.State {
	case StateClosed:
		healthy = true
	case StateHalfOpen:
		healthy = true // Degraded but operational
	case StateOpen:
		healthy = false
	}

	return HealthStatus{
		Healthy:         healthy,
		Status:          s.State.String(),
		FailureCount:    s.FailureCount,
		SuccessCount:    s.SuccessCount,
		LastFailureTime: s.LastFailureTime,
		NextAttemptTime: s.NextAttemptTime,
	}
}
