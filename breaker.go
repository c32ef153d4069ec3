package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState int

const (
	// StateClosed means the circuit is closed and calls flow normally.
	StateClosed CircuitBreakerState = iota

	// StateHalfOpen means the circuit is probing whether the dependency has
	// recovered.
	StateHalfOpen

	// StateOpen means the circuit is open and calls are rejected
	// immediately.
	StateOpen
)

// String returns the string representation of the circuit breaker state.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so the state renders as a
// string in JSON snapshots.
func (s CircuitBreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreaker is the per-operation state machine guarding a remote
// dependency. One instance exists per operation name, owned by the Registry;
// all methods are safe for concurrent use.
//
// The Open→HalfOpen transition is lazy: it happens when the state is read
// after the cool-down deadline has passed, not via a background timer. State
// is therefore only accurate as of the last read.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    uint32
	successCount    uint32
	lastFailureTime time.Time
	nextAttemptTime time.Time
}

// NewCircuitBreaker creates a closed breaker for the named operation. Zero
// config fields take the default preset's values. Callers going through the
// engine should not construct breakers directly; the Registry does, so that
// state is shared per operation name.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	config = config.withDefaults()
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: config.Logger,
		now:    config.Clock,
		state:  StateClosed,
	}
}

// Name returns the operation name this breaker guards.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// Config returns the configuration the breaker was created with.
func (b *CircuitBreaker) Config() CircuitBreakerConfig {
	return b.config
}

// State returns the current state, applying the lazy Open→HalfOpen
// transition if the cool-down deadline has passed.
func (b *CircuitBreaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// RecordSuccess records a successful call-level outcome. In the half-open
// state, reaching the success threshold closes the circuit and clears all
// counters and timestamps.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.failureCount = 0
			b.successCount = 0
			b.lastFailureTime = time.Time{}
			b.nextAttemptTime = time.Time{}
			b.transitionLocked(StateClosed)
		}
	default:
		// Counter kept while closed (or for calls finishing after a
		// concurrent trip) but drives no transition.
		b.successCount++
	}
}

// RecordFailure records a failed call-level outcome. Reaching the failure
// threshold while closed, or any failure while half-open, opens the circuit
// and starts a fresh cool-down.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.now()

	switch b.currentStateLocked() {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.tripLocked()
		}
	case StateHalfOpen:
		b.tripLocked()
	default:
		// A call that was in flight when another caller tripped the
		// breaker; the circuit is already open.
		b.failureCount++
	}
}

// Reset forces the breaker back to closed with all counters and timestamps
// cleared, regardless of current state. This is the manual operator
// override.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.successCount = 0
	b.lastFailureTime = time.Time{}
	b.nextAttemptTime = time.Time{}
	b.transitionLocked(StateClosed)
}

// BreakerSnapshot is a point-in-time view of a breaker's observable state.
// Zero timestamps mean the field is unset.
type BreakerSnapshot struct {
	State           CircuitBreakerState `json:"state"`
	FailureCount    uint32              `json:"failure_count"`
	SuccessCount    uint32              `json:"success_count"`
	LastFailureTime time.Time           `json:"last_failure_time"`
	NextAttemptTime time.Time           `json:"next_attempt_time"`
}

// Snapshot returns the breaker's current observable state, applying the lazy
// Open→HalfOpen transition first.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerSnapshot{
		State:           b.currentStateLocked(),
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
		NextAttemptTime: b.nextAttemptTime,
	}
}

func (b *CircuitBreaker) currentStateLocked() CircuitBreakerState {
	if b.state == StateOpen && !b.now().Before(b.nextAttemptTime) {
		b.transitionLocked(StateHalfOpen)
	}
	return b.state
}

// tripLocked opens the circuit with a fresh cool-down deadline.
func (b *CircuitBreaker) tripLocked() {
	b.successCount = 0
	b.nextAttemptTime = b.now().Add(b.config.Timeout)
	b.transitionLocked(StateOpen)
}

func (b *CircuitBreaker) transitionLocked(to CircuitBreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	b.logger.Warn("circuit breaker state changed",
		"name", b.name,
		"from", from.String(),
		"to", to.String())

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}
