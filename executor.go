package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Executor is the engine's entry point: it sequences breaker gating, the
// retry loop and the fallback chain for each call, and keeps the breaker for
// the operation name updated with the call-level outcome.
//
// An Executor is safe for concurrent use. Calls with different operation
// names never block each other; calls sharing a name share one breaker and
// serialize only their state updates.
type Executor struct {
	registry      *Registry
	logger        *slog.Logger
	retryPolicy   RetryPolicy
	breakerConfig CircuitBreakerConfig
	stats         *executorStats
}

// NewExecutor creates an executor with its own registry, the default retry
// policy and the default breaker config, configurable through options.
//
// Example:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithLogger(logger),
//	    resilience.WithDefaultRetryPolicy(resilience.AggressiveRetryPolicy()),
//	)
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:      NewRegistry(),
		logger:        slog.Default(),
		retryPolicy:   DefaultRetryPolicy(),
		breakerConfig: DefaultCircuitBreakerConfig(),
		stats:         &executorStats{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the breaker registry backing this executor.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// StatsSnapshot returns the per-operation breaker stats, for dashboards.
func (e *Executor) StatsSnapshot() map[string]BreakerSnapshot {
	return e.registry.StatsSnapshot()
}

// ResetOne forces the named operation's breaker back to closed.
func (e *Executor) ResetOne(name string) bool {
	return e.registry.ResetOne(name)
}

// ResetAll forces every breaker back to closed.
func (e *Executor) ResetAll() {
	e.registry.ResetAll()
}

// executeConfig collects the per-call options of one Execute invocation.
type executeConfig[T any] struct {
	retry            *RetryPolicy
	breaker          *CircuitBreakerConfig
	fallbackValue    T
	hasFallbackValue bool
	fallbackOp       Operation[T]
}

// Execute runs op under the breaker registered for name, wrapped in the
// retry loop, with an optional fallback chain:
//
//  1. If the breaker is open, op is never invoked: the fallback operation is
//     tried, then the fallback value, and with neither a
//     *CircuitBreakerOpenError is returned.
//  2. Otherwise op runs through the retry policy. The breaker records
//     exactly one success or failure for the whole call, not one per
//     attempt.
//  3. If the failure trips the breaker open, the fallback chain is consulted
//     as in step 1 with the operation's error preserved as the cause.
//     While the breaker stays closed or half-open a failure propagates
//     directly; the fallback is reserved for the open circuit.
//
// Execute is a package-level function rather than a method because methods
// cannot introduce type parameters.
func Execute[T any](ctx context.Context, e *Executor, name string, op Operation[T], opts ...ExecuteOption[T]) (T, error) {
	var zero T

	var cfg executeConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	breakerConfig := e.breakerConfig
	if cfg.breaker != nil {
		breakerConfig = *cfg.breaker
	}
	if breakerConfig.Logger == nil {
		breakerConfig.Logger = e.logger
	}

	policy := e.retryPolicy
	if cfg.retry != nil {
		policy = *cfg.retry
	}
	if policy.Logger == nil {
		policy.Logger = e.logger
	}

	breaker := e.registry.GetOrCreate(name, breakerConfig)

	if breaker.State() == StateOpen {
		e.logger.Warn("circuit breaker open, short-circuiting call",
			"operation", name)
		e.stats.recordShortCircuit()
		return runFallback(ctx, e, name, &cfg, nil)
	}

	result, err := ExecuteWithRetry(ctx, policy, op)
	if err == nil {
		breaker.RecordSuccess()
		e.stats.recordSuccess()
		return result, nil
	}

	breaker.RecordFailure()
	e.stats.recordFailure(err)

	if breaker.State() == StateOpen {
		e.logger.Warn("call failed and circuit breaker opened",
			"operation", name,
			"error", err)
		return runFallback(ctx, e, name, &cfg, err)
	}

	e.logger.Debug("call failed, circuit breaker below threshold",
		"operation", name,
		"state", breaker.State().String(),
		"error", err)
	return zero, err
}

// Do is the value-less form of Execute for operations that only report an
// error.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error, opts ...ExecuteOption[struct{}]) error {
	_, err := Execute(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// runFallback walks the fallback chain for an open circuit: fallback
// operation first, then the static value, then a typed circuit-open error
// carrying the tripping cause if there was one.
func runFallback[T any](ctx context.Context, e *Executor, name string, cfg *executeConfig[T], cause error) (T, error) {
	var zero T

	if cfg.fallbackOp != nil {
		value, err := cfg.fallbackOp(ctx)
		if err == nil {
			e.logger.Debug("fallback operation succeeded",
				"operation", name)
			return value, nil
		}
		e.logger.Warn("fallback operation failed",
			"operation", name,
			"error", err)
		if cfg.hasFallbackValue {
			return cfg.fallbackValue, nil
		}
		return zero, err
	}

	if cfg.hasFallbackValue {
		return cfg.fallbackValue, nil
	}

	return zero, &CircuitBreakerOpenError{Operation: name, Cause: cause}
}

// executorStats tracks call-level outcomes across all operations.
type executorStats struct {
	mu                 sync.RWMutex
	totalCalls         int64
	totalSuccesses     int64
	totalFailures      int64
	totalShortCircuits int64
	lastCallTime       time.Time
	lastError          error
}

func (s *executorStats) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCalls++
	s.totalSuccesses++
	s.lastCallTime = time.Now()
}

func (s *executorStats) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCalls++
	s.totalFailures++
	s.lastCallTime = time.Now()
	s.lastError = err
}

func (s *executorStats) recordShortCircuit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCalls++
	s.totalShortCircuits++
	s.lastCallTime = time.Now()
}

// ExecutorStats holds aggregate call statistics for an executor.
type ExecutorStats struct {
	// TotalCalls is the number of Execute calls, including short-circuited
	// ones.
	TotalCalls int64

	// TotalSuccesses is the number of calls that returned a result from the
	// primary operation.
	TotalSuccesses int64

	// TotalFailures is the number of calls whose primary operation failed
	// after retries.
	TotalFailures int64

	// TotalShortCircuits is the number of calls rejected by an already-open
	// breaker without invoking the operation.
	TotalShortCircuits int64

	// LastCallTime is the time of the most recent call.
	LastCallTime time.Time

	// LastError is the most recent primary-operation error, if any.
	LastError error
}

// Stats returns a snapshot of the executor's aggregate call statistics. This
// method is thread-safe.
func (e *Executor) Stats() ExecutorStats {
	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()

	return ExecutorStats{
		TotalCalls:         e.stats.totalCalls,
		TotalSuccesses:     e.stats.totalSuccesses,
		TotalFailures:      e.stats.totalFailures,
		TotalShortCircuits: e.stats.totalShortCircuits,
		LastCallTime:       e.stats.lastCallTime,
		LastError:          e.stats.lastError,
	}
}
