package resilience

import (
	"log/slog"
	"time"
)

// CircuitBreakerConfig holds circuit breaker configuration. The zero value of
// any field is replaced with the default preset's value when the breaker is
// created, so partially filled configs are safe.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of call-level failures in the closed
	// state that opens the circuit.
	// Default: 5
	FailureThreshold uint32

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state that closes the circuit again.
	// Default: 3
	SuccessThreshold uint32

	// Timeout is the cool-down period of the open state. Once it elapses the
	// breaker reports half-open on the next state read; there is no
	// background timer.
	// Default: 60 seconds
	Timeout time.Duration

	// OnStateChange is called whenever the breaker changes state. It runs
	// with the breaker's lock held and must not call back into the breaker.
	OnStateChange func(name string, from, to CircuitBreakerState)

	// Logger for breaker state transitions.
	// Default: slog.Default()
	Logger *slog.Logger

	// Clock supplies the current time. Tests inject a fake clock here to
	// drive the open-state cool-down deterministically.
	// Default: time.Now
	Clock func() time.Time
}

// DefaultCircuitBreakerConfig returns the standard breaker preset:
// open after 5 failures, close after 3 half-open successes, 60s cool-down.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
	}
}

// AggressiveCircuitBreakerConfig trips early and probes early. Suited to
// dependencies with cheap fallbacks where failing fast matters more than
// giving the dependency the benefit of the doubt.
func AggressiveCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// LenientCircuitBreakerConfig tolerates long failure streaks and backs off
// for a long time once open. Suited to dependencies that are slow to recover.
func LenientCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 10,
		SuccessThreshold: 5,
		Timeout:          300 * time.Second,
	}
}

// withDefaults fills zero fields from the default preset.
func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// RetryPolicy configures the bounded retry loop. A policy is immutable once
// handed to ExecuteWithRetry and may be shared across calls.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of invocations of the operation,
	// including the initial one. Must be at least 1.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	// Default: 500ms
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	// Default: 10 seconds
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential growth factor. Values below 1 are
	// treated as 1 (constant delay).
	// Default: 2.0
	BackoffMultiplier float64

	// IsRetryable decides whether a failure is worth reattempting.
	// Default: IsRetryable (the package-level kind classifier).
	IsRetryable func(err error) bool

	// Logger for retry decisions.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultRetryPolicy returns the standard retry preset:
// 3 attempts, 500ms base delay doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// AggressiveRetryPolicy retries often with short, slowly growing delays.
func AggressiveRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         200 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// ConservativeRetryPolicy retries once with long, steeply growing delays.
func ConservativeRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       2,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 3.0,
	}
}

func (p RetryPolicy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p RetryPolicy) retryable(err error) bool {
	if p.IsRetryable != nil {
		return p.IsRetryable(err)
	}
	return IsRetryable(err)
}

// ExecutorOption is a functional option for configuring an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	exec := resilience.NewExecutor(resilience.WithLogger(logger))
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRegistry makes the executor use an existing breaker registry instead of
// creating its own. Executors sharing a registry share breaker state for the
// same operation names.
func WithRegistry(registry *Registry) ExecutorOption {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithDefaultRetryPolicy sets the retry policy used by Execute calls that do
// not carry a WithRetryPolicy override.
func WithDefaultRetryPolicy(policy RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.retryPolicy = policy
	}
}

// WithDefaultBreakerConfig sets the breaker config used when Execute first
// creates a breaker for an operation name without a WithBreakerConfig
// override.
func WithDefaultBreakerConfig(config CircuitBreakerConfig) ExecutorOption {
	return func(e *Executor) {
		e.breakerConfig = config
	}
}

// ExecuteOption is a functional option for a single Execute call.
type ExecuteOption[T any] func(*executeConfig[T])

// WithRetryPolicy overrides the executor's default retry policy for this
// call.
func WithRetryPolicy[T any](policy RetryPolicy) ExecuteOption[T] {
	return func(c *executeConfig[T]) {
		c.retry = &policy
	}
}

// WithBreakerConfig sets the breaker config used if this call is the first to
// reference the operation name. A breaker that already exists keeps its
// original configuration; the override is ignored.
func WithBreakerConfig[T any](config CircuitBreakerConfig) ExecuteOption[T] {
	return func(c *executeConfig[T]) {
		c.breaker = &config
	}
}

// WithFallbackValue supplies a static result returned when the circuit is
// open (or opens as a result of this call) and no fallback operation
// succeeds.
//
// Example:
//
//	menu, err := resilience.Execute(ctx, exec, "menu.fetch", fetchMenu,
//	    resilience.WithFallbackValue(cachedMenu))
func WithFallbackValue[T any](value T) ExecuteOption[T] {
	return func(c *executeConfig[T]) {
		c.fallbackValue = value
		c.hasFallbackValue = true
	}
}

// WithFallbackOperation supplies a degraded-mode operation invoked when the
// circuit is open (or opens as a result of this call). If it fails too, the
// fallback value applies if present, otherwise its error propagates.
func WithFallbackOperation[T any](op Operation[T]) ExecuteOption[T] {
	return func(c *executeConfig[T]) {
		c.fallbackOp = op
	}
}
