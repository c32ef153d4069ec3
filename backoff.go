package resilience

import (
	"math"
	"time"

	"github.com/sethvargo/go-retry"
)

// Delay returns the backoff delay applied after the attempt-th failed try,
// with attempt counted from 1:
//
//	delay = BaseDelay * BackoffMultiplier^(attempt-1), capped at MaxDelay
//
// The calculation is pure and deterministic; the engine adds no jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if delay > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// backoff adapts the policy to a retry.Backoff bounded at MaxAttempts-1
// retries. The returned value carries attempt state and is only valid for a
// single ExecuteWithRetry call.
func (p RetryPolicy) backoff() retry.Backoff {
	maxRetries := p.MaxAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempt := 0
	return retry.WithMaxRetries(uint64(maxRetries), retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return p.Delay(attempt), false
	}))
}
