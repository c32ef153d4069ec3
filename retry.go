package resilience

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"
)

// ExecuteWithRetry runs op under the policy's bounded retry loop. The
// operation is invoked at most policy.MaxAttempts times; a success on any
// attempt returns immediately, a non-retryable failure short-circuits the
// loop regardless of attempts remaining, and the last error propagates once
// the budget is exhausted. The backoff wait between attempts respects ctx
// cancellation and holds no lock.
func ExecuteWithRetry[T any](ctx context.Context, policy RetryPolicy, op Operation[T]) (T, error) {
	var zero T

	if policy.MaxAttempts < 1 {
		return zero, errors.New("resilience: retry policy needs at least one attempt")
	}

	logger := policy.logger()

	var result T
	attempts := 0

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++

		value, err := op(ctx)
		if err == nil {
			if attempts > 1 {
				logger.Info("operation succeeded after retry",
					"attempts", attempts)
			}
			result = value
			return nil
		}

		if !policy.retryable(err) {
			logger.Debug("non-retryable error, giving up",
				"attempt", attempts,
				"error", err)
			return err
		}

		logger.Debug("retrying operation after backoff",
			"attempt", attempts,
			"delay", policy.Delay(attempts),
			"error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		logger.Warn("operation failed after retries",
			"attempts", attempts,
			"error", err)
		return zero, err
	}

	return result, nil
}
