// Package resilience provides a resilient execution engine for calls to
// unreliable remote dependencies. It composes a per-operation circuit breaker
// (fail fast after repeated failures, probe for recovery) with a bounded
// exponential-backoff retry loop and an optional fallback chain, and keeps
// breaker state scoped per logical operation name through a process-wide
// registry.
package resilience

import (
	"context"
)

// Operation is an asynchronous unit of work protected by the engine: an HTTP
// call, a database query, a remote procedure. It takes no request value; the
// context carries cancellation and deadlines, which the engine itself never
// imposes.
//
// Example:
//
//	fetchWallet := func(ctx context.Context) (Wallet, error) {
//	    return client.GetWallet(ctx, userID)
//	}
//	wallet, err := resilience.Execute(ctx, exec, "wallet.fetch", fetchWallet)
type Operation[T any] func(ctx context.Context) (T, error)
