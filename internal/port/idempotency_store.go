package port

import "context"

// IdempotencyStore remembers idempotency keys whose stock adjustment was
// acknowledged, so a retried operation can short-circuit without a remote
// round trip. It is an optimization on top of the inventory service's own
// replay guarantee, never a substitute for it.
type IdempotencyStore interface {
	// MarkApplied records an acknowledged key. Best effort.
	MarkApplied(ctx context.Context, key string) error

	WasApplied(ctx context.Context, key string) (bool, error)
}
