package port

import (
	"context"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

// EventPublisher emits order lifecycle events. Publishing is fire-and-forget
// from the service's point of view; delivery failures must not fail the
// business operation.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}
