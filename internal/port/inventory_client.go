package port

import (
	"context"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

// InventoryClient talks to the remote product/stock service.
type InventoryClient interface {
	// GetProduct returns the current product snapshot.
	// domain.ErrProductNotFound when the id is unknown,
	// domain.ErrUpstreamUnavailable when the service cannot answer.
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// AdjustStock applies a signed stock delta. A replay with a previously
	// used idempotencyKey must return the original outcome instead of
	// applying the delta twice; the remote side owns that guarantee.
	// nil means acknowledged; domain.ErrInsufficientStock is a definitive
	// rejection; domain.ErrUpstreamUnavailable means the outcome is unknown.
	AdjustStock(ctx context.Context, productID int64, delta int, idempotencyKey string) error
}
