package port

import (
	"context"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

// OrderStore is the local order table. Each call is a single atomic
// statement; no cross-row transactions are required.
type OrderStore interface {
	// Insert persists a new order and fills in its generated ID.
	Insert(ctx context.Context, order *domain.Order) error

	// GetByID returns nil, nil when the order does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Order, error)

	ListAll(ctx context.Context) ([]domain.Order, error)

	// ListByStatus feeds the reconciliation sweep.
	ListByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Order, error)

	// UpdateQuantity writes quantity, total, revision and status in one
	// statement. The revision must be persisted with the quantity so the
	// reconciler can recompute the adjustment key from the row alone.
	UpdateQuantity(ctx context.Context, id int64, quantity int, total float64, revision int, status domain.Status) (int64, error)

	UpdateStatus(ctx context.Context, id int64, status domain.Status) (int64, error)

	// MarkConfirmed records the acknowledged quantity and flips the order
	// to CONFIRMED atomically.
	MarkConfirmed(ctx context.Context, id int64, confirmedQty int) (int64, error)

	Delete(ctx context.Context, id int64) (int64, error)
}
