package domain

import "time"

type Status string

const (
	// StatusPendingStock means the row is durable locally but the matching
	// remote stock adjustment has not been acknowledged yet.
	StatusPendingStock Status = "PENDING_STOCK"
	StatusConfirmed    Status = "CONFIRMED"
	// StatusCompensating marks an order whose stock restore is outstanding;
	// the row must not be removed until the restore is acknowledged.
	StatusCompensating Status = "COMPENSATING"
	StatusCancelled    Status = "CANCELLED"
	StatusFailed       Status = "FAILED"
)

// ParseStatus validates a status token coming from the outside.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPendingStock, StatusConfirmed, StatusCompensating, StatusCancelled, StatusFailed:
		return Status(s), true
	}
	return "", false
}

type Order struct {
	ID        int64
	ProductID int64
	Quantity  int
	// ConfirmedQty is the last quantity whose remote stock decrement was
	// acknowledged. 0 means the order never reached CONFIRMED.
	ConfirmedQty int
	// Revision increments on every quantity change and scopes the
	// adjustment idempotency key: a retry replays the same revision, while
	// distinct transitions (even back to an earlier quantity) never collide.
	Revision  int
	UnitPrice float64
	Total        float64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewOrder(productID int64, quantity int, unitPrice float64) *Order {
	now := time.Now()
	return &Order{
		ProductID: productID,
		Quantity:  quantity,
		Revision:  1,
		UnitPrice: unitPrice,
		Total:     unitPrice * float64(quantity),
		Status:    StatusPendingStock,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetQuantity changes the quantity and recomputes the total from the price
// snapshot, so the two never drift apart.
func (o *Order) SetQuantity(quantity int) {
	o.Quantity = quantity
	o.Total = o.UnitPrice * float64(quantity)
	o.UpdatedAt = time.Now()
}

func (o *Order) EverConfirmed() bool {
	return o.ConfirmedQty > 0
}

// PendingDelta is the remote decrement still owed for this order.
// Negative when a quantity reduction owes a restore.
func (o *Order) PendingDelta() int {
	return o.Quantity - o.ConfirmedQty
}
