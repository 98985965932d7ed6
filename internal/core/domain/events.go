package domain

import "time"

const (
	EventOrderPending   = "OrderPendingStock"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderFailed    = "OrderFailed"
	EventOrderDeleted   = "OrderDeleted"
	EventStockRestored  = "StockRestored"
)

// Event is the envelope published on every order lifecycle transition.
type Event struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	OccurredAt   time.Time `json:"occurred_at"`
	Producer     string    `json:"producer"`
	OrderID      int64     `json:"order_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int       `json:"quantity"`
	Total        float64   `json:"total,omitempty"`
}
