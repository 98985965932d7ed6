package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mfsilva/order-ledger/internal/core/domain"
	"github.com/mfsilva/order-ledger/internal/metrics"
	"github.com/mfsilva/order-ledger/internal/port"
)

// OrderService turns an order intent into a durable, stock-consistent order
// row. The local ledger and the remote stock counter cannot be updated in one
// transaction; consistency rests on idempotent adjustments plus compensation.
type OrderService struct {
	store     port.OrderStore
	inventory port.InventoryClient
	guard     *ReconciliationGuard
	events    port.EventPublisher

	producer      string
	adjustTimeout time.Duration
}

func NewOrderService(store port.OrderStore, inventory port.InventoryClient, guard *ReconciliationGuard, events port.EventPublisher, producer string, adjustTimeout time.Duration) *OrderService {
	if adjustTimeout <= 0 {
		adjustTimeout = 10 * time.Second
	}
	return &OrderService{
		store:         store,
		inventory:     inventory,
		guard:         guard,
		events:        events,
		producer:      producer,
		adjustTimeout: adjustTimeout,
	}
}

func adjustKey(orderID int64, revision int) string {
	return fmt.Sprintf("stock-adjust:%d:%d", orderID, revision)
}

func restoreKey(orderID int64) string {
	return fmt.Sprintf("stock-restore:%d", orderID)
}

// detached returns a context that survives the caller aborting the request.
// An in-flight stock adjustment may still land remotely, so it is never torn
// down mid-flight; the order stays PENDING_STOCK for reconciliation instead.
func (s *OrderService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.adjustTimeout)
}

// Create validates availability, commits the local row, then adjusts remote
// stock through the guard. The order reaches CONFIRMED only after the
// decrement is acknowledged.
func (s *OrderService) Create(ctx context.Context, productID int64, quantity int) (*domain.Order, *domain.Product, error) {
	if productID <= 0 || quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: productId and quantity must be positive", domain.ErrValidation)
	}

	product, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		// No local effect yet, nothing to compensate.
		return nil, nil, err
	}
	if product.Stock < quantity {
		return nil, nil, fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientStock, quantity, product.Stock)
	}

	order := domain.NewOrder(productID, quantity, product.Price)
	if err := s.store.Insert(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("%w: insert order: %v", domain.ErrPersistence, err)
	}
	metrics.OrdersCreated.Inc()
	s.publish(ctx, domain.EventOrderPending, order)

	opCtx, cancel := s.detached(ctx)
	defer cancel()

	err = s.guard.Adjust(opCtx, productID, -quantity, adjustKey(order.ID, order.Revision))
	switch {
	case err == nil:
		if _, mErr := s.store.MarkConfirmed(opCtx, order.ID, quantity); mErr != nil {
			// The decrement is acknowledged but the local flip failed; the
			// reconciler replays the same key and confirms later.
			log.Error().Err(mErr).Int64("order_id", order.ID).Msg("failed to mark order confirmed")
			return order, product, fmt.Errorf("%w: mark order confirmed: %v", domain.ErrPersistence, mErr)
		}
		order.Status = domain.StatusConfirmed
		order.ConfirmedQty = quantity
		metrics.OrdersConfirmed.Inc()
		s.publish(ctx, domain.EventOrderConfirmed, order)
		return order, product, nil

	case errors.Is(err, domain.ErrInsufficientStock):
		// Lost the race against another order; no remote effect happened.
		if _, dErr := s.store.Delete(opCtx, order.ID); dErr != nil {
			log.Error().Err(dErr).Int64("order_id", order.ID).Msg("failed to remove rejected order row")
		}
		return nil, nil, err

	default:
		// Outcome unknown. Never guess success; the reconciler owns it now.
		log.Warn().Err(err).Int64("order_id", order.ID).Msg("stock adjustment unacknowledged, order left pending")
		return order, product, err
	}
}

// UpdateQuantity changes a confirmed order's quantity, re-enters
// PENDING_STOCK, and applies the delta adjustment remotely.
func (s *OrderService) UpdateQuantity(ctx context.Context, orderID int64, newQuantity int) (int64, error) {
	if orderID <= 0 || newQuantity <= 0 {
		return 0, fmt.Errorf("%w: id and quantity must be positive", domain.ErrValidation)
	}

	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("%w: load order: %v", domain.ErrPersistence, err)
	}
	if order == nil {
		return 0, domain.ErrOrderNotFound
	}

	switch order.Status {
	case domain.StatusCancelled, domain.StatusFailed:
		return 0, fmt.Errorf("%w: order %d is %s", domain.ErrValidation, orderID, order.Status)
	case domain.StatusPendingStock, domain.StatusCompensating:
		// The previous adjustment is unresolved; changing the target now
		// would make the owed delta ambiguous.
		return 0, fmt.Errorf("%w: order %d has an unresolved stock adjustment", domain.ErrUpstreamUnavailable, orderID)
	}

	delta := newQuantity - order.Quantity
	if delta == 0 {
		return 0, nil
	}

	product, err := s.inventory.GetProduct(ctx, order.ProductID)
	if err != nil {
		return 0, err
	}
	if delta > 0 && product.Stock < delta {
		return 0, fmt.Errorf("%w: requested %d more, available %d", domain.ErrInsufficientStock, delta, product.Stock)
	}

	prevQty, prevTotal, prevStatus := order.Quantity, order.Total, order.Status
	order.SetQuantity(newQuantity)
	order.Revision++
	affected, err := s.store.UpdateQuantity(ctx, orderID, newQuantity, order.Total, order.Revision, domain.StatusPendingStock)
	if err != nil {
		return 0, fmt.Errorf("%w: update quantity: %v", domain.ErrPersistence, err)
	}

	opCtx, cancel := s.detached(ctx)
	defer cancel()

	// A negative delta for a reduction restores stock. The key carries the
	// persisted revision: a retry of this transition replays the same key,
	// while a later return to the same quantity gets a fresh one.
	err = s.guard.Adjust(opCtx, order.ProductID, -delta, adjustKey(orderID, order.Revision))
	switch {
	case err == nil:
		if _, mErr := s.store.MarkConfirmed(opCtx, orderID, newQuantity); mErr != nil {
			log.Error().Err(mErr).Int64("order_id", orderID).Msg("failed to mark order confirmed")
			return affected, fmt.Errorf("%w: mark order confirmed: %v", domain.ErrPersistence, mErr)
		}
		order.ConfirmedQty = newQuantity
		order.Status = domain.StatusConfirmed
		metrics.OrdersConfirmed.Inc()
		s.publish(ctx, domain.EventOrderConfirmed, order)
		return affected, nil

	case errors.Is(err, domain.ErrInsufficientStock):
		// Definitive rejection: nothing was applied, revert to the prior
		// confirmed state. The burned revision stays on the row.
		if _, rErr := s.store.UpdateQuantity(opCtx, orderID, prevQty, prevTotal, order.Revision, prevStatus); rErr != nil {
			log.Error().Err(rErr).Int64("order_id", orderID).Msg("failed to revert quantity after rejection")
		}
		return 0, err

	default:
		// Indeterminate: keep PENDING_STOCK, hand over to the reconciler.
		log.Warn().Err(err).Int64("order_id", orderID).Msg("delta adjustment unacknowledged, order left pending")
		return affected, err
	}
}

// Delete removes an order. A confirmed order needs its stock decrement
// compensated (restored) and acknowledged before the row goes away.
func (s *OrderService) Delete(ctx context.Context, orderID int64) (int64, error) {
	if orderID <= 0 {
		return 0, fmt.Errorf("%w: id must be positive", domain.ErrValidation)
	}

	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("%w: load order: %v", domain.ErrPersistence, err)
	}
	if order == nil {
		return 0, domain.ErrOrderNotFound
	}

	if order.Status == domain.StatusPendingStock && order.EverConfirmed() {
		// A quantity update is still in doubt; the owed delta may have
		// landed remotely. Deleting now would restore only ConfirmedQty and
		// leak the difference, so the reconciler must settle it first.
		return 0, fmt.Errorf("%w: order %d has an unresolved stock adjustment", domain.ErrUpstreamUnavailable, orderID)
	}

	if !order.EverConfirmed() {
		// Never reached CONFIRMED: no acknowledged remote effect to undo.
		affected, dErr := s.store.Delete(ctx, orderID)
		if dErr != nil {
			return 0, fmt.Errorf("%w: delete order: %v", domain.ErrPersistence, dErr)
		}
		s.publish(ctx, domain.EventOrderDeleted, order)
		return affected, nil
	}

	opCtx, cancel := s.detached(ctx)
	defer cancel()

	// COMPENSATING first, so a crash between the restore and the row removal
	// leaves a state the reconciler can finish. A dropped restore would be a
	// permanent stock leak.
	if _, uErr := s.store.UpdateStatus(ctx, orderID, domain.StatusCompensating); uErr != nil {
		return 0, fmt.Errorf("%w: mark order compensating: %v", domain.ErrPersistence, uErr)
	}

	if err := s.guard.Adjust(opCtx, order.ProductID, order.ConfirmedQty, restoreKey(orderID)); err != nil {
		log.Warn().Err(err).Int64("order_id", orderID).Msg("stock restore unacknowledged, delete deferred to reconciler")
		return 0, err
	}
	s.publish(ctx, domain.EventStockRestored, order)

	affected, dErr := s.store.Delete(opCtx, orderID)
	if dErr != nil {
		return 0, fmt.Errorf("%w: delete order: %v", domain.ErrPersistence, dErr)
	}
	s.publish(ctx, domain.EventOrderDeleted, order)
	return affected, nil
}

// GetByID is a pure local read; no remote calls.
func (s *OrderService) GetByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: id must be positive", domain.ErrValidation)
	}
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %v", domain.ErrPersistence, err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", domain.ErrPersistence, err)
	}
	return orders, nil
}

// UpdateStatus is a plain status write preserved from the legacy surface.
// It does not touch remote stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (int64, error) {
	if orderID <= 0 {
		return 0, fmt.Errorf("%w: id must be positive", domain.ErrValidation)
	}
	parsed, ok := domain.ParseStatus(status)
	if !ok {
		return 0, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	affected, err := s.store.UpdateStatus(ctx, orderID, parsed)
	if err != nil {
		return 0, fmt.Errorf("%w: update status: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		return 0, domain.ErrOrderNotFound
	}
	return affected, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *domain.Order) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, domain.Event{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     s.producer,
		OrderID:      order.ID,
		ProductID:    order.ProductID,
		Quantity:     order.Quantity,
		Total:        order.Total,
	})
}
