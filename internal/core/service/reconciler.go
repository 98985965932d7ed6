package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mfsilva/order-ledger/internal/core/domain"
	"github.com/mfsilva/order-ledger/internal/metrics"
	"github.com/mfsilva/order-ledger/internal/port"
)

// Reconciler resolves orders whose remote stock effect is in doubt. It
// re-issues the owed adjustment with the original idempotency key, so an
// adjustment that landed remotely but lost its acknowledgment is recognized
// as already applied instead of reapplied.
type Reconciler struct {
	store  port.OrderStore
	guard  *ReconciliationGuard
	events port.EventPublisher

	producer string
	interval time.Duration
	// grace keeps the sweep away from adjustments that are still in flight.
	grace time.Duration
}

func NewReconciler(store port.OrderStore, guard *ReconciliationGuard, events port.EventPublisher, producer string, interval, grace time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		store:    store,
		guard:    guard,
		events:   events,
		producer: producer,
		interval: interval,
		grace:    grace,
	}
}

// Start runs periodic sweeps until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunSweep(ctx)
		}
	}
}

// RunSweep resolves every in-doubt order old enough to be outside the grace
// window. Exported so operators and tests can force a pass.
func (r *Reconciler) RunSweep(ctx context.Context) {
	orders, err := r.store.ListByStatus(ctx, domain.StatusPendingStock, domain.StatusCompensating)
	if err != nil {
		log.Error().Err(err).Msg("reconciler: listing in-doubt orders failed")
		return
	}

	for i := range orders {
		o := orders[i]
		if time.Since(o.UpdatedAt) < r.grace {
			continue
		}
		switch o.Status {
		case domain.StatusPendingStock:
			r.resolvePending(ctx, &o)
		case domain.StatusCompensating:
			r.resolveCompensating(ctx, &o)
		}
	}
	metrics.ReconcilerSweeps.Inc()
}

func (r *Reconciler) resolvePending(ctx context.Context, o *domain.Order) {
	delta := o.PendingDelta()
	if delta == 0 {
		// Adjustment acknowledged but the local flip was lost.
		if _, err := r.store.MarkConfirmed(ctx, o.ID, o.Quantity); err != nil {
			log.Error().Err(err).Int64("order_id", o.ID).Msg("reconciler: mark confirmed failed")
			return
		}
		metrics.ReconcilerResolved.Inc()
		return
	}

	err := r.guard.Adjust(ctx, o.ProductID, -delta, adjustKey(o.ID, o.Revision))
	switch {
	case err == nil:
		if _, mErr := r.store.MarkConfirmed(ctx, o.ID, o.Quantity); mErr != nil {
			log.Error().Err(mErr).Int64("order_id", o.ID).Msg("reconciler: mark confirmed failed")
			return
		}
		o.ConfirmedQty = o.Quantity
		o.Status = domain.StatusConfirmed
		metrics.OrdersConfirmed.Inc()
		metrics.ReconcilerResolved.Inc()
		r.publish(ctx, domain.EventOrderConfirmed, o)
		log.Info().Int64("order_id", o.ID).Msg("reconciler: pending order confirmed")

	case errors.Is(err, domain.ErrInsufficientStock):
		if o.EverConfirmed() {
			// The target quantity is unreachable; fall back to the last
			// acknowledged one.
			total := o.UnitPrice * float64(o.ConfirmedQty)
			if _, rErr := r.store.UpdateQuantity(ctx, o.ID, o.ConfirmedQty, total, o.Revision, domain.StatusConfirmed); rErr != nil {
				log.Error().Err(rErr).Int64("order_id", o.ID).Msg("reconciler: revert to confirmed quantity failed")
				return
			}
		} else {
			if _, fErr := r.store.UpdateStatus(ctx, o.ID, domain.StatusFailed); fErr != nil {
				log.Error().Err(fErr).Int64("order_id", o.ID).Msg("reconciler: mark failed failed")
				return
			}
			r.publish(ctx, domain.EventOrderFailed, o)
		}
		metrics.ReconcilerResolved.Inc()
		log.Warn().Int64("order_id", o.ID).Msg("reconciler: pending adjustment definitively rejected")

	default:
		// Upstream still unavailable; the next sweep retries.
		log.Debug().Err(err).Int64("order_id", o.ID).Msg("reconciler: order still unresolved")
	}
}

func (r *Reconciler) resolveCompensating(ctx context.Context, o *domain.Order) {
	if o.ConfirmedQty > 0 {
		if err := r.guard.Adjust(ctx, o.ProductID, o.ConfirmedQty, restoreKey(o.ID)); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				// A positive restore cannot run out of stock; the inventory
				// side is contradicting its own ledger.
				log.Error().Err(domain.ErrInconsistency).Int64("order_id", o.ID).Msg("reconciler: stock restore rejected upstream")
			} else {
				log.Debug().Err(err).Int64("order_id", o.ID).Msg("reconciler: restore still unacknowledged")
			}
			return
		}
		r.publish(ctx, domain.EventStockRestored, o)
	}
	if _, err := r.store.Delete(ctx, o.ID); err != nil {
		log.Error().Err(err).Int64("order_id", o.ID).Msg("reconciler: delete after restore failed")
		return
	}
	metrics.ReconcilerResolved.Inc()
	r.publish(ctx, domain.EventOrderDeleted, o)
	log.Info().Int64("order_id", o.ID).Msg("reconciler: compensated order removed")
}

func (r *Reconciler) publish(ctx context.Context, eventType string, o *domain.Order) {
	if r.events == nil {
		return
	}
	r.events.Publish(ctx, domain.Event{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     r.producer,
		OrderID:      o.ID,
		ProductID:    o.ProductID,
		Quantity:     o.Quantity,
		Total:        o.Total,
	})
}
