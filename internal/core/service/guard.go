package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mfsilva/order-ledger/internal/core/domain"
	"github.com/mfsilva/order-ledger/internal/metrics"
	"github.com/mfsilva/order-ledger/internal/port"
	"github.com/rs/zerolog/log"
)

// ReconciliationGuard serializes stock-affecting operations per product and
// retries idempotently when the inventory service is unavailable. It never
// assumes an unacknowledged adjustment succeeded.
type ReconciliationGuard struct {
	inventory   port.InventoryClient
	applied     port.IdempotencyStore
	maxAttempts int
	baseBackoff time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewReconciliationGuard(inventory port.InventoryClient, applied port.IdempotencyStore, maxAttempts int, baseBackoff time.Duration) *ReconciliationGuard {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ReconciliationGuard{
		inventory:   inventory,
		applied:     applied,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// productLock returns the ordering domain for one product. Operations on
// different products proceed independently.
func (g *ReconciliationGuard) productLock(productID int64) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[productID] = l
	}
	return l
}

// Adjust applies a signed stock delta under the product's lock. A key that
// was already acknowledged short-circuits; an unavailable upstream is retried
// with exponential backoff up to the attempt ceiling.
func (g *ReconciliationGuard) Adjust(ctx context.Context, productID int64, delta int, key string) error {
	lock := g.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	if g.applied != nil {
		ok, err := g.applied.WasApplied(ctx, key)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("idempotency lookup failed, relying on remote replay")
		} else if ok {
			return nil
		}
	}

	backoff := g.baseBackoff
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.StockAdjustRetries.Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctx.Err())
			}
			backoff *= 2
		}

		err := g.inventory.AdjustStock(ctx, productID, delta, key)
		if err == nil {
			if g.applied != nil {
				// Best effort; the remote replay guarantee is the authority.
				if markErr := g.applied.MarkApplied(ctx, key); markErr != nil {
					log.Warn().Err(markErr).Str("key", key).Msg("failed to record acknowledged idempotency key")
				}
			}
			return nil
		}
		if errors.Is(err, domain.ErrInsufficientStock) {
			// Definitive rejection; retrying cannot change the outcome.
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %v", domain.ErrUpstreamUnavailable, g.maxAttempts, lastErr)
}
