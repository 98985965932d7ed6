package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

// mockInventory simulates the remote inventory service for one product,
// including its idempotency guarantee: a replayed key returns the original
// acknowledged outcome instead of applying the delta twice.
type mockInventory struct {
	mu    sync.Mutex
	id    int64
	price float64
	stock int

	applied map[string]int // acknowledged key -> applied delta

	getCalls    int
	adjustCalls int

	getErr          error
	unavailableLeft int // fail the next N adjust calls without applying
	loseAckLeft     int // apply the next N adjust calls but lose the ack
	rejectNext      bool

	beforeAdjust func() // optional hook, called outside the lock
}

func newMockInventory(id int64, price float64, stock int) *mockInventory {
	return &mockInventory{id: id, price: price, stock: stock, applied: make(map[string]int)}
}

func (m *mockInventory) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if productID != m.id {
		return nil, fmt.Errorf("%w: product %d", domain.ErrProductNotFound, productID)
	}
	return &domain.Product{ID: m.id, Price: m.price, Stock: m.stock}, nil
}

func (m *mockInventory) AdjustStock(_ context.Context, productID int64, delta int, key string) error {
	if m.beforeAdjust != nil {
		m.beforeAdjust()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustCalls++

	if productID != m.id {
		return fmt.Errorf("%w: product %d", domain.ErrProductNotFound, productID)
	}
	if _, ok := m.applied[key]; ok {
		// Replay of an acknowledged adjustment.
		return nil
	}
	if m.unavailableLeft > 0 {
		m.unavailableLeft--
		return fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)
	}
	if m.rejectNext {
		m.rejectNext = false
		return fmt.Errorf("%w: rejected", domain.ErrInsufficientStock)
	}
	if delta < 0 && m.stock < -delta {
		return fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientStock, -delta, m.stock)
	}

	m.stock += delta
	m.applied[key] = delta
	if m.loseAckLeft > 0 {
		m.loseAckLeft--
		return fmt.Errorf("%w: timeout waiting for response", domain.ErrUpstreamUnavailable)
	}
	return nil
}

func (m *mockInventory) currentStock() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock
}

func (m *mockInventory) appliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

// mockStore is an in-memory OrderStore.
type mockStore struct {
	mu     sync.Mutex
	seq    int64
	orders map[int64]*domain.Order

	insertErr  error
	confirmErr error
}

func newMockStore() *mockStore {
	return &mockStore{orders: make(map[int64]*domain.Order)}
}

func (m *mockStore) Insert(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.seq++
	order.ID = m.seq
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) ListAll(_ context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for id := int64(1); id <= m.seq; id++ {
		if o, ok := m.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) ListByStatus(_ context.Context, statuses ...domain.Status) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for id := int64(1); id <= m.seq; id++ {
		o, ok := m.orders[id]
		if !ok {
			continue
		}
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, *o)
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) UpdateQuantity(_ context.Context, id int64, quantity int, total float64, revision int, status domain.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return 0, nil
	}
	o.Quantity = quantity
	o.Total = total
	o.Revision = revision
	o.Status = status
	o.UpdatedAt = time.Now()
	return 1, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, id int64, status domain.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return 0, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return 1, nil
}

func (m *mockStore) MarkConfirmed(_ context.Context, id int64, confirmedQty int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmErr != nil {
		return 0, m.confirmErr
	}
	o, ok := m.orders[id]
	if !ok {
		return 0, nil
	}
	o.Status = domain.StatusConfirmed
	o.ConfirmedQty = confirmedQty
	o.UpdatedAt = time.Now()
	return 1, nil
}

func (m *mockStore) Delete(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return 0, nil
	}
	delete(m.orders, id)
	return 1, nil
}

func (m *mockStore) get(id int64) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// confirmedTotal sums the quantities of CONFIRMED orders.
func (m *mockStore) confirmedTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, o := range m.orders {
		if o.Status == domain.StatusConfirmed {
			total += o.Quantity
		}
	}
	return total
}

type mockIdemStore struct {
	mu     sync.Mutex
	keys   map[string]bool
	wasErr error
}

func newMockIdemStore() *mockIdemStore {
	return &mockIdemStore{keys: make(map[string]bool)}
}

func (m *mockIdemStore) MarkApplied(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func (m *mockIdemStore) WasApplied(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wasErr != nil {
		return false, m.wasErr
	}
	return m.keys[key], nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockPublisher) Publish(_ context.Context, event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestService(inv *mockInventory, store *mockStore) (*OrderService, *ReconciliationGuard, *mockIdemStore, *mockPublisher) {
	idem := newMockIdemStore()
	pub := &mockPublisher{}
	guard := NewReconciliationGuard(inv, idem, 3, time.Millisecond)
	svc := NewOrderService(store, inv, guard, pub, "order-ledger-test", time.Second)
	return svc, guard, idem, pub
}
