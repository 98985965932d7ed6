package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

type MySQLOrderStore struct {
	db *sql.DB
}

func NewMySQLOrderStore(db *sql.DB) *MySQLOrderStore {
	return &MySQLOrderStore{db: db}
}

const orderColumns = `id, product_id, quantity, confirmed_qty, revision, unit_price, total, status, created_at, updated_at`

func (m *MySQLOrderStore) Insert(ctx context.Context, order *domain.Order) error {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (product_id, quantity, confirmed_qty, revision, unit_price, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ProductID, order.Quantity, order.ConfirmedQty, order.Revision,
		order.UnitPrice, order.Total, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order id: %w", err)
	}
	order.ID = id
	return nil
}

func (m *MySQLOrderStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (m *MySQLOrderStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (m *MySQLOrderStore) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Order, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (m *MySQLOrderStore) UpdateQuantity(ctx context.Context, id int64, quantity int, total float64, revision int, status domain.Status) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders SET quantity = ?, total = ?, revision = ?, status = ?, updated_at = NOW()
		WHERE id = ?`,
		quantity, total, revision, status, id,
	)
	if err != nil {
		return 0, fmt.Errorf("update quantity: %w", err)
	}
	return res.RowsAffected()
}

func (m *MySQLOrderStore) UpdateStatus(ctx context.Context, id int64, status domain.Status) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return 0, fmt.Errorf("update status: %w", err)
	}
	return res.RowsAffected()
}

func (m *MySQLOrderStore) MarkConfirmed(ctx context.Context, id int64, confirmedQty int) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, confirmed_qty = ?, updated_at = NOW()
		WHERE id = ?`,
		domain.StatusConfirmed, confirmedQty, id,
	)
	if err != nil {
		return 0, fmt.Errorf("mark confirmed: %w", err)
	}
	return res.RowsAffected()
}

func (m *MySQLOrderStore) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete order: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ProductID, &o.Quantity, &o.ConfirmedQty, &o.Revision,
		&o.UnitPrice, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
