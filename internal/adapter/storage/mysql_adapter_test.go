package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/orders?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			product_id BIGINT NOT NULL,
			quantity INT NOT NULL,
			confirmed_qty INT NOT NULL DEFAULT 0,
			revision INT NOT NULL DEFAULT 1,
			unit_price DECIMAL(10,2) NOT NULL,
			total DECIMAL(10,2) NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			INDEX idx_orders_status (status)
		)`)
	if err != nil {
		t.Fatalf("schema setup failed: %v", err)
	}
	return db
}

func insertTestOrder(t *testing.T, store *MySQLOrderStore, quantity int) *domain.Order {
	t.Helper()
	o := domain.NewOrder(7, quantity, 10.0)
	if err := store.Insert(context.Background(), o); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	return o
}

func TestInsertAndGetByID(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)

	o := insertTestOrder(t, store, 3)
	defer store.Delete(ctx, o.ID)

	if o.ID == 0 {
		t.Fatal("expected a generated id")
	}

	got, err := store.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if got.ProductID != 7 || got.Quantity != 3 || got.Total != 30.0 {
		t.Errorf("unexpected row: %+v", got)
	}
	if got.Status != domain.StatusPendingStock {
		t.Errorf("expected PENDING_STOCK, got %s", got.Status)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLOrderStore(db)
	got, err := store.GetByID(context.Background(), 999999999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a missing row")
	}
}

func TestUpdateQuantityAndStatus(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)

	o := insertTestOrder(t, store, 3)
	defer store.Delete(ctx, o.ID)

	affected, err := store.UpdateQuantity(ctx, o.ID, 5, 50.0, 2, domain.StatusPendingStock)
	if err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 affected row, got %d", affected)
	}

	affected, err = store.MarkConfirmed(ctx, o.ID, 5)
	if err != nil {
		t.Fatalf("MarkConfirmed failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 affected row, got %d", affected)
	}

	got, _ := store.GetByID(ctx, o.ID)
	if got.Quantity != 5 || got.Total != 50.0 || got.ConfirmedQty != 5 || got.Revision != 2 {
		t.Errorf("unexpected row: %+v", got)
	}
	if got.Status != domain.StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}

	affected, err = store.UpdateStatus(ctx, o.ID, domain.StatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 affected row, got %d", affected)
	}
}

func TestUpdate_MissingRowAffectsNothing(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)

	if affected, err := store.UpdateStatus(ctx, 999999999, domain.StatusCancelled); err != nil || affected != 0 {
		t.Errorf("expected 0 affected rows, got %d err %v", affected, err)
	}
	if affected, err := store.Delete(ctx, 999999999); err != nil || affected != 0 {
		t.Errorf("expected 0 affected rows, got %d err %v", affected, err)
	}
}

func TestListByStatus(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)

	pending := insertTestOrder(t, store, 2)
	defer store.Delete(ctx, pending.ID)
	confirmed := insertTestOrder(t, store, 4)
	defer store.Delete(ctx, confirmed.ID)
	if _, err := store.MarkConfirmed(ctx, confirmed.ID, 4); err != nil {
		t.Fatal(err)
	}

	orders, err := store.ListByStatus(ctx, domain.StatusPendingStock, domain.StatusCompensating)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}

	foundPending, foundConfirmed := false, false
	for _, o := range orders {
		if o.ID == pending.ID {
			foundPending = true
		}
		if o.ID == confirmed.ID {
			foundConfirmed = true
		}
	}
	if !foundPending {
		t.Error("expected the pending order in the sweep set")
	}
	if foundConfirmed {
		t.Error("confirmed orders must not appear in the sweep set")
	}
}

func TestDelete(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)

	o := insertTestOrder(t, store, 1)

	affected, err := store.Delete(ctx, o.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 affected row, got %d", affected)
	}

	got, _ := store.GetByID(ctx, o.ID)
	if got != nil {
		t.Error("expected the row to be gone")
	}
}
