package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

func TestReserveDecrementsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	invA := seedInventory(t, db, 5, true, false)
	invB := seedInventory(t, db, 2, true, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []Line{
			{InventoryID: invA, Quantity: 2},
			{InventoryID: invA, Quantity: 1},
			{InventoryID: invB, Quantity: 2},
		})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := stockOf(t, db, invA); got != 2 {
		t.Fatalf("inventory a: expected 2 remaining, got %d", got)
	}
	if got := stockOf(t, db, invB); got != 0 {
		t.Fatalf("inventory b: expected 0 remaining, got %d", got)
	}
}

func TestReserveInsufficientStockLeavesRowsUntouched(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	invA := seedInventory(t, db, 5, true, false)
	invB := seedInventory(t, db, 1, true, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []Line{
			{InventoryID: invA, Quantity: 3},
			{InventoryID: invB, Quantity: 2},
		})
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	shortfalls, ok := typed.Details().([]Shortfall)
	if !ok || len(shortfalls) != 1 {
		t.Fatalf("expected one shortfall detail, got %#v", typed.Details())
	}
	if shortfalls[0].InventoryID != invB || shortfalls[0].Requested != 2 || shortfalls[0].Available != 1 {
		t.Fatalf("unexpected shortfall: %+v", shortfalls[0])
	}

	if got := stockOf(t, db, invA); got != 5 {
		t.Fatalf("inventory a was touched: %d", got)
	}
	if got := stockOf(t, db, invB); got != 1 {
		t.Fatalf("inventory b was touched: %d", got)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	inv := seedInventory(t, db, 5, true, false)

	err := Reserve(context.Background(), db, []Line{{InventoryID: inv, Quantity: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveBackorderGoesBelowZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	inv := seedInventory(t, db, 1, true, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(context.Background(), tx, []Line{{InventoryID: inv, Quantity: 3}})
	})
	if err != nil {
		t.Fatalf("reserve backorder: %v", err)
	}
	if got := stockOf(t, db, inv); got != -2 {
		t.Fatalf("expected -2, got %d", got)
	}
}

func TestReserveUntrackedSkipsWrites(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	inv := seedInventory(t, db, 0, false, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(context.Background(), tx, []Line{{InventoryID: inv, Quantity: 10}})
	})
	if err != nil {
		t.Fatalf("reserve untracked: %v", err)
	}
	if got := stockOf(t, db, inv); got != 0 {
		t.Fatalf("untracked row was touched: %d", got)
	}
}

func TestRestoreIncrementsTrackedOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	tracked := seedInventory(t, db, 1, true, false)
	untracked := seedInventory(t, db, 0, false, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Restore(ctx, tx, []Line{
			{InventoryID: tracked, Quantity: 4},
			{InventoryID: untracked, Quantity: 4},
		})
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if got := stockOf(t, db, tracked); got != 5 {
		t.Fatalf("tracked: expected 5, got %d", got)
	}
	if got := stockOf(t, db, untracked); got != 0 {
		t.Fatalf("untracked: expected 0, got %d", got)
	}
}

func TestLockSortedMissingRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	_, err := LockSorted(context.Background(), db, []uuid.UUID{uuid.New()})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ddl := `
CREATE TABLE inventory_items (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (allow_backorder OR stock_quantity >= 0),
  tracks_inventory INTEGER NOT NULL DEFAULT 1,
  allow_backorder INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedInventory(t *testing.T, db *gorm.DB, stock int, tracked, backorder bool) uuid.UUID {
	t.Helper()
	item := models.InventoryItem{
		ID:              uuid.New(),
		ProductID:       uuid.New(),
		StockQuantity:   stock,
		TracksInventory: tracked,
		AllowBackorder:  backorder,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	// GORM omits zero-valued fields carrying default:true tags on Create, so
	// force the flags with raw SQL to make the seed store what was asked for.
	if err := db.Exec("UPDATE inventory_items SET tracks_inventory = ?, allow_backorder = ? WHERE id = ?", tracked, backorder, item.ID).Error; err != nil {
		t.Fatalf("seed inventory flags: %v", err)
	}
	item.TracksInventory = tracked
	item.AllowBackorder = backorder
	return item.ID
}

func stockOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var item models.InventoryItem
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item.StockQuantity
}
