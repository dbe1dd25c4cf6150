package inventory

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/pkg/db"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

// Line is one stock movement request against a single inventory record.
type Line struct {
	InventoryID uuid.UUID
	Quantity    int
}

// Shortfall reports one line that could not be satisfied.
type Shortfall struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// Reserve decrements stock for every line or none of them. Rows are locked
// in ascending id order, validated, then decremented with a conditional
// UPDATE so a competing transaction can never drive stock negative. Untracked
// items pass through; backorderable items skip the quantity guard.
func Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.InventoryID)
	}

	rows, err := LockSorted(ctx, tx, ids)
	if err != nil {
		return err
	}

	var shortfalls []Shortfall
	for _, line := range merged {
		row := rows[line.InventoryID]
		if !row.TracksInventory || row.AllowBackorder {
			continue
		}
		if row.StockQuantity < line.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				InventoryID: row.ID,
				Requested:   line.Quantity,
				Available:   row.StockQuantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(shortfalls)
	}

	for _, line := range merged {
		row := rows[line.InventoryID]
		if !row.TracksInventory {
			continue
		}

		var res *gorm.DB
		if row.AllowBackorder {
			res = tx.WithContext(ctx).Exec(
				`UPDATE inventory_items SET stock_quantity = stock_quantity - ? WHERE id = ?`,
				line.Quantity, line.InventoryID,
			)
		} else {
			res = tx.WithContext(ctx).Exec(
				`UPDATE inventory_items SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?`,
				line.Quantity, line.InventoryID, line.Quantity,
			)
		}
		if res.Error != nil {
			if db.IsCheckViolation(res.Error, "") {
				return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, res.Error, "stock exhausted").
					WithDetails([]Shortfall{{InventoryID: line.InventoryID, Requested: line.Quantity}})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrementing stock")
		}
		if !row.AllowBackorder && res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock exhausted").
				WithDetails([]Shortfall{{InventoryID: line.InventoryID, Requested: line.Quantity}})
		}
	}

	return nil
}

// Restore puts quantities back after a cancellation or refund. Callers must
// guarantee single invocation per order; the order status gate does that.
func Restore(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.InventoryID)
	}

	rows, err := LockSorted(ctx, tx, ids)
	if err != nil {
		return err
	}

	for _, line := range merged {
		if !rows[line.InventoryID].TracksInventory {
			continue
		}
		res := tx.WithContext(ctx).Exec(
			`UPDATE inventory_items SET stock_quantity = stock_quantity + ? WHERE id = ?`,
			line.Quantity, line.InventoryID,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restoring stock")
		}
	}

	return nil
}

// mergeLines validates quantities and folds duplicate inventory ids into a
// single movement, returned in ascending id order.
func mergeLines(lines []Line) ([]Line, error) {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"inventory_id": line.InventoryID, "quantity": line.Quantity})
		}
		totals[line.InventoryID] += line.Quantity
	}

	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{InventoryID: id, Quantity: qty})
	}
	slices.SortFunc(merged, func(a, b Line) int {
		return bytes.Compare(a.InventoryID[:], b.InventoryID[:])
	})
	return merged, nil
}
