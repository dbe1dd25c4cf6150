package inventory

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

// sortedUnique returns the ids deduplicated and in ascending order. Every
// multi-row inventory lock goes through this so concurrent transactions
// always acquire locks in the same order.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(out)
}

// LockSorted loads the inventory rows for the given ids in ascending id
// order, taking row locks on Postgres. SQLite serializes writers on its own,
// so the lock clause is skipped there; the conditional decrement in Reserve
// remains the cross-dialect guard.
func LockSorted(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.InventoryItem, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	if len(ids) == 0 {
		return map[uuid.UUID]models.InventoryItem{}, nil
	}

	ordered := sortedUnique(ids)

	query := tx.WithContext(ctx).
		Where("id IN ?", ordered).
		Order("id")
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []models.InventoryItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking inventory rows")
	}

	byID := make(map[uuid.UUID]models.InventoryItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	for _, id := range ordered {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
				WithDetails(map[string]any{"inventory_id": id})
		}
	}

	return byID, nil
}
