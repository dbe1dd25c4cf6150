package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks on-hand stock per sellable unit (product or variant).
type InventoryItem struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	StockQuantity   int        `gorm:"column:stock_quantity;not null;default:0"`
	TracksInventory bool       `gorm:"column:tracks_inventory;not null;default:true"`
	AllowBackorder  bool       `gorm:"column:allow_backorder;not null;default:false"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
