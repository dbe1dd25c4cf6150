package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the minimal catalog surface the order pipeline snapshots from.
type Product struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null"`
	InventoryID    uuid.UUID       `gorm:"column:inventory_id;type:uuid;not null"`
	Name           string          `gorm:"column:name;not null"`
	SKU            string          `gorm:"column:sku;not null"`
	Category       string          `gorm:"column:category"`
	Price          decimal.Decimal `gorm:"column:price;type:decimal(15,2);not null"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,4);not null;default:0"`
	IsActive       bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant overrides price and stock for a specific option combination.
type ProductVariant struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	InventoryID uuid.UUID       `gorm:"column:inventory_id;type:uuid;not null"`
	Name        string          `gorm:"column:name;not null"`
	SKU         string          `gorm:"column:sku;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(15,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
