package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem captures the per-line snapshot, including the commission split
// owed to the vendor at the moment of purchase.
type OrderItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID   *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	InventoryID uuid.UUID  `gorm:"column:inventory_id;type:uuid;not null"`
	VendorID    uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null"`

	ProductName string `gorm:"column:product_name;not null"`
	ProductSKU  string `gorm:"column:product_sku;not null"`

	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:decimal(15,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:decimal(15,2);not null"`

	CommissionRate   decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,4);not null;default:0"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:decimal(15,2);not null;default:0"`
	VendorAmount     decimal.Decimal `gorm:"column:vendor_amount;type:decimal(15,2);not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
