package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// Cart is the single active basket per user. Totals are convenience
// snapshots for display; checkout recomputes them inside the transaction.
type Cart struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	Status         enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	CouponID       *uuid.UUID       `gorm:"column:coupon_id;type:uuid"`
	Subtotal       decimal.Decimal  `gorm:"column:subtotal;type:decimal(15,2);not null;default:0"`
	DiscountAmount decimal.Decimal  `gorm:"column:discount_amount;type:decimal(15,2);not null;default:0"`
	TaxAmount      decimal.Decimal  `gorm:"column:tax_amount;type:decimal(15,2);not null;default:0"`
	ShippingFee    decimal.Decimal  `gorm:"column:shipping_fee;type:decimal(15,2);not null;default:0"`
	Total          decimal.Decimal  `gorm:"column:total;type:decimal(15,2);not null;default:0"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Items []CartItem `gorm:"foreignKey:CartID"`
}
