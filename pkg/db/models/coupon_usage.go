package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponUsage records one redemption per order, which backs the per-user
// limit check during checkout.
type CouponUsage struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID        uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;index"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	DiscountApplied decimal.Decimal `gorm:"column:discount_applied;type:decimal(15,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
