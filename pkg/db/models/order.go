package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/owlscommerce/owls-backend/pkg/db/types"
	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// Order is the durable snapshot created by checkout. Every money field is
// frozen at creation; later catalog or coupon edits never touch it.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`

	CouponID   *uuid.UUID `gorm:"column:coupon_id;type:uuid"`
	CouponCode *string    `gorm:"column:coupon_code"`

	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:decimal(15,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:decimal(15,2);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount;type:decimal(15,2);not null;default:0"`
	ShippingFee    decimal.Decimal `gorm:"column:shipping_fee;type:decimal(15,2);not null;default:0"`
	Total          decimal.Decimal `gorm:"column:total;type:decimal(15,2);not null"`

	ShippingAddress dbtypes.JSONMap `gorm:"column:shipping_address;type:jsonb"`
	Note            *string         `gorm:"column:note"`

	PaidAt       *time.Time `gorm:"column:paid_at"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`
	CancelReason *string    `gorm:"column:cancel_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
