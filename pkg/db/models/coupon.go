package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// Coupon is the promotional ledger row. TimesUsed only ever moves through
// the atomic conditional increment so the usage limit cannot be oversubscribed.
type Coupon struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                 string             `gorm:"column:code;not null;uniqueIndex"`
	Description          string             `gorm:"column:description"`
	DiscountType         enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue        decimal.Decimal    `gorm:"column:discount_value;type:decimal(15,2);not null"`
	MaxDiscountAmount    *decimal.Decimal   `gorm:"column:max_discount_amount;type:decimal(15,2)"`
	MinOrderAmount       decimal.Decimal    `gorm:"column:min_order_amount;type:decimal(15,2);not null;default:0"`
	UsageLimit           *int               `gorm:"column:usage_limit"`
	TimesUsed            int                `gorm:"column:times_used;not null;default:0"`
	PerUserLimit         int                `gorm:"column:per_user_limit;not null;default:1"`
	ValidFrom            time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil           *time.Time         `gorm:"column:valid_until"`
	IsActive             bool               `gorm:"column:is_active;not null;default:true"`
	ApplicableCategories pq.StringArray     `gorm:"column:applicable_categories;type:text[]"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
