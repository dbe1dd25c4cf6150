package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// PaymentMethod is an operator-managed row describing one way to pay.
type PaymentMethod struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string            `gorm:"column:name;not null"`
	Code      enums.GatewayCode `gorm:"column:code;not null;uniqueIndex"`
	IsActive  bool              `gorm:"column:is_active;not null;default:true"`
	FeeType   enums.FeeType     `gorm:"column:fee_type;not null;default:'none'"`
	FeeFixed  decimal.Decimal   `gorm:"column:fee_fixed;type:decimal(15,2);not null;default:0"`
	FeeRate   decimal.Decimal   `gorm:"column:fee_rate;type:decimal(5,4);not null;default:0"`
	MinAmount decimal.Decimal   `gorm:"column:min_amount;type:decimal(15,2);not null;default:0"`
	MaxAmount *decimal.Decimal  `gorm:"column:max_amount;type:decimal(15,2)"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Fee computes the processing fee for the given order amount.
func (m PaymentMethod) Fee(amount decimal.Decimal) decimal.Decimal {
	switch m.FeeType {
	case enums.FeeTypeFixed:
		return m.FeeFixed
	case enums.FeeTypePercentage:
		return amount.Mul(m.FeeRate).Round(2)
	case enums.FeeTypeBoth:
		return m.FeeFixed.Add(amount.Mul(m.FeeRate)).Round(2)
	default:
		return decimal.Zero
	}
}
