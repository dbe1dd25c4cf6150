package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/owlscommerce/owls-backend/pkg/db/types"
	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// Payment is one attempt to settle an order. Gateway webhooks, the
// reconciliation poller and the expiry sweep all converge on the same row,
// keyed by TransactionID.
type Payment struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentMethodID uuid.UUID `gorm:"column:payment_method_id;type:uuid;not null"`

	TransactionID        string  `gorm:"column:transaction_id;not null;uniqueIndex"`
	GatewayTransactionID *string `gorm:"column:gateway_transaction_id"`

	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(15,2);not null"`
	FeeAmount decimal.Decimal `gorm:"column:fee_amount;type:decimal(15,2);not null;default:0"`
	NetAmount decimal.Decimal `gorm:"column:net_amount;type:decimal(15,2);not null;default:0"`

	Status          enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	GatewayResponse dbtypes.JSONMap     `gorm:"column:gateway_response;type:jsonb"`
	FailureReason   *string             `gorm:"column:failure_reason"`

	// ExpiresAt is nil for offline methods; cash on delivery has no window
	// for the expiry sweep to enforce.
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	PaidAt    *time.Time `gorm:"column:paid_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Method *PaymentMethod `gorm:"foreignKey:PaymentMethodID"`
}
