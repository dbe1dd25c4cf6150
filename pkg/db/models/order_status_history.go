package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// OrderStatusHistory is the append-only audit trail of status transitions.
type OrderStatusHistory struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;not null"`
	Note       string            `gorm:"column:note"`
	Actor      string            `gorm:"column:actor;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
