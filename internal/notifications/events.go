package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
)

// Event types carried on the order-event topic.
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
	EventPaymentFailed  = "payment.failed"
)

// OrderEvent is the wire shape consumers receive for every lifecycle event.
type OrderEvent struct {
	Type        string          `json:"type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	Status      string          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Reason      string          `json:"reason,omitempty"`
}

func newOrderEvent(eventType string, order *models.Order, reason string) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Total:       order.Total,
		Reason:      reason,
	}
}

func (e OrderEvent) marshal() ([]byte, error) {
	return json.Marshal(e)
}
