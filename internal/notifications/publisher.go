package notifications

import (
	"context"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/logger"
)

// topicPublisher is the slice of *pubsub.Publisher the fan-out needs.
type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Publisher fans order lifecycle events out to Pub/Sub. Every method is
// fire-and-forget: the checkout and payment paths must never fail because
// the broker hiccuped.
type Publisher struct {
	topic topicPublisher
	logg  *logger.Logger
}

// NewPublisher wires the order-event publisher. A nil topic yields a no-op
// publisher, which keeps single-binary dev setups working without GCP.
func NewPublisher(topic topicPublisher, logg *logger.Logger) *Publisher {
	return &Publisher{topic: topic, logg: logg}
}

func (p *Publisher) OrderCreated(ctx context.Context, order *models.Order) {
	p.publish(ctx, newOrderEvent(EventOrderCreated, order, ""))
}

func (p *Publisher) OrderPaid(ctx context.Context, order *models.Order) {
	p.publish(ctx, newOrderEvent(EventOrderPaid, order, ""))
}

func (p *Publisher) OrderCancelled(ctx context.Context, order *models.Order) {
	reason := ""
	if order.CancelReason != nil {
		reason = *order.CancelReason
	}
	p.publish(ctx, newOrderEvent(EventOrderCancelled, order, reason))
}

func (p *Publisher) PaymentFailed(ctx context.Context, order *models.Order, reason string) {
	p.publish(ctx, newOrderEvent(EventPaymentFailed, order, reason))
}

func (p *Publisher) publish(ctx context.Context, event OrderEvent) {
	if p == nil || p.topic == nil {
		return
	}

	body, err := event.marshal()
	if err != nil {
		p.warn(ctx, event, "marshal order event")
		return
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"type": event.Type},
	})

	// Confirmation happens off the request path.
	go func() {
		if _, err := result.Get(context.WithoutCancel(ctx)); err != nil {
			p.warn(ctx, event, "publish order event")
		}
	}()
}

func (p *Publisher) warn(ctx context.Context, event OrderEvent, msg string) {
	if p.logg == nil {
		return
	}
	lctx := p.logg.WithFields(ctx, map[string]any{
		"event_type":   event.Type,
		"order_number": event.OrderNumber,
	})
	p.logg.Warn(lctx, msg)
}
