// Package webhooks receives gateway payment notifications. Each handler
// verifies the provider signature, converges the payment through the shared
// transition path, and answers in the ack shape that provider requires.
// Acks are not the envelope format: a wrong ack makes the gateway retry or
// mark the merchant endpoint as broken.
package webhooks

import (
	"context"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
)

// paymentApplier is the slice of the payment service webhooks need.
type paymentApplier interface {
	ApplyGatewayResult(ctx context.Context, result gateway.Result) (*models.Payment, error)
}
