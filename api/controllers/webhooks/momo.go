package webhooks

import (
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
)

// MoMoIPN handles the MoMo instant payment notification. MoMo expects a
// bare 204 ack; any other status triggers redelivery.
func MoMoIPN(adapter gateway.Adapter, payments paymentApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logg.Error(ctx, "momo ipn rejected: unreadable body", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		result, err := adapter.VerifyCallback(gateway.Callback{Body: body})
		if err != nil {
			if errors.Is(err, gateway.ErrInvalidSignature) {
				logg.Warn(ctx, "momo ipn rejected: bad signature")
			} else {
				logg.Error(ctx, "momo ipn rejected: malformed payload", err)
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result.Source = gateway.SourceWebhook

		if _, err := payments.ApplyGatewayResult(ctx, *result); err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodePaymentNotFound {
				// Redelivery cannot resolve an unknown transaction; ack it
				// and leave the alert to the operator.
				logg.Error(ctx, "momo ipn for unknown transaction", err)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			logg.Error(ctx, "momo ipn processing failed", err)
			// Non-2xx makes MoMo retry, which the terminal-state guard absorbs.
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
