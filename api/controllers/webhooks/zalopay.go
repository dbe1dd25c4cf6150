package webhooks

import (
	"errors"
	"io"
	"net/http"

	"github.com/owlscommerce/owls-backend/api/responses"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
)

// zalopayAck is the callback response ZaloPay inspects. return_code 1 stops
// redelivery, -1 flags a mac failure, anything in between is retried.
type zalopayAck struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// ZaloPayCallback handles the ZaloPay server-to-server callback.
func ZaloPayCallback(adapter gateway.Adapter, payments paymentApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logg.Error(ctx, "zalopay callback rejected: unreadable body", err)
			responses.WriteRaw(w, http.StatusOK, zalopayAck{ReturnCode: 0, ReturnMessage: "unreadable body"})
			return
		}

		result, err := adapter.VerifyCallback(gateway.Callback{Body: body})
		if err != nil {
			if errors.Is(err, gateway.ErrInvalidSignature) {
				logg.Warn(ctx, "zalopay callback rejected: mac mismatch")
				responses.WriteRaw(w, http.StatusOK, zalopayAck{ReturnCode: -1, ReturnMessage: "mac not equal"})
				return
			}
			logg.Error(ctx, "zalopay callback rejected: malformed payload", err)
			responses.WriteRaw(w, http.StatusOK, zalopayAck{ReturnCode: -1, ReturnMessage: "invalid data"})
			return
		}
		result.Source = gateway.SourceWebhook

		if _, err := payments.ApplyGatewayResult(ctx, *result); err != nil {
			logg.Error(ctx, "zalopay callback processing failed", err)
			// 0 asks ZaloPay to redeliver later.
			responses.WriteRaw(w, http.StatusOK, zalopayAck{ReturnCode: 0, ReturnMessage: "retry later"})
			return
		}

		responses.WriteRaw(w, http.StatusOK, zalopayAck{ReturnCode: 1, ReturnMessage: "success"})
	}
}
