package webhooks

import (
	"errors"
	"net/http"

	"github.com/owlscommerce/owls-backend/api/responses"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
)

// vnpayAck is the IPN response shape VNPay polls for. Everything answers
// HTTP 200; the RspCode field carries the verdict.
type vnpayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPayIPN handles the VNPay instant payment notification. Parameters
// arrive as query strings regardless of HTTP method.
func VNPayIPN(adapter gateway.Adapter, payments paymentApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		result, err := adapter.VerifyCallback(gateway.Callback{Query: r.URL.Query()})
		if err != nil {
			if errors.Is(err, gateway.ErrInvalidSignature) {
				logg.Warn(ctx, "vnpay ipn rejected: bad checksum")
				responses.WriteRaw(w, http.StatusOK, vnpayAck{RspCode: "97", Message: "Invalid Checksum"})
				return
			}
			logg.Error(ctx, "vnpay ipn rejected: malformed payload", err)
			responses.WriteRaw(w, http.StatusOK, vnpayAck{RspCode: "99", Message: "Invalid Data"})
			return
		}
		result.Source = gateway.SourceWebhook

		if _, err := payments.ApplyGatewayResult(ctx, *result); err != nil {
			typed := pkgerrors.As(err)
			switch {
			case typed != nil && typed.Code() == pkgerrors.CodePaymentNotFound:
				responses.WriteRaw(w, http.StatusOK, vnpayAck{RspCode: "01", Message: "Order Not Found"})
			case typed != nil && typed.Code() == pkgerrors.CodeStateConflict:
				responses.WriteRaw(w, http.StatusOK, vnpayAck{RspCode: "04", Message: "Invalid Amount"})
			default:
				logg.Error(ctx, "vnpay ipn processing failed", err)
				responses.WriteRaw(w, http.StatusOK, vnpayAck{RspCode: "99", Message: "Unknown Error"})
			}
			return
		}

		responses.WriteRaw(w, http.StatusOK, vnpayAck{RspCode: "00", Message: "Confirm Success"})
	}
}
