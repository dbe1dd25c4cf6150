package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/owlscommerce/owls-backend/api/middleware"
	"github.com/owlscommerce/owls-backend/api/responses"
	"github.com/owlscommerce/owls-backend/api/validators"
	ordersvc "github.com/owlscommerce/owls-backend/internal/orders"
	paymentsvc "github.com/owlscommerce/owls-backend/internal/payments"
	"github.com/owlscommerce/owls-backend/pkg/auth"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/logger"
)

type createPaymentRequest struct {
	OrderID    string `json:"order_id" validate:"required,uuid"`
	MethodCode string `json:"method_code" validate:"required,oneof=vnpay momo zalopay cod"`
}

// PaymentMethods lists the active payment methods.
func PaymentMethods(svc *paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		methods, err := svc.ListMethods(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods"))
			return
		}
		responses.WriteSuccess(w, methods)
	}
}

// PaymentCreate opens a payment attempt for one of the caller's orders and
// returns the gateway redirect URL when the method has one.
func PaymentCreate(orders ordersvc.Repository, svc *paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := orders.FindByID(r.Context(), orderID)
		if err != nil {
			if ordersvc.IsNotFound(err) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}
		if order.UserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		out, err := svc.Create(r.Context(), paymentsvc.CreateInput{
			OrderID:    order.ID,
			MethodCode: enums.GatewayCode(payload.MethodCode),
			ClientIP:   clientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// PaymentDetail returns one payment attempt by transaction id.
func PaymentDetail(orders ordersvc.Repository, svc *paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID := strings.TrimSpace(chi.URLParam(r, "transactionId"))
		if transactionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required"))
			return
		}

		payment, err := svc.GetByTransactionID(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := orders.FindByID(r.Context(), payment.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}
		if order.UserID != userID && middleware.RoleFromContext(r.Context()) != auth.RoleAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePaymentNotFound, "payment not found"))
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
