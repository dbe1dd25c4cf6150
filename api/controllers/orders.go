package controllers

import (
	"net/http"
	"strings"

	"github.com/owlscommerce/owls-backend/api/middleware"
	"github.com/owlscommerce/owls-backend/api/responses"
	"github.com/owlscommerce/owls-backend/api/validators"
	ordersvc "github.com/owlscommerce/owls-backend/internal/orders"
	"github.com/owlscommerce/owls-backend/pkg/auth"
	"github.com/owlscommerce/owls-backend/pkg/db/models"
	dbtypes "github.com/owlscommerce/owls-backend/pkg/db/types"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/pagination"
)

type checkoutRequest struct {
	ShippingAddress map[string]any `json:"shipping_address" validate:"required"`
	Note            *string        `json:"note,omitempty" validate:"omitempty,max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

type refundOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

type orderPage struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Checkout converts the caller's active cart into an order.
func Checkout(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateFromCart(r.Context(), ordersvc.CreateFromCartInput{
			UserID:          userID,
			ShippingAddress: dbtypes.JSONMap(payload.ShippingAddress),
			Note:            payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderList returns the caller's orders, newest first, keyset paginated.
func OrderList(repo ordersvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := repo.ListByUser(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		page, more := pagination.TrimPage(rows, limit)
		out := orderPage{Orders: page}
		if more && len(page) > 0 {
			last := page[len(page)-1]
			out.NextCursor = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderDetail returns one order after an ownership check.
func OrderDetail(repo ordersvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := ownedOrder(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderCancel cancels the caller's order, restoring reserved stock.
func OrderCancel(repo ordersvc.Repository, svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := ownedOrder(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cancelled, err := svc.Cancel(r.Context(), order.ID, "customer", payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelled)
	}
}

// OrderRefund refunds a settled order. Admin only; the role gate lives in
// the router.
func OrderRefund(repo ordersvc.Repository, svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refunded, err := svc.Refund(r.Context(), orderID, auth.RoleAdmin, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refunded)
	}
}

func ownedOrder(r *http.Request, repo ordersvc.Repository) (*models.Order, error) {
	userID, err := authedUser(r)
	if err != nil {
		return nil, err
	}
	orderID, err := validators.ParseURLUUID(r, "orderId")
	if err != nil {
		return nil, err
	}

	order, err := repo.FindByID(r.Context(), orderID)
	if err != nil {
		if ordersvc.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// Admins may inspect any order; customers only their own.
	if order.UserID != userID && middleware.RoleFromContext(r.Context()) != auth.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
