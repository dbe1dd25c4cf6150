package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/internal/inventory"
	"github.com/owlscommerce/owls-backend/pkg/db"
	"github.com/owlscommerce/owls-backend/pkg/db/models"
	dbtypes "github.com/owlscommerce/owls-backend/pkg/db/types"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartGateway interface {
	LockActiveTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Cart, error)
	ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	Totals(items []models.CartItem, coupon *models.Coupon) (subtotal, discount, tax, shipping, total decimal.Decimal)
}

type couponGateway interface {
	ValidateTx(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID, subtotal decimal.Decimal, at time.Time) (*models.Coupon, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID, orderID uuid.UUID, discount decimal.Decimal) error
}

type catalogReader interface {
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Variant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

// PaymentMarker flips the settled payment of an order when a refund lands.
type PaymentMarker interface {
	MarkRefundedTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// PaymentMarkerFunc adapts a function to PaymentMarker. The payment service
// is constructed after the order service, so wiring uses a late-bound func.
type PaymentMarkerFunc func(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error

func (f PaymentMarkerFunc) MarkRefundedTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	return f(ctx, tx, orderID, reason)
}

// EventPublisher fans out lifecycle events after commit. Implementations
// must never fail the calling request.
type EventPublisher interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderPaid(ctx context.Context, order *models.Order)
	OrderCancelled(ctx context.Context, order *models.Order)
}

// Service owns the atomic order transaction and every status transition.
type Service struct {
	repo     Repository
	tx       txRunner
	cart     cartGateway
	coupons  couponGateway
	catalog  catalogReader
	payments PaymentMarker
	events   EventPublisher
	logg     *logger.Logger

	orderPrefix string
	now         func() time.Time
}

// CreateFromCartInput carries everything checkout needs beyond the cart.
type CreateFromCartInput struct {
	UserID          uuid.UUID
	ShippingAddress dbtypes.JSONMap
	Note            *string
}

// NewService builds the order service with the required collaborators.
func NewService(repo Repository, tx txRunner, cart cartGateway, coupons couponGateway, catalog catalogReader, payments PaymentMarker, events EventPublisher, logg *logger.Logger, orderPrefix string) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon gateway required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if orderPrefix == "" {
		orderPrefix = "OWL"
	}
	return &Service{
		repo:        repo,
		tx:          tx,
		cart:        cart,
		coupons:     coupons,
		catalog:     catalog,
		payments:    payments,
		events:      events,
		logg:        logg,
		orderPrefix: orderPrefix,
		now:         time.Now,
	}, nil
}

// CreateFromCart converts the user's active cart into an order in a single
// transaction: lock cart, reserve stock under sorted row locks, re-validate
// the coupon, snapshot every line, consume the coupon slot, clear the cart.
// Any failure rolls the whole thing back.
func (s *Service) CreateFromCart(ctx context.Context, in CreateFromCartInput) (*models.Order, error) {
	if in.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.cart.LockActiveTx(ctx, tx, in.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "no active cart to check out")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines := make([]inventory.Line, 0, len(cart.Items))
		for _, item := range cart.Items {
			lines = append(lines, inventory.Line{InventoryID: item.InventoryID, Quantity: item.Quantity})
		}
		if err := inventory.Reserve(ctx, tx, lines); err != nil {
			return err
		}

		subtotal, _, _, _, _ := s.cart.Totals(cart.Items, nil)

		var coupon *models.Coupon
		if cart.CouponID != nil {
			coupon, err = s.coupons.ValidateTx(ctx, tx, *cart.CouponID, in.UserID, subtotal, s.now().UTC())
			if err != nil {
				return err
			}
		}

		_, discount, tax, shipping, total := s.cart.Totals(cart.Items, coupon)

		number, err := GenerateOrderNumber(s.orderPrefix, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order number")
		}

		order := &models.Order{
			ID:              uuid.New(),
			OrderNumber:     number,
			UserID:          in.UserID,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			Subtotal:        subtotal,
			DiscountAmount:  discount,
			TaxAmount:       tax,
			ShippingFee:     shipping,
			Total:           total,
			ShippingAddress: in.ShippingAddress,
			Note:            in.Note,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			code := coupon.Code
			order.CouponCode = &code
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items, err := s.buildItems(ctx, order.ID, cart.Items)
		if err != nil {
			return err
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:       uuid.New(),
			OrderID:  order.ID,
			ToStatus: enums.OrderStatusPending,
			Note:     "order created",
			Actor:    "checkout",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record history")
		}

		if coupon != nil {
			if err := s.coupons.ConsumeTx(ctx, tx, coupon, in.UserID, order.ID, discount); err != nil {
				return err
			}
		}

		if err := s.cart.ClearTx(ctx, tx, cart.ID); err != nil {
			return err
		}

		order.Items = items
		created = order
		return nil
	})
	if err != nil {
		if db.IsCheckViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, err, "stock exhausted")
		}
		return nil, err
	}

	if s.events != nil {
		s.events.OrderCreated(ctx, created)
	}
	return created, nil
}

// Cancel voids a still-cancellable order and restores its stock exactly once.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, actor, reason string) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.CancelTx(ctx, tx, orderID, actor, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.OrderCancelled(ctx, out)
	}
	return out, nil
}

// CancelTx is the tx-scoped cancellation used by Cancel, the payment-failure
// path and the unpaid-order sweep. The status gate under the row lock makes
// it idempotent: a second caller gets ORDER_NOT_CANCELLABLE and no restore.
func (s *Service) CancelTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor, reason string) (*models.Order, error) {
	repo := s.repo.WithTx(tx)

	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}

	if !order.Status.CanCancel() {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotCancellable, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}

	if err := s.restoreItems(ctx, tx, repo, order.ID); err != nil {
		return nil, err
	}

	from := order.Status
	now := s.now().UTC()
	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	order.CancelReason = &reason
	if err := repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}

	if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
		ID:         uuid.New(),
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   enums.OrderStatusCancelled,
		Note:       reason,
		Actor:      actor,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record history")
	}

	return order, nil
}

// Refund reverses a settled order: stock comes back, the completed payment
// flips to refunded, the order lands in refunded.
func (s *Service) Refund(ctx context.Context, orderID uuid.UUID, actor, reason string) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		if !order.Status.CanRefund() {
			return pkgerrors.New(pkgerrors.CodeOrderNotRefundable, "order is not eligible for a refund").
				WithDetails(map[string]any{"status": order.Status})
		}

		if err := s.restoreItems(ctx, tx, repo, order.ID); err != nil {
			return err
		}

		if s.payments != nil {
			if err := s.payments.MarkRefundedTx(ctx, tx, order.ID, reason); err != nil {
				return err
			}
		}

		from := order.Status
		order.Status = enums.OrderStatusRefunded
		order.PaymentStatus = enums.PaymentStatusRefunded
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}

		if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:         uuid.New(),
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   enums.OrderStatusRefunded,
			Note:       reason,
			Actor:      actor,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record history")
		}

		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaidTx settles a pending order. Called from the payment transition
// function under the payment row lock. When money arrives for an order that
// already left the payable window (for example auto-cancelled and the
// gateway confirmed later), the order is left untouched and a warning is
// logged for manual reconciliation.
func (s *Service) MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, note string) (*models.Order, error) {
	repo := s.repo.WithTx(tx)

	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}

	if order.Status == enums.OrderStatusPaid {
		return order, nil
	}
	if order.Status != enums.OrderStatusPending {
		if s.logg != nil {
			ctx := s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID,
				"status":   order.Status,
			})
			s.logg.Warn(ctx, "payment settled for non-payable order")
		}
		return order, nil
	}

	now := s.now().UTC()
	order.Status = enums.OrderStatusPaid
	order.PaymentStatus = enums.PaymentStatusCompleted
	order.PaidAt = &now
	if err := repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}

	if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
		ID:         uuid.New(),
		OrderID:    order.ID,
		FromStatus: enums.OrderStatusPending,
		ToStatus:   enums.OrderStatusPaid,
		Note:       note,
		Actor:      "payments",
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record history")
	}

	if s.events != nil {
		s.events.OrderPaid(ctx, order)
	}
	return order, nil
}

func (s *Service) restoreItems(ctx context.Context, tx *gorm.DB, repo Repository, orderID uuid.UUID) error {
	items, err := repo.Items(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}

	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{InventoryID: item.InventoryID, Quantity: item.Quantity})
	}
	return inventory.Restore(ctx, tx, lines)
}

func (s *Service) buildItems(ctx context.Context, orderID uuid.UUID, cartItems []models.CartItem) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		product, err := s.catalog.Product(ctx, ci.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "product no longer available").
					WithDetails(map[string]any{"product_id": ci.ProductID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		name := product.Name
		sku := product.SKU
		if ci.VariantID != nil {
			variant, err := s.catalog.Variant(ctx, *ci.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant no longer available").
						WithDetails(map[string]any{"variant_id": *ci.VariantID})
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
			}
			name = product.Name + " / " + variant.Name
			sku = variant.SKU
		}

		lineTotal := ci.UnitPrice.Mul(decimal.NewFromInt(int64(ci.Quantity)))
		commission := lineTotal.Mul(product.CommissionRate).Round(2)

		items = append(items, models.OrderItem{
			ID:               uuid.New(),
			OrderID:          orderID,
			ProductID:        ci.ProductID,
			VariantID:        ci.VariantID,
			InventoryID:      ci.InventoryID,
			VendorID:         product.VendorID,
			ProductName:      name,
			ProductSKU:       sku,
			UnitPrice:        ci.UnitPrice,
			Quantity:         ci.Quantity,
			LineTotal:        lineTotal,
			CommissionRate:   product.CommissionRate,
			CommissionAmount: commission,
			VendorAmount:     lineTotal.Sub(commission),
		})
	}
	return items, nil
}
