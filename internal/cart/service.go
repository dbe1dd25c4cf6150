package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owlscommerce/owls-backend/internal/coupons"
	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Options carries the pricing knobs applied when totals are recalculated.
type Options struct {
	TaxRate         decimal.Decimal
	ShippingFee     decimal.Decimal
	MaxItemQuantity int
}

// Service owns the single active cart per user. Stock checks here are
// advisory; checkout re-validates everything under row locks.
type Service struct {
	repo       Repository
	catalog    Catalog
	couponRepo coupons.Repository
	rules      *coupons.Rules
	tx         txRunner
	opts       Options
}

// AddItemInput describes one add-to-cart request.
type AddItemInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, catalog Catalog, couponRepo coupons.Repository, rules *coupons.Rules, tx txRunner, opts Options) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if rules == nil {
		return nil, fmt.Errorf("coupon rules required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.MaxItemQuantity <= 0 {
		opts.MaxItemQuantity = 99
	}
	return &Service{
		repo:       repo,
		catalog:    catalog,
		couponRepo: couponRepo,
		rules:      rules,
		tx:         tx,
		opts:       opts,
	}, nil
}

// GetOrCreate returns the user's active cart, creating one when absent.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         enums.CartStatusActive,
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		ShippingFee:    decimal.Zero,
		Total:          decimal.Zero,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return fresh, nil
}

// AddItem puts a sellable unit into the cart, folding repeat adds of the
// same unit into a quantity bump.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*models.Cart, error) {
	if in.Quantity < 1 || in.Quantity > s.opts.MaxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"max": s.opts.MaxItemQuantity})
	}

	cart, err := s.GetOrCreate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.Product(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	unitPrice := product.Price
	inventoryID := product.InventoryID
	if in.VariantID != nil {
		variant, err := s.catalog.Variant(ctx, *in.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if variant.ProductID != product.ID || !variant.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not available")
		}
		unitPrice = variant.Price
		inventoryID = variant.InventoryID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindItemByProduct(ctx, cart.ID, in.ProductID, in.VariantID)
		switch {
		case err == nil:
			existing.Quantity += in.Quantity
			if existing.Quantity > s.opts.MaxItemQuantity {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
					WithDetails(map[string]any{"max": s.opts.MaxItemQuantity})
			}
			if err := s.checkAvailability(ctx, inventoryID, existing.Quantity); err != nil {
				return err
			}
			existing.UnitPrice = unitPrice
			if err := repo.SaveItem(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.checkAvailability(ctx, inventoryID, in.Quantity); err != nil {
				return err
			}
			item := &models.CartItem{
				ID:          uuid.New(),
				CartID:      cart.ID,
				ProductID:   in.ProductID,
				VariantID:   in.VariantID,
				InventoryID: inventoryID,
				Quantity:    in.Quantity,
				UnitPrice:   unitPrice,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		return s.recalculateTx(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, in.UserID)
}

// UpdateItemQuantity sets the quantity of an existing line.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 || quantity > s.opts.MaxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"max": s.opts.MaxItemQuantity})
	}

	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := s.checkAvailability(ctx, item.InventoryID, quantity); err != nil {
			return err
		}

		item.Quantity = quantity
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return s.recalculateTx(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, userID)
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindItem(ctx, cart.ID, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := repo.DeleteItem(ctx, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return s.recalculateTx(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, userID)
}

// ApplyCoupon attaches a coupon after an advisory eligibility pass against
// the rules snapshot. The checkout transaction re-validates authoritatively.
func (s *Service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.Cart, error) {
	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	coupon, ok := s.rules.FindByCode(code)
	if !ok {
		// snapshot may lag a freshly created coupon; fall back to the table
		fromDB, err := s.couponRepo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon cannot be applied").
					WithDetails(map[string]any{"reason": "coupon not found"})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}
		coupon = *fromDB
	}

	subtotal := itemsSubtotal(cart.Items)
	if err := coupons.Check(&coupon, subtotal, time.Now().UTC()); err != nil {
		return nil, err
	}

	used, err := s.couponRepo.CountUsagesByUser(ctx, coupon.ID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usages")
	}
	if coupon.PerUserLimit > 0 && used >= int64(coupon.PerUserLimit) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon cannot be applied").
			WithDetails(map[string]any{"reason": "per-user redemption limit reached"})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart.CouponID = &coupon.ID
		if err := repo.Save(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
		}
		return s.recalculateTx(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, userID)
}

// RemoveCoupon detaches any applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Model(&models.Cart{}).
			Where("id = ?", cart.ID).
			Update("coupon_id", nil).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
		}
		return s.recalculateTx(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, userID)
}

// LockActiveTx loads the user's active cart with items, holding a row lock
// on Postgres so two checkouts of the same cart serialize.
func (s *Service) LockActiveTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	query := tx.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var cart models.Cart
	if err := query.First(&cart).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Find(&cart.Items).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClearTx empties the cart after a successful checkout. Runs inside the
// order transaction.
func (s *Service) ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DeleteItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}

	updates := map[string]any{
		"status":          enums.CartStatusConverted,
		"coupon_id":       nil,
		"subtotal":        decimal.Zero,
		"discount_amount": decimal.Zero,
		"tax_amount":      decimal.Zero,
		"shipping_fee":    decimal.Zero,
		"total":           decimal.Zero,
	}
	if err := tx.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
	}
	return nil
}

// Totals computes the money breakdown for a set of items and an optional
// coupon. Shared with checkout so both sides price identically.
func (s *Service) Totals(items []models.CartItem, coupon *models.Coupon) (subtotal, discount, tax, shipping, total decimal.Decimal) {
	subtotal = itemsSubtotal(items)

	shipping = s.opts.ShippingFee
	if len(items) == 0 {
		shipping = decimal.Zero
	}

	discount = decimal.Zero
	if coupon != nil {
		discount = coupons.Discount(coupon, subtotal)
		if coupons.WaivesShipping(coupon) {
			shipping = decimal.Zero
		}
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	tax = taxable.Mul(s.opts.TaxRate).Round(2)
	total = subtotal.Sub(discount).Add(tax).Add(shipping)
	return subtotal, discount, tax, shipping, total
}

func (s *Service) recalculateTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	var cart models.Cart
	if err := tx.WithContext(ctx).Preload("Items").First(&cart, "id = ?", cartID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}

	var coupon *models.Coupon
	if cart.CouponID != nil {
		found, err := s.couponRepo.WithTx(tx).FindByID(ctx, *cart.CouponID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart coupon")
		}
		coupon = found
	}

	subtotal, discount, tax, shipping, total := s.Totals(cart.Items, coupon)

	updates := map[string]any{
		"subtotal":        subtotal,
		"discount_amount": discount,
		"tax_amount":      tax,
		"shipping_fee":    shipping,
		"total":           total,
	}
	if err := tx.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart totals")
	}
	return nil
}

func (s *Service) checkAvailability(ctx context.Context, inventoryID uuid.UUID, qty int) error {
	item, err := s.catalog.Inventory(ctx, inventoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	if !item.TracksInventory || item.AllowBackorder {
		return nil
	}
	if item.StockQuantity < qty {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"inventory_id": item.ID,
				"requested":    qty,
				"available":    item.StockQuantity,
			})
	}
	return nil
}

func (s *Service) activeCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *Service) reload(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}

func itemsSubtotal(items []models.CartItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal
}
