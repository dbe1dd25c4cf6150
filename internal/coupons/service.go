package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
)

// Service provides coupon validation and redemption for the checkout
// transaction. Both entry points run against the caller's tx handle so the
// order transaction keeps a single atomic scope.
type Service struct {
	repo Repository
}

// NewService builds a coupon service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &Service{repo: repo}, nil
}

func invalid(reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon cannot be applied").
		WithDetails(map[string]any{"reason": reason})
}

// Discount computes the amount the coupon removes from the goods subtotal.
// Clamps keep it within spendable bounds. Free-shipping coupons discount
// nothing here; WaivesShipping reports the fee waiver so the shipping line
// is zeroed without shrinking the taxable base.
func Discount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}

	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount := subtotal.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
		if coupon.MaxDiscountAmount != nil && discount.GreaterThan(*coupon.MaxDiscountAmount) {
			discount = *coupon.MaxDiscountAmount
		}
		return discount
	case enums.DiscountTypeFixedAmount:
		if coupon.DiscountValue.GreaterThan(subtotal) {
			return subtotal
		}
		return coupon.DiscountValue
	default:
		return decimal.Zero
	}
}

// WaivesShipping reports whether the coupon zeroes the shipping fee instead
// of discounting the goods.
func WaivesShipping(coupon *models.Coupon) bool {
	return coupon != nil && coupon.DiscountType == enums.DiscountTypeFreeShipping
}

// Check runs the stateless eligibility rules. It is shared between the
// advisory cart path and the authoritative checkout path.
func Check(coupon *models.Coupon, subtotal decimal.Decimal, at time.Time) error {
	if !coupon.IsActive {
		return invalid("coupon is not active")
	}
	if at.Before(coupon.ValidFrom) {
		return invalid("coupon is not yet valid")
	}
	if coupon.ValidUntil != nil && at.After(*coupon.ValidUntil) {
		return invalid("coupon has expired")
	}
	if subtotal.LessThan(coupon.MinOrderAmount) {
		return invalid("order amount below coupon minimum")
	}
	if coupon.UsageLimit != nil && coupon.TimesUsed >= *coupon.UsageLimit {
		return invalid("coupon usage limit reached")
	}
	return nil
}

// ValidateTx locks the coupon row and re-runs every eligibility rule inside
// the checkout transaction, including the per-user redemption count.
func (s *Service) ValidateTx(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID, subtotal decimal.Decimal, at time.Time) (*models.Coupon, error) {
	repo := s.repo.WithTx(tx)

	coupon, err := repo.LockByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
	}

	if err := Check(coupon, subtotal, at); err != nil {
		return nil, err
	}

	used, err := repo.CountUsagesByUser(ctx, couponID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usages")
	}
	if coupon.PerUserLimit > 0 && used >= int64(coupon.PerUserLimit) {
		return nil, invalid("per-user redemption limit reached")
	}

	return coupon, nil
}

// ConsumeTx takes one usage slot and records the redemption. Must run in the
// same transaction as ValidateTx; a full coupon at commit time fails the
// whole checkout.
func (s *Service) ConsumeTx(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID, orderID uuid.UUID, discount decimal.Decimal) error {
	repo := s.repo.WithTx(tx)

	ok, err := repo.ConsumeSlot(ctx, coupon.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume coupon slot")
	}
	if !ok {
		return invalid("coupon usage limit reached")
	}

	usage := &models.CouponUsage{
		ID:              uuid.New(),
		CouponID:        coupon.ID,
		UserID:          userID,
		OrderID:         orderID,
		DiscountApplied: discount,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	return nil
}
