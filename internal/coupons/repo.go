package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
)

// Repository manages persistence for coupons and their redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	CountUsagesByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	ConsumeSlot(ctx context.Context, couponID uuid.UUID) (bool, error)
	CreateUsage(ctx context.Context, usage *models.CouponUsage) error
	ListActive(ctx context.Context, at time.Time) ([]models.Coupon, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupon repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// LockByID loads the coupon under a row lock on Postgres so concurrent
// checkouts of the same code serialize before the per-user count check.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var coupon models.Coupon
	if err := query.First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CountUsagesByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}

// ConsumeSlot increments times_used only while the global usage limit has
// room. First committer wins: the losing transaction sees zero rows affected.
func (r *repository) ConsumeSlot(ctx context.Context, couponID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE coupons SET times_used = times_used + 1
		 WHERE id = ? AND (usage_limit IS NULL OR times_used < usage_limit)`,
		couponID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) ListActive(ctx context.Context, at time.Time) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND valid_from <= ? AND (valid_until IS NULL OR valid_until >= ?)", true, at, at).
		Find(&coupons).Error
	return coupons, err
}
