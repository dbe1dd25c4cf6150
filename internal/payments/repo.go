package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// Repository manages persistence for payments and payment methods.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Save(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	LockByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	HasCompletedForOrder(ctx context.Context, orderID, excludeID uuid.UUID) (bool, error)
	FindCompletedForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindMethodByCode(ctx context.Context, code enums.GatewayCode) (*models.PaymentMethod, error)
	ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindPendingCreatedBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error)
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit("Method").Create(payment).Error
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit("Method").Save(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Method").
		First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Method").
		First(&payment, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// LockByTransactionID reloads the payment under a row lock on Postgres.
// Webhook, reconciliation and expiry all funnel through this lock, so only
// one source can apply a transition at a time.
func (r *repository) LockByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var payment models.Payment
	if err := query.First(&payment, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("Method").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *repository) HasCompletedForOrder(ctx context.Context, orderID, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ? AND id <> ?", orderID, enums.PaymentStatusCompleted, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindCompletedForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		First(&payment, "order_id = ? AND status = ?", orderID, enums.PaymentStatusCompleted).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindMethodByCode(ctx context.Context, code enums.GatewayCode) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	if err := r.db.WithContext(ctx).
		First(&method, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&methods).Error
	return methods, err
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindPendingCreatedBetween feeds the reconciliation poller: non-terminal
// payments old enough that the webhook should have arrived, young enough
// that the gateway still has the session.
func (r *repository) FindPendingCreatedBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("Method").
		Where("status IN ? AND created_at >= ? AND created_at < ?",
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusProcessing}, from, to).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// FindPendingExpiredBefore feeds the expiry sweep. Offline methods carry no
// expiry window (NULL expires_at) and never show up here.
func (r *repository) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("Method").
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusProcessing}, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// IsNotFound reports whether the error is a missing-row lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
