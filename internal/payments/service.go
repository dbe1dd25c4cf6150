package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	dbtypes "github.com/owlscommerce/owls-backend/pkg/db/types"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderTransitioner is the slice of the order service payments needs.
type orderTransitioner interface {
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, note string) (*models.Order, error)
	CancelTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor, reason string) (*models.Order, error)
}

// eventPublisher fans out the payment-failed event after commit.
type eventPublisher interface {
	PaymentFailed(ctx context.Context, order *models.Order, reason string)
}

// Service owns payment creation and the single transition function that
// webhook, reconciliation and expiry results all flow through.
type Service struct {
	repo     Repository
	tx       txRunner
	orders   orderTransitioner
	gateways *gateway.Registry
	metrics  *metrics.PaymentMetrics
	events   eventPublisher
	logg     *logger.Logger

	ceiling time.Duration
	now     func() time.Time
}

// CreateInput starts a payment attempt for an order.
type CreateInput struct {
	OrderID    uuid.UUID
	MethodCode enums.GatewayCode
	ClientIP   string
}

// CreateOutput is the persisted attempt plus the redirect URL, empty for
// cash on delivery.
type CreateOutput struct {
	Payment *models.Payment
	PayURL  string
}

// NewService builds the payment service.
func NewService(repo Repository, tx txRunner, orders orderTransitioner, gateways *gateway.Registry, pm *metrics.PaymentMetrics, events eventPublisher, logg *logger.Logger, ceiling time.Duration) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if ceiling <= 0 {
		ceiling = 24 * time.Hour
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		orders:   orders,
		gateways: gateways,
		metrics:  pm,
		events:   events,
		logg:     logg,
		ceiling:  ceiling,
		now:      time.Now,
	}, nil
}

// Create opens a payment attempt: validate the order is still payable,
// validate the method, compute the fee, persist the row, then ask the
// gateway for a redirect URL. The row is written before the gateway call so
// a crash mid-call leaves a pending payment the reconciler can resolve.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateOutput, error) {
	order, err := s.repo.FindOrder(ctx, in.OrderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
	}

	method, err := s.repo.FindMethodByCode(ctx, in.MethodCode)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment method")
	}
	if !method.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is disabled")
	}
	if order.Total.LessThan(method.MinAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total below the method minimum").
			WithDetails(map[string]any{"min_amount": method.MinAmount})
	}
	if method.MaxAmount != nil && order.Total.GreaterThan(*method.MaxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total above the method maximum").
			WithDetails(map[string]any{"max_amount": *method.MaxAmount})
	}

	now := s.now().UTC()
	transactionID, err := GenerateTransactionID(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transaction id")
	}

	fee := method.Fee(order.Total)
	payment := &models.Payment{
		ID:              uuid.New(),
		OrderID:         order.ID,
		PaymentMethodID: method.ID,
		TransactionID:   transactionID,
		Amount:          order.Total,
		FeeAmount:       fee,
		NetAmount:       order.Total.Sub(fee),
		Status:          enums.PaymentStatusPending,
	}
	if method.Code.HasGateway() {
		expires := now.Add(s.ceiling)
		payment.ExpiresAt = &expires
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	payment.Method = method

	if !method.Code.HasGateway() {
		return &CreateOutput{Payment: payment}, nil
	}

	adapter, ok := s.gateways.ForCode(method.Code)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no adapter registered for "+method.Code.String())
	}

	resp, err := adapter.CreatePayment(ctx, gateway.CreateRequest{
		TransactionID: payment.TransactionID,
		OrderNumber:   order.OrderNumber,
		Amount:        payment.Amount,
		Description:   "Owls order " + order.OrderNumber,
		ClientIP:      in.ClientIP,
		CreatedAt:     payment.CreatedAt,
	})
	if err != nil {
		reason := "gateway session failed: " + err.Error()
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = &reason
		if saveErr := s.repo.Save(ctx, payment); saveErr != nil && s.logg != nil {
			s.logg.Error(ctx, "persist failed payment after gateway error", saveErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "open gateway session")
	}

	response := dbtypes.JSONMap{"pay_url": resp.PayURL}
	for key, value := range resp.Raw {
		response[key] = value
	}
	payment.GatewayResponse = response
	if err := s.repo.Save(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}

	return &CreateOutput{Payment: payment, PayURL: resp.PayURL}, nil
}

// ApplyGatewayResult is the single transition function. Every result source
// lands here: the payment row is locked, terminal states absorb duplicates,
// pending results are dropped, and only then does the order move.
func (s *Service) ApplyGatewayResult(ctx context.Context, result gateway.Result) (*models.Payment, error) {
	var out *models.Payment
	var failed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.LockByTransactionID(ctx, result.TransactionID)
		if err != nil {
			if IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodePaymentNotFound, "payment not found").
					WithDetails(map[string]any{"transaction_id": result.TransactionID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}

		if payment.Status.IsTerminal() {
			s.metrics.IncDuplicate(result.Source)
			out = payment
			return nil
		}

		switch result.Outcome {
		case gateway.OutcomePending:
			out = payment
			return nil
		case gateway.OutcomeSuccess:
			return s.applySuccess(ctx, tx, repo, payment, result, &out)
		case gateway.OutcomeFailed:
			if err := s.applyFailure(ctx, tx, repo, payment, result, &out); err != nil {
				return err
			}
			failed = true
			return nil
		default:
			return pkgerrors.New(pkgerrors.CodeInternal, "unknown gateway outcome "+string(result.Outcome))
		}
	})
	if err != nil {
		return nil, err
	}

	if failed && s.events != nil {
		reason := ""
		if out.FailureReason != nil {
			reason = *out.FailureReason
		}
		if order, loadErr := s.repo.FindOrder(ctx, out.OrderID); loadErr == nil {
			s.events.PaymentFailed(ctx, order, reason)
		} else if s.logg != nil {
			s.logg.Error(ctx, "load order for payment failed event", loadErr)
		}
	}
	return out, nil
}

func (s *Service) applySuccess(ctx context.Context, tx *gorm.DB, repo Repository, payment *models.Payment, result gateway.Result, out **models.Payment) error {
	if result.Amount.IsPositive() && !result.Amount.Equal(payment.Amount) {
		s.metrics.IncAmountMismatch(result.Source)
		if s.logg != nil {
			lctx := s.logg.WithTransactionID(ctx, payment.TransactionID)
			s.logg.Warn(lctx, "gateway amount mismatch, transition refused")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "gateway amount does not match payment").
			WithDetails(map[string]any{
				"expected": payment.Amount,
				"received": result.Amount,
			})
	}

	settled, err := repo.HasCompletedForOrder(ctx, payment.OrderID, payment.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settled payments")
	}
	if settled {
		reason := "order already settled by another payment"
		payment.Status = enums.PaymentStatusCancelled
		payment.FailureReason = &reason
		if err := repo.Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
		}
		if s.logg != nil {
			lctx := s.logg.WithTransactionID(ctx, payment.TransactionID)
			s.logg.Warn(lctx, "duplicate settlement for order, payment cancelled")
		}
		s.metrics.IncTransition(result.Source, string(enums.PaymentStatusCancelled))
		*out = payment
		return nil
	}

	now := s.now().UTC()
	payment.Status = enums.PaymentStatusCompleted
	payment.PaidAt = &now
	if result.GatewayTransactionID != "" {
		gwID := result.GatewayTransactionID
		payment.GatewayTransactionID = &gwID
	}
	payment.GatewayResponse = mergeResponse(payment.GatewayResponse, result.Raw)
	if err := repo.Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}

	note := fmt.Sprintf("payment %s completed via %s", payment.TransactionID, result.Source)
	if _, err := s.orders.MarkPaidTx(ctx, tx, payment.OrderID, note); err != nil {
		return err
	}

	s.metrics.IncTransition(result.Source, string(enums.PaymentStatusCompleted))
	*out = payment
	return nil
}

func (s *Service) applyFailure(ctx context.Context, tx *gorm.DB, repo Repository, payment *models.Payment, result gateway.Result, out **models.Payment) error {
	reason := result.FailureReason
	if reason == "" {
		reason = "payment failed"
	}
	payment.Status = enums.PaymentStatusFailed
	payment.FailureReason = &reason
	payment.GatewayResponse = mergeResponse(payment.GatewayResponse, result.Raw)
	if err := repo.Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}

	// The order may already be cancelled by the sweep, or settled by a
	// second attempt. Neither blocks recording this failure.
	if _, err := s.orders.CancelTx(ctx, tx, payment.OrderID, "payments", reason); err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOrderNotCancellable {
			return err
		}
	}

	s.metrics.IncTransition(result.Source, string(enums.PaymentStatusFailed))
	*out = payment
	return nil
}

// Expire force-fails a payment whose window elapsed without a verdict. It
// reuses the transition function, so a webhook that raced ahead wins.
func (s *Service) Expire(ctx context.Context, transactionID string) (*models.Payment, error) {
	return s.ApplyGatewayResult(ctx, gateway.Result{
		TransactionID: transactionID,
		Outcome:       gateway.OutcomeFailed,
		Source:        gateway.SourceExpiry,
		FailureReason: "payment window expired",
	})
}

// QueryGateway asks the payment's gateway for the current verdict.
func (s *Service) QueryGateway(ctx context.Context, payment *models.Payment) (*gateway.Result, error) {
	if payment.Method == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method not loaded")
	}
	if !payment.Method.Code.HasGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "method has no gateway to query")
	}
	adapter, ok := s.gateways.ForCode(payment.Method.Code)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no adapter registered for "+payment.Method.Code.String())
	}
	return adapter.QueryStatus(ctx, payment.TransactionID, payment.CreatedAt)
}

// MarkRefundedTx flips the settled payment of an order to refunded. Called
// from the order refund transaction. COD orders may have no completed
// payment row, which is fine.
func (s *Service) MarkRefundedTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	repo := s.repo.WithTx(tx)

	payment, err := repo.FindCompletedForOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settled payment")
	}

	payment.Status = enums.PaymentStatusRefunded
	payment.FailureReason = &reason
	if err := repo.Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}
	return nil
}

// GetByTransactionID loads one payment with its method.
func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	payment, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodePaymentNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// ListByOrder returns every attempt against an order, oldest first.
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	payments, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

// ListMethods returns the methods a buyer can currently pick.
func (s *Service) ListMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	methods, err := s.repo.ListActiveMethods(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods")
	}
	return methods, nil
}

// PendingForReconciliation returns in-flight payments inside the poll window.
func (s *Service) PendingForReconciliation(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error) {
	return s.repo.FindPendingCreatedBetween(ctx, from, to, limit)
}

// ExpiredPending returns in-flight payments whose window has elapsed.
func (s *Service) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	return s.repo.FindPendingExpiredBefore(ctx, cutoff, limit)
}

func mergeResponse(existing dbtypes.JSONMap, raw map[string]any) dbtypes.JSONMap {
	if existing == nil {
		existing = dbtypes.JSONMap{}
	}
	for key, value := range raw {
		existing[key] = value
	}
	return existing
}
