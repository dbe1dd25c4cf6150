package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
)

type stubReconciler struct {
	pending  []models.Payment
	pendErr  error
	results  map[string]*gateway.Result
	queryErr map[string]error
	applied  []gateway.Result

	from, to time.Time
	limit    int
}

func (s *stubReconciler) PendingForReconciliation(_ context.Context, from, to time.Time, limit int) ([]models.Payment, error) {
	s.from, s.to, s.limit = from, to, limit
	return s.pending, s.pendErr
}

func (s *stubReconciler) QueryGateway(_ context.Context, payment *models.Payment) (*gateway.Result, error) {
	if err, ok := s.queryErr[payment.TransactionID]; ok {
		return nil, err
	}
	return s.results[payment.TransactionID], nil
}

func (s *stubReconciler) ApplyGatewayResult(_ context.Context, result gateway.Result) (*models.Payment, error) {
	s.applied = append(s.applied, result)
	return &models.Payment{TransactionID: result.TransactionID}, nil
}

func pendingPayment(txnID string, code enums.GatewayCode) models.Payment {
	return models.Payment{
		TransactionID: txnID,
		Status:        enums.PaymentStatusPending,
		Method:        &models.PaymentMethod{Code: code},
	}
}

func TestReconcileJobRecoversLostWebhook(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{
		pending: []models.Payment{pendingPayment("TXN1", enums.GatewayVNPay)},
		results: map[string]*gateway.Result{
			"TXN1": {
				TransactionID: "TXN1",
				Outcome:       gateway.OutcomeSuccess,
				Amount:        decimal.NewFromInt(208200),
			},
		},
	}
	job, err := NewReconcilePaymentsJob(ReconcilePaymentsJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: stub,
		Metrics:  metrics.NewCronJobMetrics(nil),
		Grace:    15 * time.Minute,
		Batch:    50,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stub.applied) != 1 {
		t.Fatalf("expected 1 applied result, got %d", len(stub.applied))
	}
	if stub.applied[0].Source != gateway.SourceReconciliation {
		t.Fatalf("expected reconciliation source, got %q", stub.applied[0].Source)
	}
	if stub.limit != 50 {
		t.Fatalf("expected batch 50, got %d", stub.limit)
	}
	if window := stub.to.Sub(stub.from); window != reconcileLookback-15*time.Minute {
		t.Fatalf("unexpected query window %s", window)
	}
}

func TestReconcileJobSkipsPendingVerdictsAndOfflineMethods(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{
		pending: []models.Payment{
			pendingPayment("TXN_COD", enums.GatewayCOD),
			pendingPayment("TXN_WAIT", enums.GatewayMoMo),
		},
		results: map[string]*gateway.Result{
			"TXN_WAIT": {TransactionID: "TXN_WAIT", Outcome: gateway.OutcomePending},
		},
	}
	job, err := NewReconcilePaymentsJob(ReconcilePaymentsJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: stub,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stub.applied) != 0 {
		t.Fatalf("expected no transitions, got %d", len(stub.applied))
	}
}

func TestReconcileJobCollectsQueryErrorsAndContinues(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{
		pending: []models.Payment{
			pendingPayment("TXN_BAD", enums.GatewayVNPay),
			pendingPayment("TXN_OK", enums.GatewayVNPay),
		},
		results: map[string]*gateway.Result{
			"TXN_OK": {TransactionID: "TXN_OK", Outcome: gateway.OutcomeFailed, FailureReason: "code 24"},
		},
		queryErr: map[string]error{
			"TXN_BAD": errors.New("gateway timeout"),
		},
	}
	job, err := NewReconcilePaymentsJob(ReconcilePaymentsJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: stub,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected combined error from failed query")
	}
	if len(stub.applied) != 1 || stub.applied[0].TransactionID != "TXN_OK" {
		t.Fatalf("expected the healthy payment to still be applied, got %+v", stub.applied)
	}
}

type stubExpirer struct {
	expired   []models.Payment
	expireErr map[string]error
	swept     []string
}

func (s *stubExpirer) ExpiredPending(context.Context, time.Time, int) ([]models.Payment, error) {
	return s.expired, nil
}

func (s *stubExpirer) Expire(_ context.Context, transactionID string) (*models.Payment, error) {
	if err, ok := s.expireErr[transactionID]; ok {
		return nil, err
	}
	s.swept = append(s.swept, transactionID)
	return &models.Payment{TransactionID: transactionID}, nil
}

func TestPaymentExpiryJobSweepsExpiredPayments(t *testing.T) {
	t.Parallel()

	stub := &stubExpirer{
		expired: []models.Payment{
			pendingPayment("TXN_OLD1", enums.GatewayVNPay),
			pendingPayment("TXN_OLD2", enums.GatewayMoMo),
		},
	}
	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: stub,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stub.swept) != 2 {
		t.Fatalf("expected 2 expired payments, got %d", len(stub.swept))
	}
}

func TestPaymentExpiryJobReportsPerPaymentFailures(t *testing.T) {
	t.Parallel()

	stub := &stubExpirer{
		expired: []models.Payment{
			pendingPayment("TXN_FAIL", enums.GatewayVNPay),
			pendingPayment("TXN_OK", enums.GatewayVNPay),
		},
		expireErr: map[string]error{
			"TXN_FAIL": errors.New("db unavailable"),
		},
	}
	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: stub,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected combined error")
	}
	if len(stub.swept) != 1 || stub.swept[0] != "TXN_OK" {
		t.Fatalf("expected the healthy payment to still be swept, got %v", stub.swept)
	}
}

type stubOrderReader struct {
	stale  []models.Order
	cutoff time.Time
}

func (s *stubOrderReader) FindUnpaidPendingBefore(_ context.Context, cutoff time.Time, _ int) ([]models.Order, error) {
	s.cutoff = cutoff
	return s.stale, nil
}

type stubCanceller struct {
	cancelled []uuid.UUID
	errs      map[uuid.UUID]error
}

func (s *stubCanceller) Cancel(_ context.Context, orderID uuid.UUID, _, _ string) (*models.Order, error) {
	if err, ok := s.errs[orderID]; ok {
		return nil, err
	}
	s.cancelled = append(s.cancelled, orderID)
	return &models.Order{ID: orderID}, nil
}

func TestUnpaidOrdersJobCancelsStaleOrders(t *testing.T) {
	t.Parallel()

	staleID := uuid.New()
	settledID := uuid.New()
	brokenID := uuid.New()
	reader := &stubOrderReader{
		stale: []models.Order{
			{ID: staleID, OrderNumber: "OWL-20250829-000001"},
			{ID: settledID, OrderNumber: "OWL-20250829-000002"},
			{ID: brokenID, OrderNumber: "OWL-20250829-000003"},
		},
	}
	canceller := &stubCanceller{
		errs: map[uuid.UUID]error{
			// A webhook settled this one between the query and the cancel.
			settledID: pkgerrors.New(pkgerrors.CodeOrderNotCancellable, "order is paid"),
			brokenID:  errors.New("db unavailable"),
		},
	}
	job, err := NewUnpaidOrdersJob(UnpaidOrdersJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Reader:  reader,
		Orders:  canceller,
		Metrics: metrics.NewCronJobMetrics(nil),
		Timeout: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected error for the broken order")
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != staleID {
		t.Fatalf("expected exactly the stale order cancelled, got %v", canceller.cancelled)
	}
	if until := time.Until(reader.cutoff); until > -29*time.Minute {
		t.Fatalf("cutoff not pushed back by timeout: %s", reader.cutoff)
	}
}

type stubRules struct {
	refreshes int
	err       error
}

func (s *stubRules) Refresh(context.Context) error {
	s.refreshes++
	return s.err
}

func TestCouponRulesJobRefreshesSnapshot(t *testing.T) {
	t.Parallel()

	rules := &stubRules{}
	job, err := NewCouponRulesJob(logger.New(logger.Options{ServiceName: "cron-test"}), rules)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rules.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", rules.refreshes)
	}

	rules.err = errors.New("db unavailable")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected refresh error to surface")
	}
}
