package payments

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
)

func TestGenerateTransactionIDFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)
	id, err := GenerateTransactionID(now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !regexp.MustCompile(`^TXN20250829120000\d{6}$`).MatchString(id) {
		t.Fatalf("unexpected transaction id %q", id)
	}

	other, err := GenerateTransactionID(now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id == other {
		t.Fatal("expected distinct random tails")
	}
}

func TestCreateComputesFeeAndOpensGatewaySession(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	stub := &stubOrders{}
	adapter := &fakeAdapter{
		code:       enums.GatewayVNPay,
		createResp: &gateway.CreateResponse{PayURL: "https://pay.example/session", Raw: map[string]any{"vnp_TxnRef": "x"}},
	}
	svc := newService(t, db, stub, adapter)

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	seedMethod(t, db, enums.GatewayVNPay, func(m *models.PaymentMethod) {
		m.FeeType = enums.FeeTypePercentage
		m.FeeRate = decimal.RequireFromString("0.02")
	})

	out, err := svc.Create(ctx, CreateInput{OrderID: order.ID, MethodCode: enums.GatewayVNPay, ClientIP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.PayURL != "https://pay.example/session" {
		t.Fatalf("unexpected pay url %q", out.PayURL)
	}
	if !out.Payment.FeeAmount.Equal(decimal.NewFromInt(4164)) {
		t.Fatalf("expected fee 4164, got %s", out.Payment.FeeAmount)
	}
	if !out.Payment.NetAmount.Equal(decimal.NewFromInt(204036)) {
		t.Fatalf("expected net 204036, got %s", out.Payment.NetAmount)
	}
	if out.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", out.Payment.Status)
	}
	if out.Payment.ExpiresAt == nil || !out.Payment.ExpiresAt.After(time.Now().UTC().Add(23*time.Hour)) {
		t.Fatalf("expected 24h window, got %v", out.Payment.ExpiresAt)
	}
	if out.Payment.GatewayResponse["pay_url"] != "https://pay.example/session" {
		t.Fatalf("pay url not persisted: %v", out.Payment.GatewayResponse)
	}
}

func TestCreateRejectsNonPayableOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db, &stubOrders{}, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPaid, enums.PaymentStatusCompleted)
	seedMethod(t, db, enums.GatewayVNPay, nil)

	_, err := svc.Create(context.Background(), CreateInput{OrderID: order.ID, MethodCode: enums.GatewayVNPay})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreateEnforcesMethodLimits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db, &stubOrders{}, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	seedMethod(t, db, enums.GatewayVNPay, func(m *models.PaymentMethod) {
		m.MinAmount = decimal.NewFromInt(500000)
	})

	_, err := svc.Create(context.Background(), CreateInput{OrderID: order.ID, MethodCode: enums.GatewayVNPay})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateGatewayFailureMarksPaymentFailed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	adapter := &fakeAdapter{
		code:      enums.GatewayVNPay,
		createErr: pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "connection refused"),
	}
	svc := newService(t, db, &stubOrders{}, adapter)

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	seedMethod(t, db, enums.GatewayVNPay, nil)

	_, err := svc.Create(context.Background(), CreateInput{OrderID: order.ID, MethodCode: enums.GatewayVNPay})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeGatewayUnavailable {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}

	var payment models.Payment
	if err := db.First(&payment, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", payment.Status)
	}
	if payment.FailureReason == nil {
		t.Fatal("expected failure reason")
	}
}

func TestCreateCODSkipsGateway(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db, &stubOrders{}, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	seedMethod(t, db, enums.GatewayCOD, nil)

	out, err := svc.Create(context.Background(), CreateInput{OrderID: order.ID, MethodCode: enums.GatewayCOD})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.PayURL != "" {
		t.Fatalf("expected no pay url for cod, got %q", out.PayURL)
	}
	if out.Payment.ExpiresAt != nil {
		t.Fatalf("cod has no expiry window, got %s", out.Payment.ExpiresAt)
	}
}

func TestExpirySweepIgnoresCOD(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db, &stubOrders{}, &fakeAdapter{code: enums.GatewayVNPay})

	gwOrder := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	gwMethod := seedMethod(t, db, enums.GatewayVNPay, nil)
	stale := time.Now().UTC().Add(-time.Hour)
	gwPayment := seedPayment(t, db, gwOrder.ID, gwMethod.ID, enums.PaymentStatusPending)
	if err := db.Model(gwPayment).Update("expires_at", stale).Error; err != nil {
		t.Fatalf("age payment: %v", err)
	}

	codOrder := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	codMethod := seedMethod(t, db, enums.GatewayCOD, nil)
	codPayment := seedPayment(t, db, codOrder.ID, codMethod.ID, enums.PaymentStatusPending)
	if err := db.Model(codPayment).Update("expires_at", nil).Error; err != nil {
		t.Fatalf("clear window: %v", err)
	}

	expired, err := svc.ExpiredPending(context.Background(), time.Now().UTC(), 50)
	if err != nil {
		t.Fatalf("expired pending: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected one expired payment, got %d", len(expired))
	}
	if expired[0].TransactionID != gwPayment.TransactionID {
		t.Fatalf("expected the gateway payment, got %s", expired[0].TransactionID)
	}
}

func TestApplyGatewayResultSuccessSettlesOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	stub := &stubOrders{}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	result := gateway.Result{
		TransactionID:        payment.TransactionID,
		Outcome:              gateway.OutcomeSuccess,
		GatewayTransactionID: "14528791",
		Amount:               payment.Amount,
		Source:               gateway.SourceWebhook,
	}

	applied, err := svc.ApplyGatewayResult(ctx, result)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", applied.Status)
	}
	if applied.PaidAt == nil {
		t.Fatal("expected paid_at")
	}
	if applied.GatewayTransactionID == nil || *applied.GatewayTransactionID != "14528791" {
		t.Fatal("expected gateway transaction id")
	}
	if len(stub.paid) != 1 || stub.paid[0] != order.ID {
		t.Fatalf("expected order marked paid once, got %v", stub.paid)
	}

	// a second delivery of the same webhook is a silent no-op
	again, err := svc.ApplyGatewayResult(ctx, result)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed after replay, got %s", again.Status)
	}
	if len(stub.paid) != 1 {
		t.Fatalf("expected no second settlement, got %v", stub.paid)
	}
}

func TestApplyGatewayResultPendingIsDropped(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	applied, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomePending,
		Source:        gateway.SourceReconciliation,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending untouched, got %s", applied.Status)
	}
	if len(stub.paid)+len(stub.cancelled) != 0 {
		t.Fatal("expected no order transition")
	}
}

func TestApplyGatewayResultFailureCancelsOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	applied, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomeFailed,
		Source:        gateway.SourceWebhook,
		FailureReason: "vnpay response code 24",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", applied.Status)
	}
	if applied.FailureReason == nil || *applied.FailureReason != "vnpay response code 24" {
		t.Fatal("expected failure reason")
	}
	if len(stub.cancelled) != 1 || stub.cancelled[0] != order.ID {
		t.Fatalf("expected order cancelled, got %v", stub.cancelled)
	}
}

func TestApplyGatewayResultFailureToleratesUncancellableOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{
		cancelErr: pkgerrors.New(pkgerrors.CodeOrderNotCancellable, "order can no longer be cancelled"),
	}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusCancelled, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	applied, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomeFailed,
		Source:        gateway.SourceExpiry,
		FailureReason: "payment window expired",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", applied.Status)
	}
}

func TestApplyGatewayResultAmountMismatchRefused(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	_, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomeSuccess,
		Amount:        decimal.NewFromInt(1),
		Source:        gateway.SourceWebhook,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.PaymentStatusPending {
		t.Fatalf("expected payment untouched, got %s", reloaded.Status)
	}
	if len(stub.paid) != 0 {
		t.Fatal("expected no settlement")
	}
}

func TestApplyGatewayResultSecondSuccessForOrderIsCancelled(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPaid, enums.PaymentStatusCompleted)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusCompleted)
	second := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	applied, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: second.TransactionID,
		Outcome:       gateway.OutcomeSuccess,
		Amount:        second.Amount,
		Source:        gateway.SourceWebhook,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", applied.Status)
	}
	if len(stub.paid) != 0 {
		t.Fatal("expected no second settlement of the order")
	}
}

func TestApplyGatewayResultUnknownTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db, &stubOrders{}, &fakeAdapter{code: enums.GatewayVNPay})

	_, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: "TXN00000000000000000000",
		Outcome:       gateway.OutcomeSuccess,
		Source:        gateway.SourceWebhook,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentNotFound {
		t.Fatalf("expected payment not found, got %v", err)
	}
}

func TestExpireLosesToEarlierWebhook(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{}
	svc := newService(t, db, stub, &fakeAdapter{code: enums.GatewayVNPay})

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	if _, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomeSuccess,
		Amount:        payment.Amount,
		Source:        gateway.SourceWebhook,
	}); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	applied, err := svc.Expire(context.Background(), payment.TransactionID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if applied.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed to stand, got %s", applied.Status)
	}
	if len(stub.cancelled) != 0 {
		t.Fatal("expected no cancellation after settlement")
	}
}

func TestMarkRefundedTxFlipsSettledPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newService(t, db, &stubOrders{}, &fakeAdapter{code: enums.GatewayVNPay})
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPaid, enums.PaymentStatusCompleted)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusCompleted)

	if err := svc.MarkRefundedTx(ctx, db, order.ID, "customer request"); err != nil {
		t.Fatalf("mark refunded: %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", reloaded.Status)
	}

	// an order with no settled payment (cod before delivery) is a no-op
	if err := svc.MarkRefundedTx(ctx, db, uuid.New(), "nothing here"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestApplyGatewayResultFailurePublishesEvent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stub := &stubOrders{}
	events := &stubEvents{}
	svc, err := NewService(
		NewRepository(db),
		gormTx{db: db},
		stub,
		gateway.NewRegistry(&fakeAdapter{code: enums.GatewayVNPay}, gateway.NewCOD()),
		metrics.NewPaymentMetrics(nil),
		events,
		nil,
		24*time.Hour,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	order := seedOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusPending)
	method := seedMethod(t, db, enums.GatewayVNPay, nil)
	payment := seedPayment(t, db, order.ID, method.ID, enums.PaymentStatusPending)

	if _, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomeFailed,
		Source:        gateway.SourceWebhook,
		FailureReason: "vnpay response code 24",
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(events.failed) != 1 {
		t.Fatalf("expected one payment failed event, got %d", len(events.failed))
	}
	if events.failed[0].orderID != order.ID {
		t.Fatalf("event for wrong order: %s", events.failed[0].orderID)
	}
	if events.failed[0].reason != "vnpay response code 24" {
		t.Fatalf("unexpected reason %q", events.failed[0].reason)
	}

	// a duplicate delivery is absorbed before the transition, no second event
	if _, err := svc.ApplyGatewayResult(context.Background(), gateway.Result{
		TransactionID: payment.TransactionID,
		Outcome:       gateway.OutcomeFailed,
		Source:        gateway.SourceWebhook,
		FailureReason: "vnpay response code 24",
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(events.failed) != 1 {
		t.Fatalf("expected replay to publish nothing, got %d events", len(events.failed))
	}
}

// --- helpers ---

type stubEvents struct {
	failed []failedEvent
}

type failedEvent struct {
	orderID uuid.UUID
	reason  string
}

func (s *stubEvents) PaymentFailed(_ context.Context, order *models.Order, reason string) {
	s.failed = append(s.failed, failedEvent{orderID: order.ID, reason: reason})
}

type stubOrders struct {
	paid      []uuid.UUID
	cancelled []uuid.UUID
	cancelErr error
}

func (s *stubOrders) MarkPaidTx(_ context.Context, _ *gorm.DB, orderID uuid.UUID, _ string) (*models.Order, error) {
	s.paid = append(s.paid, orderID)
	return &models.Order{ID: orderID, Status: enums.OrderStatusPaid}, nil
}

func (s *stubOrders) CancelTx(_ context.Context, _ *gorm.DB, orderID uuid.UUID, _, _ string) (*models.Order, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	s.cancelled = append(s.cancelled, orderID)
	return &models.Order{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

type fakeAdapter struct {
	code        enums.GatewayCode
	createResp  *gateway.CreateResponse
	createErr   error
	queryResult *gateway.Result
	queryErr    error
}

func (f *fakeAdapter) Code() enums.GatewayCode { return f.code }

func (f *fakeAdapter) CreatePayment(_ context.Context, _ gateway.CreateRequest) (*gateway.CreateResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &gateway.CreateResponse{PayURL: "https://pay.example/default"}, nil
}

func (f *fakeAdapter) VerifyCallback(_ gateway.Callback) (*gateway.Result, error) {
	return nil, gateway.ErrInvalidSignature
}

func (f *fakeAdapter) QueryStatus(_ context.Context, transactionID string, _ time.Time) (*gateway.Result, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryResult != nil {
		return f.queryResult, nil
	}
	return &gateway.Result{TransactionID: transactionID, Outcome: gateway.OutcomePending, Source: gateway.SourceReconciliation}, nil
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newService(t *testing.T, db *gorm.DB, stub *stubOrders, adapter gateway.Adapter) *Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		gormTx{db: db},
		stub,
		gateway.NewRegistry(adapter, gateway.NewCOD()),
		metrics.NewPaymentMetrics(nil),
		nil,
		nil,
		24*time.Hour,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  coupon_id TEXT,
  coupon_code TEXT,
  subtotal NUMERIC NOT NULL,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  shipping_fee NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  shipping_address TEXT,
  note TEXT,
  paid_at DATETIME,
  cancelled_at DATETIME,
  cancel_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE payment_methods (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  code TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  fee_type TEXT NOT NULL DEFAULT 'none',
  fee_fixed NUMERIC NOT NULL DEFAULT 0,
  fee_rate NUMERIC NOT NULL DEFAULT 0,
  min_amount NUMERIC NOT NULL DEFAULT 0,
  max_amount NUMERIC,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  payment_method_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL UNIQUE,
  gateway_transaction_id TEXT,
  amount NUMERIC NOT NULL,
  fee_amount NUMERIC NOT NULL DEFAULT 0,
  net_amount NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  gateway_response TEXT,
  failure_reason TEXT,
  expires_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, paymentStatus enums.PaymentStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "OWL250829" + uuid.NewString()[:6],
		UserID:        uuid.New(),
		Status:        status,
		PaymentStatus: paymentStatus,
		Subtotal:      decimal.NewFromInt(180000),
		TaxAmount:     decimal.NewFromInt(13200),
		ShippingFee:   decimal.NewFromInt(30000),
		Total:         decimal.NewFromInt(208200),
	}
	if err := db.Omit("Items").Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func seedMethod(t *testing.T, db *gorm.DB, code enums.GatewayCode, mutate func(*models.PaymentMethod)) *models.PaymentMethod {
	t.Helper()
	method := &models.PaymentMethod{
		ID:       uuid.New(),
		Name:     string(code),
		Code:     code,
		IsActive: true,
		FeeType:  enums.FeeTypeNone,
	}
	if mutate != nil {
		mutate(method)
	}
	if err := db.Create(method).Error; err != nil {
		t.Fatalf("seed method: %v", err)
	}
	return method
}

func seedPayment(t *testing.T, db *gorm.DB, orderID, methodID uuid.UUID, status enums.PaymentStatus) *models.Payment {
	t.Helper()
	transactionID, err := GenerateTransactionID(time.Now())
	if err != nil {
		t.Fatalf("transaction id: %v", err)
	}
	expires := time.Now().UTC().Add(24 * time.Hour)
	payment := &models.Payment{
		ID:              uuid.New(),
		OrderID:         orderID,
		PaymentMethodID: methodID,
		TransactionID:   transactionID,
		Amount:          decimal.NewFromInt(208200),
		Status:          status,
		ExpiresAt:       &expires,
	}
	if err := db.Omit("Method").Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}
