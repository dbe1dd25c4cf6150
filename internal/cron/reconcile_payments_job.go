package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
)

const reconcileLookback = 24 * time.Hour

// paymentReconciler is the slice of the payment service this job needs.
type paymentReconciler interface {
	PendingForReconciliation(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error)
	QueryGateway(ctx context.Context, payment *models.Payment) (*gateway.Result, error)
	ApplyGatewayResult(ctx context.Context, result gateway.Result) (*models.Payment, error)
}

// ReconcilePaymentsJobParams configure the lost-webhook poller.
type ReconcilePaymentsJobParams struct {
	Logger   *logger.Logger
	Payments paymentReconciler
	Metrics  *metrics.CronJobMetrics
	Grace    time.Duration
	Batch    int
}

// NewReconcilePaymentsJob builds the job that asks gateways about payments
// whose webhook never arrived. The grace window keeps it off payments young
// enough that the webhook may still be in flight.
func NewReconcilePaymentsJob(params ReconcilePaymentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = 15 * time.Minute
	}
	batch := params.Batch
	if batch <= 0 {
		batch = 200
	}
	return &reconcilePaymentsJob{
		logg:     params.Logger,
		payments: params.Payments,
		metrics:  params.Metrics,
		grace:    grace,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type reconcilePaymentsJob struct {
	logg     *logger.Logger
	payments paymentReconciler
	metrics  *metrics.CronJobMetrics
	grace    time.Duration
	batch    int
	now      func() time.Time
}

func (j *reconcilePaymentsJob) Name() string { return "reconcile-payments" }

func (j *reconcilePaymentsJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	pending, err := j.payments.PendingForReconciliation(ctx, now.Add(-reconcileLookback), now.Add(-j.grace), j.batch)
	if err != nil {
		return fmt.Errorf("query pending payments: %w", err)
	}

	var errs []error
	resolved := 0
	for i := range pending {
		payment := &pending[i]
		if payment.Method == nil || !payment.Method.Code.HasGateway() {
			continue
		}

		result, err := j.payments.QueryGateway(ctx, payment)
		if err != nil {
			errs = append(errs, fmt.Errorf("query %s: %w", payment.TransactionID, err))
			continue
		}
		if result.Outcome == gateway.OutcomePending {
			continue
		}
		result.Source = gateway.SourceReconciliation

		if _, err := j.payments.ApplyGatewayResult(ctx, *result); err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", payment.TransactionID, err))
			continue
		}
		resolved++
	}

	j.metrics.AddSwept(j.Name(), resolved)
	if resolved > 0 {
		lctx := j.logg.WithField(ctx, "resolved", resolved)
		j.logg.Info(lctx, "recovered payment verdicts from gateways")
	}
	return multierr.Combine(errs...)
}
