package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
)

// paymentExpirer is the slice of the payment service this job needs.
type paymentExpirer interface {
	ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
	Expire(ctx context.Context, transactionID string) (*models.Payment, error)
}

// PaymentExpiryJobParams configure the payment window sweep.
type PaymentExpiryJobParams struct {
	Logger   *logger.Logger
	Payments paymentExpirer
	Metrics  *metrics.CronJobMetrics
	Batch    int
}

// NewPaymentExpiryJob builds the job that fails payments whose window
// elapsed without a gateway verdict. The transition function absorbs races
// with a late webhook.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = 200
	}
	return &paymentExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		metrics:  params.Metrics,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments paymentExpirer
	metrics  *metrics.CronJobMetrics
	batch    int
	now      func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "expire-payments" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.payments.ExpiredPending(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("query expired payments: %w", err)
	}

	var errs []error
	swept := 0
	for i := range expired {
		payment := &expired[i]
		if _, err := j.payments.Expire(ctx, payment.TransactionID); err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", payment.TransactionID, err))
			continue
		}
		swept++
	}

	j.metrics.AddSwept(j.Name(), swept)
	if swept > 0 {
		lctx := j.logg.WithField(ctx, "expired", swept)
		j.logg.Info(lctx, "expired stale payments")
	}
	return multierr.Combine(errs...)
}
