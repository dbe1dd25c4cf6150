package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
	pkgerrors "github.com/owlscommerce/owls-backend/pkg/errors"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
)

// unpaidOrderReader lists sweep candidates.
type unpaidOrderReader interface {
	FindUnpaidPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// orderCanceller cancels one order, restoring its stock.
type orderCanceller interface {
	Cancel(ctx context.Context, orderID uuid.UUID, actor, reason string) (*models.Order, error)
}

// UnpaidOrdersJobParams configure the unpaid-order auto-cancel sweep.
type UnpaidOrdersJobParams struct {
	Logger  *logger.Logger
	Reader  unpaidOrderReader
	Orders  orderCanceller
	Metrics *metrics.CronJobMetrics
	Timeout time.Duration
	Batch   int
}

// NewUnpaidOrdersJob builds the job that cancels orders nobody paid for,
// returning their reserved stock to the pool. Orders with a payment attempt
// still in flight are out of scope; those resolve through the webhook,
// reconciliation and expiry paths.
func NewUnpaidOrdersJob(params UnpaidOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	batch := params.Batch
	if batch <= 0 {
		batch = 200
	}
	return &unpaidOrdersJob{
		logg:    params.Logger,
		reader:  params.Reader,
		orders:  params.Orders,
		metrics: params.Metrics,
		timeout: timeout,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type unpaidOrdersJob struct {
	logg    *logger.Logger
	reader  unpaidOrderReader
	orders  orderCanceller
	metrics *metrics.CronJobMetrics
	timeout time.Duration
	batch   int
	now     func() time.Time
}

func (j *unpaidOrdersJob) Name() string { return "cancel-unpaid-orders" }

func (j *unpaidOrdersJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.timeout)
	stale, err := j.reader.FindUnpaidPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var errs []error
	cancelled := 0
	for i := range stale {
		order := &stale[i]
		_, err := j.orders.Cancel(ctx, order.ID, "system", "no payment received in time")
		if err != nil {
			// A webhook can settle the order between the query and the
			// cancel; the status gate reports that as not cancellable.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeOrderNotCancellable {
				continue
			}
			errs = append(errs, fmt.Errorf("cancel %s: %w", order.OrderNumber, err))
			continue
		}
		cancelled++
	}

	j.metrics.AddSwept(j.Name(), cancelled)
	if cancelled > 0 {
		lctx := j.logg.WithField(ctx, "cancelled", cancelled)
		j.logg.Info(lctx, "auto-cancelled unpaid orders")
	}
	return multierr.Combine(errs...)
}
