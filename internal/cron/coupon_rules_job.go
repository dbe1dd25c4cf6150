package cron

import (
	"context"
	"fmt"

	"github.com/owlscommerce/owls-backend/pkg/logger"
)

// rulesRefresher reloads the in-memory coupon rule snapshot.
type rulesRefresher interface {
	Refresh(ctx context.Context) error
}

// NewCouponRulesJob builds the job that keeps the coupon rule snapshot warm
// so cart validation does not hit the database on every request.
func NewCouponRulesJob(logg *logger.Logger, rules rulesRefresher) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rules == nil {
		return nil, fmt.Errorf("coupon rules required")
	}
	return &couponRulesJob{logg: logg, rules: rules}, nil
}

type couponRulesJob struct {
	logg  *logger.Logger
	rules rulesRefresher
}

func (j *couponRulesJob) Name() string { return "refresh-coupon-rules" }

func (j *couponRulesJob) Run(ctx context.Context) error {
	if err := j.rules.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh coupon rules: %w", err)
	}
	return nil
}
