package coupons

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/owlscommerce/owls-backend/pkg/db/models"
)

// Rules is a periodically refreshed snapshot of active coupons used by the
// cart read path. It keeps coupon lookups off the hot path; the checkout
// transaction always re-validates against the live row.
type Rules struct {
	repo Repository

	mu        sync.RWMutex
	byCode    map[string]models.Coupon
	refreshed time.Time
}

// NewRules builds an empty snapshot around the repository.
func NewRules(repo Repository) *Rules {
	return &Rules{
		repo:   repo,
		byCode: map[string]models.Coupon{},
	}
}

// Refresh reloads the snapshot from the active coupon set.
func (r *Rules) Refresh(ctx context.Context) error {
	active, err := r.repo.ListActive(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	next := make(map[string]models.Coupon, len(active))
	for _, coupon := range active {
		next[strings.ToUpper(coupon.Code)] = coupon
	}

	r.mu.Lock()
	r.byCode = next
	r.refreshed = time.Now().UTC()
	r.mu.Unlock()
	return nil
}

// FindByCode returns the snapshot entry for the code, if present.
func (r *Rules) FindByCode(code string) (models.Coupon, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	coupon, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return coupon, ok
}

// RefreshedAt reports when the snapshot was last rebuilt.
func (r *Rules) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshed
}
