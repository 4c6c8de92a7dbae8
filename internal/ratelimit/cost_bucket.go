package ratelimit

import (
	"context"
	"time"
)

// costScale fixes cost accounting to integer milli-cents internally so the
// abstract Store (integer-only) can hold fractional USD costs.
const costScale = 100000

// CostBucket limits cumulative estimated cost per key within a window
// (e.g. a tier's daily token-cost budget), rather than request count.
// Refundable: if a request's actual cost ends up lower than its estimate,
// the difference is returned via Refund.
type CostBucket struct {
	store    Store
	limitUSD float64
	window   time.Duration
}

// NewCostBucket builds a limiter allowing up to limitUSD of estimated cost
// per window.
func NewCostBucket(store Store, limitUSD float64, window time.Duration) *CostBucket {
	return &CostBucket{store: store, limitUSD: limitUSD, window: window}
}

// Reserve attempts to charge estimatedCostUSD against key's budget,
// refunding itself immediately on denial so this bucket is refundable per
// §6's ruling.
func (c *CostBucket) Reserve(ctx context.Context, key string, estimatedCostUSD float64) (bool, error) {
	bucketKey := key + ":cost"
	delta := int64(estimatedCostUSD * costScale)

	total, err := c.store.Incr(ctx, bucketKey, delta, c.window)
	if err != nil {
		return false, err
	}
	if float64(total)/costScale > c.limitUSD {
		if _, err := c.store.Incr(ctx, bucketKey, -delta, 0); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Refund returns the difference between an estimated and actual cost to
// key's budget (actualCostUSD may be larger than the estimate, in which
// case this charges the extra amount instead).
func (c *CostBucket) Refund(ctx context.Context, key string, estimatedCostUSD, actualCostUSD float64) error {
	diff := int64((estimatedCostUSD - actualCostUSD) * costScale)
	_, err := c.store.Incr(ctx, key+":cost", diff, 0)
	return err
}

// Remaining returns the budget left in the current window.
func (c *CostBucket) Remaining(ctx context.Context, key string) (float64, error) {
	total, err := c.store.Get(ctx, key+":cost")
	if err != nil {
		return 0, err
	}
	remaining := c.limitUSD - float64(total)/costScale
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
