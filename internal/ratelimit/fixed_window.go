package ratelimit

import (
	"context"
	"time"
)

// FixedWindow counts requests against a hard cap per wall-clock window
// (e.g. "100 per calendar minute"). Simplest and cheapest of the five
// algorithms; subject to edge-of-window bursts, which is why the limiter
// pairs the hourly fixed window with a per-minute sliding-window bucket.
type FixedWindow struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewFixedWindow builds a limiter allowing limit requests per window.
func NewFixedWindow(store Store, limit int64, window time.Duration) *FixedWindow {
	return &FixedWindow{store: store, limit: limit, window: window}
}

// Allow increments the window counter for key and reports whether the
// count (after increment) stays within limit. Fixed/sliding-window buckets
// are non-refundable: a denial's increment is not rolled back (§6 ruling),
// since the count itself still reflects real inbound request volume.
func (f *FixedWindow) Allow(ctx context.Context, key string) (allowed bool, remaining int64, resetIn time.Duration, err error) {
	bucketKey := key + ":fw"
	count, err := f.store.Incr(ctx, bucketKey, 1, f.window)
	if err != nil {
		return false, 0, 0, err
	}
	resetIn, err = f.store.TTL(ctx, bucketKey)
	if err != nil {
		return false, 0, 0, err
	}
	if count > f.limit {
		return false, 0, resetIn, nil
	}
	return true, f.limit - count, resetIn, nil
}

// Refund undoes a previously successful Allow's increment, used when a
// later bucket in the fixed-order chain denies the request (§6: "all
// buckets that were consumed are refunded on denial").
func (f *FixedWindow) Refund(ctx context.Context, key string) error {
	_, err := f.store.Incr(ctx, key+":fw", -1, 0)
	return err
}
