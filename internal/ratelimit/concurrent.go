package ratelimit

import "context"

// ConcurrentLimiter bounds the number of simultaneously in-flight requests
// per key. Unlike the window-based algorithms this one is refundable: a
// request that is denied never occupied a slot, and a request that
// completes must call Release to free its slot (§6's non-refundable ruling
// applies only to fixed/sliding windows, not to this bucket).
type ConcurrentLimiter struct {
	store Store
	max   int64
}

// NewConcurrentLimiter builds a limiter allowing at most max concurrent
// in-flight requests per key.
func NewConcurrentLimiter(store Store, max int64) *ConcurrentLimiter {
	return &ConcurrentLimiter{store: store, max: max}
}

// Acquire attempts to reserve one concurrency slot for key. On denial no
// slot is held. The caller must call Release exactly once for every
// successful Acquire.
func (c *ConcurrentLimiter) Acquire(ctx context.Context, key string) (bool, error) {
	slotKey := key + ":cc"
	count, err := c.store.Incr(ctx, slotKey, 1, 0)
	if err != nil {
		return false, err
	}
	if count > c.max {
		// Refund immediately — this request never actually ran concurrently.
		if _, err := c.store.Incr(ctx, slotKey, -1, 0); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Release frees the concurrency slot acquired by a prior successful Acquire.
func (c *ConcurrentLimiter) Release(ctx context.Context, key string) error {
	_, err := c.store.Incr(ctx, key+":cc", -1, 0)
	return err
}
