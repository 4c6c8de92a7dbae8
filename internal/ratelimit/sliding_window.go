package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// SlidingWindow approximates a sliding window over the abstract Store by
// weighting the previous fixed window's count by the fraction of it that
// still falls inside the current window, avoiding the sorted-set
// primitives a true sliding log would need (which MemoryStore doesn't
// expose and which would diverge from the Redis backend's behavior).
type SlidingWindow struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewSlidingWindow builds a limiter allowing limit requests per rolling window.
func NewSlidingWindow(store Store, limit int64, window time.Duration) *SlidingWindow {
	return &SlidingWindow{store: store, limit: limit, window: window}
}

// Allow increments the current sub-window counter and estimates the
// effective sliding count as currentCount + previousCount*overlapFraction.
func (s *SlidingWindow) Allow(ctx context.Context, key string) (allowed bool, remaining int64, err error) {
	now := time.Now()
	bucketIndex := now.UnixNano() / s.window.Nanoseconds()
	currentKey := fmt.Sprintf("%s:sw:%d", key, bucketIndex)
	previousKey := fmt.Sprintf("%s:sw:%d", key, bucketIndex-1)

	current, err := s.store.Incr(ctx, currentKey, 1, 2*s.window)
	if err != nil {
		return false, 0, err
	}
	previous, err := s.store.Get(ctx, previousKey)
	if err != nil {
		return false, 0, err
	}

	elapsedInCurrent := time.Duration(now.UnixNano() % s.window.Nanoseconds())
	overlap := 1 - float64(elapsedInCurrent)/float64(s.window)
	if overlap < 0 {
		overlap = 0
	}

	estimate := float64(current) + float64(previous)*overlap
	if estimate > float64(s.limit) {
		return false, 0, nil
	}
	remaining = s.limit - int64(estimate)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

// Refund undoes the current sub-window's increment for key, used when a
// later bucket in the fixed-order chain denies the request.
func (s *SlidingWindow) Refund(ctx context.Context, key string) error {
	now := time.Now()
	bucketIndex := now.UnixNano() / s.window.Nanoseconds()
	_, err := s.store.Incr(ctx, fmt.Sprintf("%s:sw:%d", key, bucketIndex), -1, 0)
	return err
}
