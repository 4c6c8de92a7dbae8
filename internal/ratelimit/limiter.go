package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// bucketName identifies one position in the fixed evaluation order.
type bucketName string

const (
	bucketGlobal       bucketName = "global"
	bucketTierHourly   bucketName = "tier_hourly"
	bucketTierMinute   bucketName = "tier_minute"
	bucketTierConcurrent bucketName = "tier_concurrent"
	bucketRoute        bucketName = "route"
	bucketCost         bucketName = "cost"
)

// Decision is the outcome of one Check call.
type Decision struct {
	Allowed    bool
	Reason     bucketName // which bucket denied, empty if allowed
	RetryAfter time.Duration
	Limit      int64
	Remaining  int64
	Tier       string
	ResetAt    time.Time
}

// Headers returns the standard X-RateLimit-*/Retry-After header set for
// this decision, emitted on every response regardless of allow/deny.
func (d Decision) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     fmt.Sprintf("%d", d.Limit),
		"X-RateLimit-Remaining": fmt.Sprintf("%d", d.Remaining),
		"X-RateLimit-Tier":      d.Tier,
	}
	if !d.ResetAt.IsZero() {
		h["X-RateLimit-Reset"] = fmt.Sprintf("%d", d.ResetAt.Unix())
	}
	if !d.Allowed {
		h["Retry-After"] = fmt.Sprintf("%d", int64(d.RetryAfter.Seconds()))
	}
	return h
}

// consumedBucket records one successfully-consumed bucket so it can be
// refunded if a later bucket in the chain denies the request.
type consumedBucket struct {
	name bucketName
	key  string
}

// Limiter evaluates the fixed-order bucket chain described in §6: global →
// tier-hourly → tier-minute → tier-concurrent → route-specific → cost.
type Limiter struct {
	store    Store
	global   *FixedWindow
	adaptive *AdaptiveLimiter
	anomaly  *AnomalyDetector
}

// NewLimiter builds a Limiter over store with a fixed global cap applied
// to every subject regardless of tier (a circuit-breaker-of-last-resort
// for the whole gateway).
func NewLimiter(store Store, globalPerMinute int64) *Limiter {
	return &Limiter{
		store:    store,
		global:   NewFixedWindow(store, globalPerMinute, minuteWindow),
		adaptive: NewAdaptiveLimiter(),
		anomaly:  NewAnomalyDetector(time.Hour),
	}
}

// CheckRequest runs a subject's request through the full chain. subjectKey
// identifies the billing/rate subject (user or API key id); routeKey
// additionally scopes the route-specific bucket (e.g. "/v1/chat" vs
// "/v1/embeddings"); estimatedCostUSD is charged against the cost bucket.
func (l *Limiter) CheckRequest(ctx context.Context, subjectKey, routeKey string, tier Subject, estimatedCostUSD float64) (Decision, error) {
	resolvedTier := ResolveTier(tier)
	limits := LimitsForTier(resolvedTier)

	if limits.Unlimited() {
		return Decision{Allowed: true, Tier: resolvedTier}, nil
	}

	mult := l.adaptive.Multiplier(subjectKey)
	minuteLimit := int64(float64(limits.RequestsPerMinute) * mult)
	hourLimit := int64(float64(limits.RequestsPerHour) * mult)

	var consumed []consumedBucket
	refundAll := func() {
		for _, c := range consumed {
			l.refund(ctx, c)
		}
	}

	// global
	globalAllowed, globalRemaining, globalReset, err := l.global.Allow(ctx, "global")
	if err != nil {
		return Decision{}, err
	}
	if !globalAllowed {
		refundAll()
		return Decision{Allowed: false, Reason: bucketGlobal, RetryAfter: globalReset, Tier: resolvedTier}, nil
	}
	consumed = append(consumed, consumedBucket{bucketGlobal, "global"})

	// tier-hourly
	hourly := NewFixedWindow(l.store, hourLimit, hourWindow)
	hourAllowed, hourRemaining, hourReset, err := hourly.Allow(ctx, subjectKey+":hourly")
	if err != nil {
		return Decision{}, err
	}
	if !hourAllowed {
		refundAll()
		return Decision{Allowed: false, Reason: bucketTierHourly, RetryAfter: hourReset, Limit: hourLimit, Tier: resolvedTier}, nil
	}
	consumed = append(consumed, consumedBucket{bucketTierHourly, subjectKey + ":hourly"})

	// tier-minute (sliding, for tighter burst control than the hourly window)
	minute := NewSlidingWindow(l.store, minuteLimit, minuteWindow)
	minAllowed, minRemaining, err := minute.Allow(ctx, subjectKey+":minute")
	if err != nil {
		return Decision{}, err
	}
	if !minAllowed {
		refundAll()
		return Decision{Allowed: false, Reason: bucketTierMinute, RetryAfter: minuteWindow, Limit: minuteLimit, Tier: resolvedTier}, nil
	}
	consumed = append(consumed, consumedBucket{bucketTierMinute, subjectKey + ":minute"})

	// tier-concurrent
	concurrent := NewConcurrentLimiter(l.store, limits.MaxConcurrent)
	concOK, err := concurrent.Acquire(ctx, subjectKey)
	if err != nil {
		return Decision{}, err
	}
	if !concOK {
		refundAll()
		return Decision{Allowed: false, Reason: bucketTierConcurrent, RetryAfter: time.Second, Limit: limits.MaxConcurrent, Tier: resolvedTier}, nil
	}
	consumed = append(consumed, consumedBucket{bucketTierConcurrent, subjectKey})

	// route-specific (a fixed window at the tier's minute limit, keyed by route)
	if routeKey != "" {
		routeLimiter := NewFixedWindow(l.store, minuteLimit, minuteWindow)
		routeAllowed, _, routeReset, err := routeLimiter.Allow(ctx, subjectKey+":route:"+routeKey)
		if err != nil {
			return Decision{}, err
		}
		if !routeAllowed {
			refundAll()
			return Decision{Allowed: false, Reason: bucketRoute, RetryAfter: routeReset, Tier: resolvedTier}, nil
		}
		consumed = append(consumed, consumedBucket{bucketRoute, subjectKey + ":route:" + routeKey})
	}

	// cost
	if estimatedCostUSD > 0 {
		costLimit := float64(limits.DailyTokenBudget) / 1000 * limits.CostMultiplier // rough USD proxy
		cost := NewCostBucket(l.store, costLimit, dailyWindow)
		costOK, err := cost.Reserve(ctx, subjectKey, estimatedCostUSD)
		if err != nil {
			return Decision{}, err
		}
		if !costOK {
			refundAll()
			return Decision{Allowed: false, Reason: bucketCost, RetryAfter: dailyWindow, Tier: resolvedTier}, nil
		}
	}

	return Decision{
		Allowed:   true,
		Limit:     minuteLimit,
		Remaining: min64(globalRemaining, hourRemaining, minRemaining),
		Tier:      resolvedTier,
	}, nil
}

// Release frees the concurrency slot acquired by a successful CheckRequest.
// Callers must call this exactly once when the request finishes (success,
// failure, or cancellation alike).
func (l *Limiter) Release(ctx context.Context, subjectKey string) error {
	return NewConcurrentLimiter(l.store, 0).Release(ctx, subjectKey)
}

// Observe feeds a completed request's outcome into the adaptive limiter and
// anomaly detector.
func (l *Limiter) Observe(subjectKey, ip, ua string, failed bool, latencyMS float64, requestsThisMinute float64) []AnomalyFlag {
	l.adaptive.Observe(subjectKey, failed, latencyMS)
	return l.anomaly.Record(subjectKey, ip, ua, time.Now(), requestsThisMinute)
}

func (l *Limiter) refund(ctx context.Context, c consumedBucket) {
	switch c.name {
	case bucketGlobal:
		_ = l.global.Refund(ctx, c.key)
	case bucketTierHourly:
		fw := NewFixedWindow(l.store, 0, hourWindow)
		_ = fw.Refund(ctx, c.key)
	case bucketTierMinute:
		sw := NewSlidingWindow(l.store, 0, minuteWindow)
		_ = sw.Refund(ctx, c.key)
	case bucketTierConcurrent:
		_ = l.Release(ctx, c.key)
	case bucketRoute:
		fw := NewFixedWindow(l.store, 0, minuteWindow)
		_ = fw.Refund(ctx, c.key)
	}
}

func min64(values ...int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
