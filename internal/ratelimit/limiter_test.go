package ratelimit

import (
	"context"
	"testing"
)

func TestLimiter_AllowsWithinTierDefaults(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore(), 1_000_000)

	d, err := l.CheckRequest(ctx, "user_1", "/v1/chat", Subject{UserTier: TierPro}, 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected first request to be allowed, reason=%s", d.Reason)
	}
	if d.Tier != TierPro {
		t.Fatalf("got tier %q, want pro", d.Tier)
	}
}

func TestLimiter_AdminIsUnlimited(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore(), 1)

	// Exhaust the global bucket first.
	_, _ = l.CheckRequest(ctx, "someone", "", Subject{UserTier: TierFree}, 0)

	d, err := l.CheckRequest(ctx, "admin_user", "", Subject{IsAdmin: true}, 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected admin subject to bypass all limits")
	}
}

func TestLimiter_TierConcurrentDenial(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore(), 1_000_000)

	// Free tier allows MaxConcurrent=2; exhaust it without releasing.
	for i := 0; i < 2; i++ {
		d, err := l.CheckRequest(ctx, "user_free", "", Subject{UserTier: TierFree}, 0)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed before exhausting concurrency", i+1)
		}
	}

	d, err := l.CheckRequest(ctx, "user_free", "", Subject{UserTier: TierFree}, 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected denial once concurrent cap exhausted")
	}
	if d.Reason != bucketTierConcurrent {
		t.Fatalf("expected denial reason %q, got %q", bucketTierConcurrent, d.Reason)
	}
}

func TestLimiter_ReleaseFreesConcurrencySlot(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore(), 1_000_000)

	for i := 0; i < 2; i++ {
		if _, err := l.CheckRequest(ctx, "user_free2", "", Subject{UserTier: TierFree}, 0); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	if err := l.Release(ctx, "user_free2"); err != nil {
		t.Fatalf("release: %v", err)
	}

	d, err := l.CheckRequest(ctx, "user_free2", "", Subject{UserTier: TierFree}, 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected request allowed after a release freed a slot")
	}
}

func TestDecision_Headers(t *testing.T) {
	d := Decision{Allowed: false, Limit: 10, Remaining: 0, Tier: TierBasic}
	headers := d.Headers()
	if headers["X-RateLimit-Limit"] != "10" {
		t.Errorf("unexpected limit header: %v", headers["X-RateLimit-Limit"])
	}
	if _, ok := headers["Retry-After"]; !ok {
		t.Errorf("expected Retry-After header on deny")
	}
}
