package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFixedWindow_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	fw := NewFixedWindow(NewMemoryStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _, _, err := fw.Allow(ctx, "k")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected allow on request %d", i+1)
		}
	}

	allowed, _, _, err := fw.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected denial once limit exceeded")
	}
}

func TestFixedWindow_RefundRestoresCapacity(t *testing.T) {
	ctx := context.Background()
	fw := NewFixedWindow(NewMemoryStore(), 1, time.Minute)

	allowed, _, _, _ := fw.Allow(ctx, "k")
	if !allowed {
		t.Fatalf("expected first request to be allowed")
	}
	if err := fw.Refund(ctx, "k"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	allowed, _, _, _ = fw.Allow(ctx, "k")
	if !allowed {
		t.Fatalf("expected refunded capacity to allow a new request")
	}
}

func TestFixedWindow_IndependentKeys(t *testing.T) {
	ctx := context.Background()
	fw := NewFixedWindow(NewMemoryStore(), 1, time.Minute)

	allowed1, _, _, _ := fw.Allow(ctx, "a")
	allowed2, _, _, _ := fw.Allow(ctx, "b")
	if !allowed1 || !allowed2 {
		t.Fatalf("expected independent keys to each get their own budget")
	}
}
