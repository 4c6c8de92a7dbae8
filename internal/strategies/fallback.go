package strategies

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ferro-labs/ai-gateway/gwerr"
	"github.com/ferro-labs/ai-gateway/internal/logging"
	"github.com/ferro-labs/ai-gateway/providers"
)

// Fallback tries each target in order, moving to the next on failure.
type Fallback struct {
	targets    []Target
	lookup     ProviderLookup
	maxRetries int
}

// NewFallback creates a new fallback strategy.
func NewFallback(targets []Target, lookup ProviderLookup) *Fallback {
	return &Fallback{
		targets:    targets,
		lookup:     lookup,
		maxRetries: 1,
	}
}

// WithMaxRetries sets the number of attempts per target before moving to the next.
func (f *Fallback) WithMaxRetries(n int) *Fallback {
	f.maxRetries = n
	return f
}

// Execute attempts each provider in order, retrying on failure with exponential backoff.
func (f *Fallback) Execute(ctx context.Context, req providers.Request) (*providers.Response, error) {
	if len(f.targets) == 0 {
		return nil, fmt.Errorf("no targets configured for fallback")
	}

	var lastErr error
	contextRetrySpent := false
	for _, target := range f.targets {
		p, ok := f.lookup(target.VirtualKey)
		if !ok {
			logging.Logger.Warn("provider not found, skipping", "provider", target.VirtualKey)
			lastErr = fmt.Errorf("provider not found: %s", target.VirtualKey)
			continue
		}
		if !p.SupportsModel(req.Model) {
			continue
		}

		var attemptErr error
		for attempt := 0; attempt < f.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				logging.Logger.Info("retrying provider", "provider", target.VirtualKey, "attempt", attempt+1)
			}

			var resp *providers.Response
			resp, attemptErr = p.Complete(ctx, req)
			if attemptErr == nil {
				return resp, nil
			}
			kind := gwerr.KindOf(attemptErr)
			if gwerr.IsPermanent(kind) && kind != gwerr.ContextLengthExceeded {
				break
			}
		}
		lastErr = fmt.Errorf("provider %s: %w", target.VirtualKey, attemptErr)

		if gwerr.KindOf(attemptErr) == gwerr.ContextLengthExceeded {
			if contextRetrySpent {
				return nil, fmt.Errorf("context window exceeded after its single retry: %w", lastErr)
			}
			contextRetrySpent = true
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
