package strategies

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ferro-labs/ai-gateway/gwerr"
	"github.com/ferro-labs/ai-gateway/internal/circuitbreaker"
	"github.com/ferro-labs/ai-gateway/internal/logging"
	"github.com/ferro-labs/ai-gateway/models"
	"github.com/ferro-labs/ai-gateway/providers"
	"github.com/ferro-labs/ai-gateway/router"
)

// CircuitLookup resolves a provider's circuit breaker, when one is
// configured for it. candidates() uses it to drop any target whose breaker
// is open, so scored selection never picks a provider the other strategies
// would refuse to dispatch to; a half-open breaker is not down-weighted there.
type CircuitLookup func(providerID string) (*circuitbreaker.CircuitBreaker, bool)

// ScoredRouter dispatches through one of router.Router's six scoring
// strategies (quality-first, cost-optimized, speed-priority, balanced,
// load-balanced, fallback-chain). Unlike Single/Fallback/LoadBalance/
// Conditional, whose candidate order is fixed by config, this type builds a
// fresh candidate pool per request from the provider/model catalog and lets
// router.Router decide the order; ScoredRouter only carries out the
// resulting fallback chain and reports outcomes back to the adaptive
// learner.
type ScoredRouter struct {
	rt         *router.Router
	strategy   string
	targets    []Target
	lookup     ProviderLookup
	circuits   CircuitLookup
	catalog    models.Catalog
	maxRetries int
}

// NewScoredRouter builds a ScoredRouter bound to one of the router
// package's six built-in strategy names.
func NewScoredRouter(rt *router.Router, strategyName string, targets []Target, lookup ProviderLookup, circuits CircuitLookup, catalog models.Catalog) *ScoredRouter {
	return &ScoredRouter{
		rt:         rt,
		strategy:   strategyName,
		targets:    targets,
		lookup:     lookup,
		circuits:   circuits,
		catalog:    catalog,
		maxRetries: 2,
	}
}

// WithMaxRetries sets the number of attempts per candidate before advancing
// to the next entry in the fallback list.
func (s *ScoredRouter) WithMaxRetries(n int) *ScoredRouter {
	if n > 0 {
		s.maxRetries = n
	}
	return s
}

// circuitView adapts this strategy's CircuitLookup to router.CircuitView.
type circuitView struct{ lookup CircuitLookup }

func (v circuitView) IsOpen(providerID string) bool {
	cb, ok := v.lookup(providerID)
	if !ok {
		return false
	}
	return cb.State() == circuitbreaker.StateOpen
}

// RemainingRateFraction reports the fraction of a provider's declared rate
// budget still available this window. The gateway's rate limiter tracks
// budgets per authenticated subject, not per upstream provider, so there is
// no live per-provider counter to read here; a provider with no breaker or a
// non-half-open breaker reports 1.0, and a half-open breaker reports 0.5.
func (v circuitView) RemainingRateFraction(providerID string) float64 {
	cb, ok := v.lookup(providerID)
	if !ok {
		return 1
	}
	if cb.State() == circuitbreaker.StateHalfOpen {
		return 0.5
	}
	return 1
}

// candidates builds the router.Candidate pool: one entry per configured
// target whose provider is registered and supports the requested model,
// enriched with catalog metadata (context window, capabilities, cost) when
// available.
func (s *ScoredRouter) candidates(req providers.Request) []router.Candidate {
	out := make([]router.Candidate, 0, len(s.targets))
	for _, t := range s.targets {
		p, ok := s.lookup(t.VirtualKey)
		if !ok || !p.SupportsModel(req.Model) {
			continue
		}
		if s.circuits != nil {
			if cb, found := s.circuits(t.VirtualKey); found && cb.State() == circuitbreaker.StateOpen {
				continue
			}
		}

		c := router.Candidate{
			ProviderID:   t.VirtualKey,
			ModelID:      req.Model,
			Quality:      0.8,
			Capabilities: map[string]bool{"streaming": true},
		}
		if _, isStream := p.(providers.StreamProvider); !isStream {
			c.Capabilities["streaming"] = false
		}

		if m, found := s.catalog.Get(t.VirtualKey + "/" + req.Model); found {
			c.ContextWindow = m.ContextWindow
			c.Quality = qualityFromCatalog(m)
			c.Capabilities["vision"] = m.Capabilities.Vision
			c.Capabilities["function_calling"] = m.Capabilities.FunctionCalling
			c.CostPerRequest = estimateCost(m, s.catalog, t.VirtualKey, req)
		} else if ce, ok := p.(providers.CostEstimator); ok {
			// Catalog has no pricing for this candidate; fall back to the
			// provider's own estimate (its static pricing table) rather than
			// scoring it as free, which would always win cost-optimized ranking.
			c.CostPerRequest = ce.EstimateCost(s.catalog, req)
		}
		out = append(out, c)
	}
	return out
}

// qualityFromCatalog derives a [0,1] quality score from catalog metadata.
// The catalog has no first-class "quality" field (it records pricing,
// capability flags and lifecycle status, not a benchmarked score), so this
// is a documented heuristic: a deprecated/legacy model is penalized, and
// each advanced capability nudges the score up from a 0.6 base.
func qualityFromCatalog(m models.Model) float64 {
	q := 0.6
	if m.IsDeprecated() {
		q -= 0.2
	}
	if m.Capabilities.Reasoning {
		q += 0.15
	}
	if m.Capabilities.FunctionCalling {
		q += 0.1
	}
	if m.Capabilities.Vision {
		q += 0.05
	}
	if m.Capabilities.ResponseSchema {
		q += 0.05
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return q
}

// estimateCost approximates the USD cost of a single request using the
// catalog's declared per-token pricing and a rough token count (message
// content length / 4, per the non-goal that tokenization need not be
// bit-exact). Returns 0 when the catalog has no pricing for the model.
func estimateCost(m models.Model, catalog models.Catalog, providerID string, req providers.Request) float64 {
	var chars int
	for _, msg := range req.Messages {
		chars += len(msg.Content)
	}
	promptTokens := chars / 4
	maxOut := 256
	if req.MaxTokens != nil {
		maxOut = *req.MaxTokens
	}
	result := models.Calculate(catalog, providerID+"/"+m.ModelID, models.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: maxOut,
	})
	return result.TotalUSD
}

// toRouterRequest translates the normalized request's optional RouterHints
// into the router package's Request shape, hard-filtering on tool presence
// (function-calling becomes a required capability automatically).
func toRouterRequest(req providers.Request) router.Request {
	var rr router.Request
	if h := req.RouterHints; h != nil {
		rr.MinQuality = h.MinQuality
		rr.MaxCostPerRequest = h.MaxCostPerRequest
		rr.DeadlineMS = h.DeadlineMS
		rr.Urgent = h.Urgent
		rr.BudgetConscious = h.BudgetConscious
		rr.RequiredCapabilities = append(rr.RequiredCapabilities, h.RequiredCapabilities...)
		rr.Features = router.RequestFeatures{
			LengthBucket:    h.LengthBucket,
			ComplexityLevel: h.ComplexityLevel,
			DomainTag:       h.DomainTag,
			HasCode:         h.HasCode,
			HasMath:         h.HasMath,
		}
	}
	if len(req.Tools) > 0 {
		rr.RequiredCapabilities = appendUniqueCapability(rr.RequiredCapabilities, "function_calling")
	}

	var chars int
	for _, msg := range req.Messages {
		chars += len(msg.Content)
	}
	maxOut := 0
	if req.MaxTokens != nil {
		maxOut = *req.MaxTokens
	}
	rr.ContextTokens = chars/4 + maxOut
	return rr
}

func appendUniqueCapability(caps []string, c string) []string {
	for _, existing := range caps {
		if existing == c {
			return caps
		}
	}
	return append(caps, c)
}

// OrderedProviderKeys runs the named scored strategy's selection without
// dispatching, returning just the ordered provider ids. RouteStream uses this
// to pick a streaming-capable candidate in scored order instead of falling
// back to the gateway's unscored target list.
func OrderedProviderKeys(rt *router.Router, strategyName string, targets []Target, lookup ProviderLookup, circuits CircuitLookup, catalog models.Catalog, req providers.Request) ([]string, error) {
	sr := NewScoredRouter(rt, strategyName, targets, lookup, circuits, catalog)
	cands := sr.candidates(req)
	if len(cands) == 0 {
		return nil, fmt.Errorf("scored router (%s): no candidate supports model %q", strategyName, req.Model)
	}
	decision, err := rt.Select(toRouterRequest(req), cands, strategyName)
	if err != nil {
		return nil, fmt.Errorf("scored router (%s): %w", strategyName, err)
	}
	keys := make([]string, len(decision.FallbackList))
	for i, c := range decision.FallbackList {
		keys[i] = c.ProviderID
	}
	return keys, nil
}

// Execute selects an ordered candidate list via router.Router and dispatches
// through it in order, retrying each candidate up to maxRetries before
// advancing to the next, and reports the outcome back to the adaptive
// learner via OnResult.
func (s *ScoredRouter) Execute(ctx context.Context, req providers.Request) (*providers.Response, error) {
	cands := s.candidates(req)
	if len(cands) == 0 {
		return nil, fmt.Errorf("scored router (%s): no candidate supports model %q", s.strategy, req.Model)
	}

	rreq := toRouterRequest(req)
	decision, err := s.rt.Select(rreq, cands, s.strategy)
	if err != nil {
		return nil, fmt.Errorf("scored router (%s): %w", s.strategy, err)
	}

	var lastErr error
	contextRetrySpent := false
	for _, cand := range decision.FallbackList {
		p, ok := s.lookup(cand.ProviderID)
		if !ok {
			continue
		}

		start := time.Now()
		var resp *providers.Response
		var attemptErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
			}
			resp, attemptErr = p.Complete(ctx, req)
			if attemptErr == nil {
				break
			}
			// A permanent error (other than a context-length overflow, which
			// gets its own single cross-candidate retry below) won't succeed
			// by retrying against the same candidate.
			kind := gwerr.KindOf(attemptErr)
			if gwerr.IsPermanent(kind) && kind != gwerr.ContextLengthExceeded {
				break
			}
		}
		latency := time.Since(start)

		if attemptErr == nil {
			s.rt.OnResult(decision, router.Outcome{
				Candidate: cand,
				Features:  rreq.Features,
				Success:   true,
				LatencyMS: float64(latency.Milliseconds()),
			})
			return resp, nil
		}

		lastErr = fmt.Errorf("provider %s: %w", cand.ProviderID, attemptErr)
		s.rt.OnResult(decision, router.Outcome{
			Candidate: cand,
			Features:  rreq.Features,
			Success:   false,
			LatencyMS: float64(latency.Milliseconds()),
		})
		logging.Logger.Warn("scored router candidate failed, advancing fallback list",
			"strategy", s.strategy, "provider", cand.ProviderID, "error", attemptErr.Error())

		if gwerr.KindOf(attemptErr) == gwerr.ContextLengthExceeded {
			if contextRetrySpent {
				return nil, fmt.Errorf("scored router (%s): context window exceeded after its single retry: %w", s.strategy, lastErr)
			}
			contextRetrySpent = true
		}
	}

	return nil, fmt.Errorf("all scored-router (%s) candidates failed: %w", s.strategy, lastErr)
}
