package router

// hardFilter removes candidates that can never serve the request: capability
// mismatch, insufficient context window, quality below the request's floor,
// cost above its ceiling, or an open circuit. Rate-budget exhaustion is
// handled separately in score() as a down-weight, not an exclusion.
func hardFilter(req Request, candidates []Candidate, circuits CircuitView) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if circuits.IsOpen(c.ProviderID) {
			continue
		}
		if !hasCapabilities(c, req.RequiredCapabilities) {
			continue
		}
		if req.ContextTokens > 0 && c.ContextWindow > 0 && req.ContextTokens > c.ContextWindow {
			continue
		}
		if req.MinQuality > 0 && c.Quality < req.MinQuality {
			continue
		}
		if req.MaxCostPerRequest > 0 && c.CostPerRequest > req.MaxCostPerRequest {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasCapabilities(c Candidate, required []string) bool {
	for _, cap := range required {
		if !c.Capabilities[cap] {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// score computes the five scoring factors for a single candidate and applies
// the contextual modifiers (urgency, budget-consciousness) before the
// strategies see it. Availability is 0 whenever the circuit is open (which
// hardFilter already excludes, so in practice this only ever reflects rate
// budget exhaustion here) and reliability falls back to the learner's
// feature-keyed EMA once it has enough samples, otherwise the default 0.8.
func (r *Router) score(req Request, c Candidate, circuits CircuitView, cfg ScoringConfig) ScoreBreakdown {
	quality := clamp01(c.Quality)

	costScore := 1.0
	if cfg.CostCeilingUSD > 0 {
		costScore = 1 - clamp01(c.CostPerRequest/cfg.CostCeilingUSD)
	}

	speedScore := 1.0
	if cfg.LatencyCeilingMS > 0 {
		speedScore = 1 - clamp01(c.P75LatencyMS/cfg.LatencyCeilingMS)
	}

	availability := clamp01(circuits.RemainingRateFraction(c.ProviderID))

	reliability := r.learner.reliability(c.Key(), req.Features, cfg.AdaptiveMinSamples)

	if req.Urgent {
		speedScore = clamp01(speedScore * 1.5)
	}
	if req.BudgetConscious {
		costScore = clamp01(costScore * 1.5)
	}

	w := cfg.BalancedWeights
	final := w.Quality*quality + w.Cost*costScore + w.Speed*speedScore +
		w.Availability*availability + w.Reliability*reliability

	return ScoreBreakdown{
		Quality:      quality,
		CostScore:    costScore,
		SpeedScore:   speedScore,
		Availability: availability,
		Reliability:  reliability,
		Final:        final,
	}
}
