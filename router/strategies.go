package router

import "sort"

// registerBuiltinStrategies installs the six strategies named in the design:
// quality-first, cost-optimized, speed-priority, balanced, load-balanced,
// and fallback-chain.
func registerBuiltinStrategies(r *Router) {
	r.strategies["quality-first"] = qualityFirstStrategy{}
	r.strategies["cost-optimized"] = costOptimizedStrategy{}
	r.strategies["speed-priority"] = speedPriorityStrategy{}
	r.strategies["balanced"] = balancedStrategy{}
	r.strategies["load-balanced"] = loadBalancedStrategy{}
	r.strategies["fallback-chain"] = fallbackChainStrategy{}
}

// cloneScored returns a shallow copy so strategies never mutate the caller's
// backing array when sorting or filtering.
func cloneScored(in []scoredCandidate) []scoredCandidate {
	out := make([]scoredCandidate, len(in))
	copy(out, in)
	return out
}

// qualityFirstStrategy sorts by declared quality descending, filtering out
// candidates below the request's MinQuality (already hard-filtered, kept
// here for strategies invoked with a looser upstream filter).
type qualityFirstStrategy struct{}

func (qualityFirstStrategy) Order(req Request, in []scoredCandidate) []scoredCandidate {
	out := cloneScored(in)
	if req.MinQuality > 0 {
		filtered := out[:0]
		for _, c := range out {
			if c.Candidate.Quality >= req.MinQuality {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Candidate.Quality > out[j].Candidate.Quality })
	return out
}

// costOptimizedStrategy sorts by estimated request cost ascending, filtering
// out candidates above MaxCostPerRequest.
type costOptimizedStrategy struct{}

func (costOptimizedStrategy) Order(req Request, in []scoredCandidate) []scoredCandidate {
	out := cloneScored(in)
	if req.MaxCostPerRequest > 0 {
		filtered := out[:0]
		for _, c := range out {
			if c.CostPerRequest <= req.MaxCostPerRequest {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CostPerRequest < out[j].CostPerRequest })
	return out
}

// speedPriorityStrategy sorts by observed p75 latency ascending, filtering
// out candidates whose expected latency cannot meet the request's deadline.
type speedPriorityStrategy struct{}

func (speedPriorityStrategy) Order(req Request, in []scoredCandidate) []scoredCandidate {
	out := cloneScored(in)
	if req.DeadlineMS > 0 {
		filtered := out[:0]
		for _, c := range out {
			if c.P75LatencyMS <= req.DeadlineMS {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].P75LatencyMS < out[j].P75LatencyMS })
	return out
}

// balancedStrategy sorts by the weighted composite score already computed
// by Router.score into ScoreBreakdown.Final.
type balancedStrategy struct{}

func (balancedStrategy) Order(_ Request, in []scoredCandidate) []scoredCandidate {
	out := cloneScored(in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Final > out[j].Final })
	return out
}

// loadBalancedStrategy picks the candidate with the lowest current/max
// concurrency ratio. Equal ratios keep their input order; there is no
// round-robin rotation among them, and Router.Select's tie-break reorders
// only candidates whose Final scores are exactly equal, by provider id.
type loadBalancedStrategy struct{}

func (loadBalancedStrategy) Order(_ Request, in []scoredCandidate) []scoredCandidate {
	out := cloneScored(in)
	ratio := func(c scoredCandidate) float64 {
		if c.MaxConcurrency <= 0 {
			return 0
		}
		return float64(c.CurrentConcurrency) / float64(c.MaxConcurrency)
	}
	sort.SliceStable(out, func(i, j int) bool { return ratio(out[i]) < ratio(out[j]) })
	return out
}

// fallbackChainStrategy preserves the caller-supplied candidate order (a
// fixed priority list from config); the first whose circuit is closed wins,
// which hardFilter has already guaranteed for everything reaching here.
type fallbackChainStrategy struct{}

func (fallbackChainStrategy) Order(_ Request, in []scoredCandidate) []scoredCandidate {
	return cloneScored(in)
}
