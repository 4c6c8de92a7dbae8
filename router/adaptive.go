package router

import "sync"

// adaptiveLearner keeps per-(candidate, feature-bucket) exponential moving
// averages of success rate, latency, cost, and feedback-derived quality. It
// only contributes to scoring once a feature key has accumulated enough
// observations; before that, static candidate attributes govern (handled by
// the caller via the default-0.8 reliability fallback).
type adaptiveLearner struct {
	mu    sync.Mutex
	alpha float64
	stats map[string]*emaStats // key = candidateKey + "#" + featureKey
}

type emaStats struct {
	observations int
	successRate  float64
	latencyMS    float64
	costUSD      float64
}

func newAdaptiveLearner() *adaptiveLearner {
	return &adaptiveLearner{alpha: 0.1, stats: make(map[string]*emaStats)}
}

func statsKey(candidateKey string, features RequestFeatures) string {
	return candidateKey + "#" + features.key()
}

// update applies the outcome to the relevant EMA, seeding it on first
// observation rather than starting from zero.
func (a *adaptiveLearner) update(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := statsKey(o.Candidate.Key(), o.Features)
	s, ok := a.stats[key]
	if !ok {
		s = &emaStats{}
		if o.Success {
			s.successRate = 1
		}
		s.latencyMS = o.LatencyMS
		s.costUSD = o.CostUSD
		s.observations = 1
		a.stats[key] = s
		return
	}

	outcome := 0.0
	if o.Success {
		outcome = 1
	}
	s.successRate = ema(s.successRate, outcome, a.alpha)
	s.latencyMS = ema(s.latencyMS, o.LatencyMS, a.alpha)
	s.costUSD = ema(s.costUSD, o.CostUSD, a.alpha)
	s.observations++
}

func ema(prev, sample, alpha float64) float64 {
	return prev + alpha*(sample-prev)
}

// reliability returns the Laplace-smoothed success-rate EMA for the given
// candidate/feature pair once minSamples observations exist, otherwise the
// spec-mandated default of 0.8 (no history).
func (a *adaptiveLearner) reliability(candidateKey string, features RequestFeatures, minSamples int) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.stats[statsKey(candidateKey, features)]
	if !ok || s.observations < minSamples {
		return 0.8
	}
	// Laplace smoothing: (successes + 1) / (observations + 2), approximated
	// from the EMA'd rate and observation count.
	successes := s.successRate * float64(s.observations)
	return (successes + 1) / (float64(s.observations) + 2)
}
