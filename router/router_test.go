package router

import (
	"testing"
)

type fakeCircuits struct {
	open      map[string]bool
	remaining map[string]float64
}

func (f fakeCircuits) IsOpen(id string) bool { return f.open[id] }
func (f fakeCircuits) RemainingRateFraction(id string) float64 {
	if v, ok := f.remaining[id]; ok {
		return v
	}
	return 1
}

func baseCandidates() []Candidate {
	return []Candidate{
		{ProviderID: "p_A", ModelID: "m1", Quality: 0.9, CostPerRequest: 0.02, P75LatencyMS: 800, ContextWindow: 8000, MaxConcurrency: 10, Capabilities: map[string]bool{}},
		{ProviderID: "p_B", ModelID: "m1", Quality: 0.8, CostPerRequest: 0.01, P75LatencyMS: 400, ContextWindow: 8000, MaxConcurrency: 10, Capabilities: map[string]bool{}},
	}
}

func TestSelect_QualityFirst(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{}, baseCandidates(), "quality-first")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_A" {
		t.Fatalf("expected p_A chosen (higher quality), got %s", d.Chosen.ProviderID)
	}
	if len(d.FallbackList) != 2 {
		t.Fatalf("expected 2 candidates in fallback list, got %d", len(d.FallbackList))
	}
}

func TestSelect_CostOptimized(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{}, baseCandidates(), "cost-optimized")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_B" {
		t.Fatalf("expected p_B chosen (cheaper), got %s", d.Chosen.ProviderID)
	}
}

func TestSelect_SpeedPriority(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{}, baseCandidates(), "speed-priority")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_B" {
		t.Fatalf("expected p_B chosen (lower latency), got %s", d.Chosen.ProviderID)
	}
}

func TestSelect_ExcludesOpenCircuit(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{open: map[string]bool{"p_A": true}}))
	d, err := r.Select(Request{}, baseCandidates(), "quality-first")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_B" {
		t.Fatalf("expected p_A excluded by open circuit, got chosen=%s", d.Chosen.ProviderID)
	}
	for _, c := range d.FallbackList {
		if c.ProviderID == "p_A" {
			t.Fatalf("p_A must not appear in fallback list while its circuit is open")
		}
	}
}

func TestSelect_NoCandidate(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	_, err := r.Select(Request{MinQuality: 0.99}, baseCandidates(), "quality-first")
	if err != ErrNoCandidate {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}

func TestSelect_CapabilityHardFilter(t *testing.T) {
	candidates := []Candidate{
		{ProviderID: "p_A", ModelID: "m1", Quality: 0.9, Capabilities: map[string]bool{"vision": true}},
		{ProviderID: "p_B", ModelID: "m1", Quality: 0.95, Capabilities: map[string]bool{}},
	}
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{RequiredCapabilities: []string{"vision"}}, candidates, "quality-first")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_A" {
		t.Fatalf("expected p_A (only vision-capable), got %s", d.Chosen.ProviderID)
	}
}

func TestSelect_ContextLengthHardFilter(t *testing.T) {
	candidates := []Candidate{
		{ProviderID: "p_A", ModelID: "m1", Quality: 0.9, ContextWindow: 4000},
		{ProviderID: "p_B", ModelID: "m1", Quality: 0.5, ContextWindow: 32000},
	}
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{ContextTokens: 8000}, candidates, "quality-first")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_B" {
		t.Fatalf("expected p_B (only one with enough context), got %s", d.Chosen.ProviderID)
	}
}

// TestSelect_Deterministic asserts Testable Property 5 (fallback monotonicity):
// repeated Select calls with identical state return the same ordered list.
func TestSelect_Deterministic(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	req := Request{}
	candidates := baseCandidates()

	first, err := r.Select(req, candidates, "balanced")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 5; i++ {
		d, err := r.Select(req, candidates, "balanced")
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if len(d.FallbackList) != len(first.FallbackList) {
			t.Fatalf("fallback list length changed across calls")
		}
		for j := range d.FallbackList {
			if d.FallbackList[j].Key() != first.FallbackList[j].Key() {
				t.Fatalf("fallback order changed across calls at index %d", j)
			}
		}
	}
}

func TestSelect_TieBreakByProviderID(t *testing.T) {
	candidates := []Candidate{
		{ProviderID: "p_zebra", ModelID: "m1", Quality: 0.5},
		{ProviderID: "p_alpha", ModelID: "m1", Quality: 0.5},
	}
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{}, candidates, "quality-first")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_alpha" {
		t.Fatalf("expected lexicographically lower provider id on tie, got %s", d.Chosen.ProviderID)
	}
}

func TestSelect_UnknownStrategy(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	_, err := r.Select(Request{}, baseCandidates(), "does-not-exist")
	if err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestRegisterStrategy_Custom(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	r.RegisterStrategy("custom-fallback-chain", fallbackChainStrategy{})
	d, err := r.Select(Request{}, baseCandidates(), "custom-fallback-chain")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID == "" {
		t.Fatalf("expected a chosen candidate")
	}
}

// TestOnResult_AdaptiveLearnerWarmup asserts that feature-keyed history only
// governs scoring after AdaptiveMinSamples observations.
func TestOnResult_AdaptiveLearnerWarmup(t *testing.T) {
	r := New(WithCircuitView(fakeCircuits{}))
	features := RequestFeatures{LengthBucket: "short", ComplexityLevel: "low"}
	candidate := baseCandidates()[0]

	if got := r.learner.reliability(candidate.Key(), features, 20); got != 0.8 {
		t.Fatalf("expected default reliability 0.8 before warmup, got %v", got)
	}

	for i := 0; i < 25; i++ {
		r.OnResult(Decision{}, Outcome{Candidate: candidate, Features: features, Success: true, LatencyMS: 100, CostUSD: 0.01})
	}

	got := r.learner.reliability(candidate.Key(), features, 20)
	if got <= 0.8 {
		t.Fatalf("expected reliability to climb above default after warmup with all successes, got %v", got)
	}
}

// TestSelect_LoadBalanced asserts that load-balanced picks the candidate with
// the lowest current/max concurrency ratio, even over a higher-quality one.
func TestSelect_LoadBalanced(t *testing.T) {
	candidates := []Candidate{
		{ProviderID: "p_A", ModelID: "m1", Quality: 0.9, MaxConcurrency: 10, CurrentConcurrency: 9},
		{ProviderID: "p_B", ModelID: "m1", Quality: 0.8, MaxConcurrency: 10, CurrentConcurrency: 1},
	}
	r := New(WithCircuitView(fakeCircuits{}))
	d, err := r.Select(Request{}, candidates, "load-balanced")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Chosen.ProviderID != "p_B" {
		t.Fatalf("expected p_B (lowest concurrency ratio), got %s", d.Chosen.ProviderID)
	}
}
