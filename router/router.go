// Package router implements the model/provider selection engine described in
// the gateway's design: given a normalized request and a named strategy, it
// returns an ordered fallback list of candidates without dispatching
// anything itself. Dispatch, retry, and circuit-breaker enforcement remain
// the gateway pipeline's responsibility; this package only decides order.
package router

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNoCandidate is returned when every candidate is filtered out.
var ErrNoCandidate = errors.New("router: no candidate satisfies the request")

// CircuitView is the read-only view of circuit-breaker state the router
// needs to exclude or down-weight a candidate. The gateway supplies the
// concrete implementation (wrapping internal/circuitbreaker) so this
// package stays decoupled from that type.
type CircuitView interface {
	// IsOpen reports whether the circuit for providerID is currently open.
	IsOpen(providerID string) bool
	// RemainingRateFraction returns the fraction (0..1) of the provider's
	// rate budget still available this window.
	RemainingRateFraction(providerID string) float64
}

// Candidate is a single routable (provider, model) pair with the static and
// observed attributes the scoring strategies read from.
type Candidate struct {
	ProviderID string
	ModelID    string

	Quality        float64 // static declared quality in [0,1]
	CostPerRequest float64 // estimated cost for this request, USD
	P75LatencyMS   float64 // observed p75 latency
	ContextWindow  int

	Capabilities map[string]bool // "vision", "function_calling", "streaming", "embeddings", "rerank"

	MaxConcurrency     int
	CurrentConcurrency int

	RateBudget float64 // requests per window declared by the provider
}

// Key returns the stable "(provider, model)" identity used for tie-breaks
// and adaptive-learner bookkeeping.
func (c Candidate) Key() string { return c.ProviderID + "/" + c.ModelID }

// Request is the subset of the normalized inference request the router
// needs to select and score candidates. It intentionally does not carry
// the full message history.
type Request struct {
	RequiredCapabilities []string
	MinQuality           float64
	MaxCostPerRequest    float64 // 0 means unconstrained
	DeadlineMS           float64 // 0 means unconstrained
	ContextTokens        int     // prompt + expected completion
	Urgent               bool
	BudgetConscious       bool

	// Feature bucket used to key the adaptive learner; coarse by design.
	Features RequestFeatures
}

// RequestFeatures is the coarse bucketing used for adaptive per-feature EMAs.
type RequestFeatures struct {
	LengthBucket    string // "short" | "medium" | "long"
	ComplexityLevel string // "low" | "medium" | "high"
	DomainTag       string // free-form, e.g. "support", "code-review"
	HasCode         bool
	HasMath         bool
}

// key returns a stable string key for the feature bucket.
func (f RequestFeatures) key() string {
	return fmt.Sprintf("%s|%s|%s|%v|%v", f.LengthBucket, f.ComplexityLevel, f.DomainTag, f.HasCode, f.HasMath)
}

// ScoreBreakdown carries the per-factor scores that produced a candidate's
// final ranking, for observability and the emitted Decision record.
type ScoreBreakdown struct {
	Quality      float64
	CostScore    float64
	SpeedScore   float64
	Availability float64
	Reliability  float64
	Final        float64
}

// Decision is the router's output for a single Select call.
type Decision struct {
	RequestID    string
	Strategy     string
	Chosen       Candidate
	FallbackList []Candidate
	Scores       map[string]ScoreBreakdown // keyed by Candidate.Key()
	Timestamp    time.Time
}

// Outcome feeds a completed dispatch back into the adaptive learner.
type Outcome struct {
	Candidate Candidate
	Features  RequestFeatures
	Success   bool
	LatencyMS float64
	CostUSD   float64
}

// Strategy orders (and may filter) a candidate slice for a given request.
// Implementations must not mutate the input slice in place in a way that
// would be visible to the caller's backing array; return a new slice.
type Strategy interface {
	// Order returns candidates sorted best-first. scored is the full scoring
	// context (already computed, after hard filters and circuit exclusion);
	// a strategy may further filter by its own configured threshold.
	Order(req Request, scored []scoredCandidate) []scoredCandidate
}

type scoredCandidate struct {
	Candidate
	ScoreBreakdown
}

// ScoringConfig holds the ceilings and weights used to normalize raw
// observed values into the [0,1] component scores.
type ScoringConfig struct {
	CostCeilingUSD     float64
	LatencyCeilingMS   float64
	BalancedWeights    Weights
	ReliabilityWindow  int // default 500; not read by the adaptive learner, whose success-rate EMA uses a fixed alpha of 0.1
	AdaptiveMinSamples int // observations required before feature history governs, default 20
}

// Weights are the balanced-strategy factor weights; they should sum to 1.0
// but are not required to (the scorer does not renormalize).
type Weights struct {
	Quality      float64
	Cost         float64
	Speed        float64
	Availability float64
	Reliability  float64
}

// DefaultWeights matches the spec's default balanced-strategy weighting.
func DefaultWeights() Weights {
	return Weights{Quality: 0.3, Cost: 0.2, Speed: 0.2, Availability: 0.15, Reliability: 0.15}
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CostCeilingUSD:     1.0,
		LatencyCeilingMS:   10_000,
		BalancedWeights:    DefaultWeights(),
		ReliabilityWindow:  500,
		AdaptiveMinSamples: 20,
	}
}

// Router is the model/provider selection engine. It is safe for concurrent
// use; strategy registration and adaptive-learner updates are lock-guarded.
type Router struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	circuits   CircuitView
	scoring    ScoringConfig
	learner    *adaptiveLearner
	nextID     func() string
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithCircuitView supplies the circuit-breaker read view.
func WithCircuitView(cv CircuitView) Option {
	return func(r *Router) { r.circuits = cv }
}

// WithScoringConfig overrides the default scoring ceilings/weights.
func WithScoringConfig(cfg ScoringConfig) Option {
	return func(r *Router) { r.scoring = cfg }
}

// WithRequestIDFunc overrides how Decision.RequestID values are generated;
// primarily used by tests that need deterministic IDs.
func WithRequestIDFunc(fn func() string) Option {
	return func(r *Router) { r.nextID = fn }
}

// New builds a Router with the six built-in strategies pre-registered.
func New(opts ...Option) *Router {
	r := &Router{
		strategies: make(map[string]Strategy),
		scoring:    DefaultScoringConfig(),
		learner:    newAdaptiveLearner(),
		nextID:     defaultRequestID,
	}
	for _, o := range opts {
		o(r)
	}
	if r.circuits == nil {
		r.circuits = noopCircuitView{}
	}
	registerBuiltinStrategies(r)
	return r
}

// RegisterStrategy installs a custom strategy under name, overwriting any
// existing registration (including a built-in) of the same name.
func (r *Router) RegisterStrategy(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Select runs the named strategy against candidates and returns the ordered
// Decision. Selection never dispatches and never retries; it is pure given
// the router's current state.
func (r *Router) Select(req Request, candidates []Candidate, strategyName string) (Decision, error) {
	r.mu.RLock()
	strat, ok := r.strategies[strategyName]
	circuits := r.circuits
	scoring := r.scoring
	r.mu.RUnlock()
	if !ok {
		return Decision{}, fmt.Errorf("router: unknown strategy %q", strategyName)
	}

	filtered := hardFilter(req, candidates, circuits)
	if len(filtered) == 0 {
		return Decision{}, ErrNoCandidate
	}

	scored := make([]scoredCandidate, 0, len(filtered))
	for _, c := range filtered {
		sb := r.score(req, c, circuits, scoring)
		scored = append(scored, scoredCandidate{Candidate: c, ScoreBreakdown: sb})
	}

	ordered := strat.Order(req, scored)
	if len(ordered) == 0 {
		return Decision{}, ErrNoCandidate
	}

	// Deterministic tie-break: the strategy's own Order already decided the
	// ranking, so this must never re-rank by Final — it only has to make
	// exact ties (same Final) land in a reproducible order regardless of
	// map/slice iteration order upstream. Returning false for every
	// differing-Final pair keeps sort.SliceStable's output identical to
	// strat.Order's, since neither i<j nor j<i holds for them.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Final != ordered[j].Final {
			return false
		}
		return ordered[i].ProviderID < ordered[j].ProviderID
	})

	scores := make(map[string]ScoreBreakdown, len(ordered))
	fallback := make([]Candidate, len(ordered))
	for i, sc := range ordered {
		fallback[i] = sc.Candidate
		scores[sc.Key()] = sc.ScoreBreakdown
	}

	return Decision{
		RequestID:    r.nextID(),
		Strategy:     strategyName,
		Chosen:       fallback[0],
		FallbackList: fallback,
		Scores:       scores,
		Timestamp:    time.Now(),
	}, nil
}

// OnResult feeds a dispatch outcome back into the adaptive learner.
func (r *Router) OnResult(d Decision, outcome Outcome) {
	r.learner.update(outcome)
}

func defaultRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

type noopCircuitView struct{}

func (noopCircuitView) IsOpen(string) bool                { return false }
func (noopCircuitView) RemainingRateFraction(string) float64 { return 1 }
