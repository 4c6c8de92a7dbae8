package aigateway

import (
	"context"
	"errors"
	"time"

	"github.com/ferro-labs/ai-gateway/auth"
	"github.com/ferro-labs/ai-gateway/internal/cache"
	"github.com/ferro-labs/ai-gateway/internal/circuitbreaker"
	"github.com/ferro-labs/ai-gateway/internal/logging"
	"github.com/ferro-labs/ai-gateway/internal/metrics"
	"github.com/ferro-labs/ai-gateway/models"
	"github.com/ferro-labs/ai-gateway/plugin"
	"github.com/ferro-labs/ai-gateway/providers"
)

// PipelineStage identifies one step of the gateway's request pipeline.
type PipelineStage string

const (
	StageValidate     PipelineStage = "validate"
	StageAuthenticate PipelineStage = "authenticate"
	StageRateCheck    PipelineStage = "rate_check"
	StageCacheLookup  PipelineStage = "cache_lookup"
	StageRouteSelect  PipelineStage = "route_select"
	StageDispatch     PipelineStage = "dispatch"
	StageTransform    PipelineStage = "transform"
	StageCacheStore   PipelineStage = "cache_store"
	StageRespond      PipelineStage = "respond"
)

// PipelineResult carries the outcome of one pipeline run for callers that
// want more than the response itself, e.g. metrics or audit middleware
// deciding whether a request was served from cache or how far it got before
// failing.
type PipelineResult struct {
	Stage    PipelineStage
	CacheHit bool
	Response *providers.Response
}

// pipelineState is threaded through every stage of one Route call. Stages
// mutate it in place; a stage that has already produced a response (a cache
// hit) sets done so later stages skip their own work instead of redoing it.
type pipelineState struct {
	req         providers.Request
	pctx        *plugin.Context
	strategy    pipelineStrategy
	respCache   cache.Cache
	fingerprint string
	resp        *providers.Response
	cacheHit    bool
	done        bool
	start       time.Time
}

// pipelineStrategy is the subset of strategies.Strategy the dispatch stage
// needs; declared locally so pipeline.go doesn't have to import the full
// strategies.Strategy surface just to call Execute.
type pipelineStrategy interface {
	Execute(ctx context.Context, req providers.Request) (*providers.Response, error)
}

// pipelineStep binds one PipelineStage to the function that executes it.
// Report controls whether a failing step goes through the full
// failure-reporting path (RunOnError, provider-error metrics, a "request
// failed" log line, and a SubjectRequestFailed event) or returns its error
// straight to the caller, the way a rejected-by-plugin or misconfigured-
// strategy request did before the pipeline was compiled: only a failed
// dispatch ever reached a live provider, so only dispatch failures are
// reported as provider errors.
type pipelineStep struct {
	Stage  PipelineStage
	Run    func(ctx context.Context, g *Gateway, st *pipelineState) error
	Report bool
}

// compilePipeline builds the fixed, ordered stage graph a Gateway walks for
// every Route call. It is built once in New and never reordered afterward;
// stages consult the gateway's live state (registered plugins, the
// configured cache) rather than the graph being rebuilt when that state
// changes.
func (g *Gateway) compilePipeline() []pipelineStep {
	return []pipelineStep{
		{Stage: StageValidate, Run: stageValidate},
		{Stage: StageAuthenticate, Run: stageAuthenticate},
		{Stage: StageRateCheck, Run: stageRateCheck},
		{Stage: StageCacheLookup, Run: stageCacheLookup},
		{Stage: StageRouteSelect, Run: stageRouteSelect},
		{Stage: StageDispatch, Run: stageDispatch, Report: true},
		{Stage: StageTransform, Run: stageTransform},
		{Stage: StageCacheStore, Run: stageCacheStore},
		{Stage: StageRespond, Run: stageRespond},
	}
}

// runPipeline walks g.pipeline in order, stopping at the first stage that
// returns an error. reached names the last stage the walk touched, so a
// caller inspecting the error can tell a rejected-at-authenticate request
// apart from a failed-at-dispatch one.
func (g *Gateway) runPipeline(ctx context.Context, req providers.Request) (PipelineResult, error) {
	st := &pipelineState{req: req, start: time.Now()}

	g.mu.RLock()
	pipeline := g.pipeline
	g.mu.RUnlock()

	var reached PipelineStage
	for _, step := range pipeline {
		reached = step.Stage
		if err := step.Run(ctx, g, st); err != nil {
			if step.Report {
				g.reportPipelineFailure(ctx, st, err)
			}
			return PipelineResult{Stage: reached}, err
		}
	}

	return PipelineResult{Stage: reached, CacheHit: st.cacheHit, Response: st.resp}, nil
}

// stageValidate resolves the request's model alias before anything downstream
// sees it.
func stageValidate(ctx context.Context, g *Gateway, st *pipelineState) error {
	st.req = g.resolveAlias(st.req)
	return nil
}

// stageAuthenticate runs the registered before_request plugin chain. Auth,
// guardrail, rate-limit and response-cache plugins all register into this
// one bucket (plugin.StageBeforeRequest), so they execute here as a single
// ordered sequence rather than as separate compiled stages; a plugin setting
// pctx.Reject surfaces as this stage's error.
func stageAuthenticate(ctx context.Context, g *Gateway, st *pipelineState) error {
	st.pctx = plugin.NewContext(&st.req)
	if !g.plugins.HasPlugins() {
		return nil
	}
	if err := g.plugins.RunBefore(ctx, st.pctx); err != nil {
		metrics.RequestsTotal.WithLabelValues("", st.req.Model, "rejected").Inc()
		return err
	}
	return nil
}

// stageRateCheck is the fixed checkpoint between plugin admission and cache
// lookup. Per-subject rate limiting itself runs inside the before_request
// plugin chain (internal/plugins/ratelimit) or as HTTP middleware ahead of
// Route entirely (cmd/ferrogw/ratelimitmw.go); this stage's own job is to
// bail out before spending cache or dispatch work on a caller whose context
// is already done.
func stageRateCheck(ctx context.Context, g *Gateway, st *pipelineState) error {
	return ctx.Err()
}

// stageCacheLookup checks, in order, whether a before_request plugin already
// supplied a response (pctx.Skip) and then the gateway-level response cache.
// Either hit sets done so the remaining stages skip their own work.
func stageCacheLookup(ctx context.Context, g *Gateway, st *pipelineState) error {
	if st.pctx.Skip && st.pctx.Response != nil {
		st.resp = st.pctx.Response
		st.cacheHit = true
		st.done = true
		return nil
	}

	g.mu.RLock()
	st.respCache = g.respCache
	g.mu.RUnlock()
	if st.respCache == nil {
		return nil
	}

	subjectID := ""
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		subjectID = principal.UserID
	}
	st.fingerprint = requestFingerprint(chatCompletionsRoute, "POST", subjectID, st.req)
	if cached, hit := st.respCache.Get(st.fingerprint); hit {
		st.resp = cached
		st.cacheHit = true
		st.done = true
	}
	return nil
}

// stageRouteSelect builds the configured strategy. A misconfigured strategy
// (no targets, no conditions) fails here, before anything is dispatched.
func stageRouteSelect(ctx context.Context, g *Gateway, st *pipelineState) error {
	if st.done {
		return nil
	}
	s, err := g.getStrategy()
	if err != nil {
		return err
	}
	st.strategy = s
	return nil
}

// stageDispatch executes the selected strategy (provider selection plus the
// live call, including retries and fallback). This is the only stage whose
// failure is reported as a provider error.
func stageDispatch(ctx context.Context, g *Gateway, st *pipelineState) error {
	if st.done {
		return nil
	}
	resp, err := st.strategy.Execute(ctx, st.req)
	if err != nil {
		return err
	}
	st.resp = resp
	return nil
}

// stageTransform normalizes the OpenAI-compatible envelope fields and runs
// the after_request plugin chain (logging, response-cache population).
func stageTransform(ctx context.Context, g *Gateway, st *pipelineState) error {
	if st.done {
		return nil
	}
	if st.resp.Object == "" {
		st.resp.Object = "chat.completion"
	}
	if st.resp.Created == 0 {
		st.resp.Created = time.Now().Unix()
	}
	if g.plugins.HasPlugins() {
		st.pctx.Response = st.resp
		_ = g.plugins.RunAfter(ctx, st.pctx)
	}
	return nil
}

// stageCacheStore populates the gateway-level response cache on a fresh
// dispatch; a cache hit never reaches here with work to do.
func stageCacheStore(ctx context.Context, g *Gateway, st *pipelineState) error {
	if st.done {
		return nil
	}
	if st.respCache != nil && st.fingerprint != "" {
		st.respCache.Set(st.fingerprint, st.resp)
	}
	return nil
}

// stageRespond emits the metrics, log line and completed-request event for
// both a cache hit and a freshly dispatched response.
func stageRespond(ctx context.Context, g *Gateway, st *pipelineState) error {
	log := logging.FromContext(ctx)
	latency := time.Since(st.start)

	if st.cacheHit {
		log.Info("cache hit", "model", st.resp.Model, "latency_ms", latency.Milliseconds())
		metrics.RequestsTotal.WithLabelValues(st.resp.Provider, st.resp.Model, "cache_hit").Inc()
		g.publishEvent(ctx, SubjectRequestCompleted, map[string]interface{}{
			"trace_id":   logging.TraceIDFromContext(ctx),
			"provider":   st.resp.Provider,
			"model":      st.resp.Model,
			"status":     200,
			"latency_ms": latency.Milliseconds(),
			"cache_hit":  true,
			"timestamp":  time.Now(),
		})
		return nil
	}

	metrics.RequestDuration.WithLabelValues(st.resp.Provider, st.resp.Model).Observe(latency.Seconds())
	metrics.RequestsTotal.WithLabelValues(st.resp.Provider, st.resp.Model, "success").Inc()
	metrics.TokensInput.WithLabelValues(st.resp.Provider, st.resp.Model).Add(float64(st.resp.Usage.PromptTokens))
	metrics.TokensOutput.WithLabelValues(st.resp.Provider, st.resp.Model).Add(float64(st.resp.Usage.CompletionTokens))

	g.mu.RLock()
	catalog := g.catalog
	g.mu.RUnlock()
	cost := models.Calculate(catalog, st.resp.Provider+"/"+st.resp.Model, models.Usage{
		PromptTokens:     st.resp.Usage.PromptTokens,
		CompletionTokens: st.resp.Usage.CompletionTokens,
		ReasoningTokens:  st.resp.Usage.ReasoningTokens,
		CacheReadTokens:  st.resp.Usage.CacheReadTokens,
		CacheWriteTokens: st.resp.Usage.CacheWriteTokens,
	})
	if cost.TotalUSD > 0 {
		metrics.RequestCostUSD.WithLabelValues(st.resp.Provider, st.resp.Model).Add(cost.TotalUSD)
	}

	log.Info("request completed",
		"model", st.resp.Model,
		"provider", st.resp.Provider,
		"latency_ms", latency.Milliseconds(),
		"tokens_in", st.resp.Usage.PromptTokens,
		"tokens_out", st.resp.Usage.CompletionTokens,
		"cost_usd", cost.TotalUSD,
	)

	g.publishEvent(ctx, SubjectRequestCompleted, map[string]interface{}{
		"trace_id":             st.resp.ID,
		"provider":             st.resp.Provider,
		"model":                st.resp.Model,
		"status":               200,
		"latency_ms":           latency.Milliseconds(),
		"tokens_in":            st.resp.Usage.PromptTokens,
		"tokens_out":           st.resp.Usage.CompletionTokens,
		"cost_usd":             cost.TotalUSD,
		"cost_input_usd":       cost.InputUSD,
		"cost_output_usd":      cost.OutputUSD,
		"cost_cache_read_usd":  cost.CacheReadUSD,
		"cost_cache_write_usd": cost.CacheWriteUSD,
		"cost_reasoning_usd":   cost.ReasoningUSD,
		"cost_image_usd":       cost.ImageUSD,
		"cost_audio_usd":       cost.AudioUSD,
		"cost_embedding_usd":   cost.EmbeddingUSD,
		"cost_model_found":     cost.ModelFound,
		"timestamp":            time.Now(),
	})
	return nil
}

// reportPipelineFailure runs the on_error plugin chain and emits the
// provider-error metrics, log line and SubjectRequestFailed event for a
// dispatch-stage failure.
func (g *Gateway) reportPipelineFailure(ctx context.Context, st *pipelineState, err error) {
	log := logging.FromContext(ctx)
	latency := time.Since(st.start)

	if st.pctx != nil {
		st.pctx.Error = err
		g.plugins.RunOnError(ctx, st.pctx)
	}

	provider := ""
	errType := "provider_error"
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		errType = "circuit_open"
	}
	metrics.RequestsTotal.WithLabelValues(provider, st.req.Model, "error").Inc()
	metrics.ProviderErrors.WithLabelValues(provider, errType).Inc()

	log.Error("request failed",
		"model", st.req.Model,
		"latency_ms", latency.Milliseconds(),
		"error", err.Error(),
	)

	g.publishEvent(ctx, SubjectRequestFailed, map[string]interface{}{
		"trace_id":   logging.TraceIDFromContext(ctx),
		"model":      st.req.Model,
		"error":      err.Error(),
		"status":     500,
		"latency_ms": latency.Milliseconds(),
		"timestamp":  time.Now(),
	})
}
