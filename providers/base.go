package providers

import "github.com/ferro-labs/ai-gateway/models"

// Base provides common fields and methods shared by REST-based provider
// implementations. Embed this struct to avoid repeating name, apiKey, and
// baseURL handling across providers.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// BaseURL returns the provider base URL, satisfying the ProxiableProvider interface.
func (b *Base) BaseURL() string { return b.baseURL }

// EstimateCost projects the USD cost of req against catalog before the
// request is dispatched, used by cost-optimized routing to score candidates
// that haven't run yet. Token counts are estimated (roughly 4 characters per
// token for the prompt, req.MaxTokens or a 256-token default for the
// completion) since no Usage exists until the provider responds.
//
// catalog is authoritative when it has an entry for the model; otherwise
// this falls back to the static PricingTable in pricing.go, which covers
// models the live catalog hasn't been refreshed to include yet.
func (b *Base) EstimateCost(catalog models.Catalog, req Request) float64 {
	var promptChars int
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}
	promptTokens := promptChars / 4

	completionTokens := 256
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		completionTokens = *req.MaxTokens
	}

	usage := models.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}

	cost := models.Calculate(catalog, b.name+"/"+req.Model, usage)
	if cost.ModelFound {
		return cost.TotalUSD
	}
	return EstimateCost(b.name, req.Model, Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	})
}

// ModelsFromList builds a ModelInfo slice from a list of model IDs.
// Provider Models() implementations call this to avoid repetitive boilerplate.
func ModelsFromList(providerName string, ids []string) []ModelInfo {
	models := make([]ModelInfo, len(ids))
	for i, id := range ids {
		models[i] = ModelInfo{
			ID:      id,
			Object:  "model",
			OwnedBy: providerName,
		}
	}
	return models
}

// ProviderSource is a read-only view over a collection of registered providers.
// Both *Registry and *Gateway implement this interface, enabling registry
// consolidation: handlers that only need to read provider info can accept
// a ProviderSource instead of a concrete *Registry.
type ProviderSource interface {
	Get(name string) (Provider, bool)
	List() []string
	AllModels() []ModelInfo
	FindByModel(model string) (Provider, bool)
}
