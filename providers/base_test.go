package providers

import (
	"testing"

	"github.com/ferro-labs/ai-gateway/models"
)

func testCatalog() models.Catalog {
	return models.Catalog{
		"openai/gpt-4o": {
			Provider: "openai",
			ModelID:  "gpt-4o",
			Mode:     models.ModeChat,
			Pricing: models.Pricing{
				InputPerMTokens:  floatPtr(5.0),
				OutputPerMTokens: floatPtr(15.0),
			},
		},
	}
}

func TestBase_EstimateCost_KnownModel(t *testing.T) {
	b := &Base{name: "openai"}
	req := Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "sixteen char str"}},
	}

	got := b.EstimateCost(testCatalog(), req)
	if got <= 0 {
		t.Errorf("got cost %v, want > 0 for a known priced model", got)
	}
}

func TestBase_EstimateCost_UnknownModelReturnsZero(t *testing.T) {
	b := &Base{name: "openai"}
	req := Request{
		Model:    "not-a-real-model",
		Messages: []Message{{Role: "user", Content: "hello"}},
	}

	got := b.EstimateCost(testCatalog(), req)
	if got != 0 {
		t.Errorf("got cost %v, want 0 for an unpriced model", got)
	}
}

func TestBase_EstimateCost_ExplicitMaxTokensScalesOutputCost(t *testing.T) {
	b := &Base{name: "openai"}
	req := Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}

	small := b.EstimateCost(testCatalog(), req)

	maxTokens := 10000
	req.MaxTokens = &maxTokens
	large := b.EstimateCost(testCatalog(), req)

	if large <= small {
		t.Errorf("got large=%v small=%v, want large cost to grow with max_tokens", large, small)
	}
}
