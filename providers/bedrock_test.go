package providers

import "testing"

// NewBedrock loads AWS SDK config (and may reach for IMDS credentials), so
// these tests build BedrockProvider directly instead of going through the
// constructor.

func TestBedrockProvider_SupportedModels(t *testing.T) {
	p := &BedrockProvider{Base: Base{name: "bedrock"}, region: "us-east-1"}
	models := p.SupportedModels()
	if len(models) == 0 {
		t.Fatal("SupportedModels() returned empty")
	}
	found := false
	for _, m := range models {
		if m == "anthropic.claude-3-5-sonnet-20241022-v2:0" {
			found = true
		}
	}
	if !found {
		t.Error("expected the Claude 3.5 Sonnet Bedrock model id to be listed")
	}
}

func TestBedrockProvider_SupportsModel_AlwaysTrue(t *testing.T) {
	p := &BedrockProvider{Base: Base{name: "bedrock"}, region: "us-east-1"}
	if !p.SupportsModel("anything-aws-will-validate-itself") {
		t.Error("expected Bedrock to defer model validation to AWS")
	}
}

func TestBedrockProvider_Models_OwnedByBedrock(t *testing.T) {
	p := &BedrockProvider{Base: Base{name: "bedrock"}, region: "us-east-1"}
	for _, m := range p.Models() {
		if m.OwnedBy != "bedrock" {
			t.Errorf("ModelInfo.OwnedBy = %q, want bedrock", m.OwnedBy)
		}
	}
}

func TestBedrockProvider_BaseURL_IncludesRegion(t *testing.T) {
	p := &BedrockProvider{Base: Base{name: "bedrock"}, region: "eu-west-1"}
	got := p.BaseURL()
	want := "https://bedrock-runtime.eu-west-1.amazonaws.com"
	if got != want {
		t.Errorf("BaseURL() = %q, want %q", got, want)
	}
}

func TestBedrockProvider_AuthHeaders_Empty(t *testing.T) {
	p := &BedrockProvider{Base: Base{name: "bedrock"}, region: "us-east-1"}
	if len(p.AuthHeaders()) != 0 {
		t.Error("expected no static auth headers; Bedrock signs requests via SigV4")
	}
}
