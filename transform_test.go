package aigateway

import (
	"encoding/json"
	"testing"
)

func TestStandardizeInferenceRequest_RewritesLegacyKeys(t *testing.T) {
	raw := []byte(`{"input":"hello","max_tokens":128,"top_p":0.5,"model":"gpt-4o"}`)

	out, err := standardizeInferenceRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	for _, legacy := range []string{"input", "max_tokens", "top_p"} {
		if _, present := obj[legacy]; present {
			t.Errorf("legacy key %q should have been removed", legacy)
		}
	}
	for _, current := range []string{"prompt", "maxTokens", "topP"} {
		if _, present := obj[current]; !present {
			t.Errorf("current key %q missing from output", current)
		}
	}
	if _, present := obj["model"]; !present {
		t.Error("unrelated field model should be preserved")
	}
}

func TestStandardizeInferenceRequest_CurrentKeyWins(t *testing.T) {
	raw := []byte(`{"input":"legacy-value","prompt":"current-value"}`)

	out, err := standardizeInferenceRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	var prompt string
	if err := json.Unmarshal(obj["prompt"], &prompt); err != nil {
		t.Fatalf("prompt is not a string: %v", err)
	}
	if prompt != "current-value" {
		t.Errorf("got prompt %q, want current-value to win over legacy input", prompt)
	}
	if _, present := obj["input"]; present {
		t.Error("legacy key input should have been removed")
	}
}

func TestStandardizeInferenceRequest_NoLegacyKeysUnchanged(t *testing.T) {
	raw := []byte(`{"prompt":"hi","maxTokens":64}`)

	out, err := standardizeInferenceRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(obj) != 2 {
		t.Errorf("got %d fields, want 2 (no keys added or removed)", len(obj))
	}
}

func TestStandardizeInferenceResponse_AddsLegacyAliases(t *testing.T) {
	raw := []byte(`{"model":"gpt-4o","choices":[{"index":0}]}`)

	out, err := standardizeInferenceResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if _, present := obj["model"]; !present {
		t.Error("current field model should still be present")
	}
	if _, present := obj["choices"]; !present {
		t.Error("current field choices should still be present")
	}
	if _, present := obj["modelName"]; !present {
		t.Error("legacy alias modelName should have been added")
	}
	if _, present := obj["completions"]; !present {
		t.Error("legacy alias completions should have been added")
	}
}

func TestStandardizeInferenceResponse_MissingFieldsSkipped(t *testing.T) {
	raw := []byte(`{"id":"resp-1"}`)

	out, err := standardizeInferenceResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(obj) != 1 {
		t.Errorf("got %d fields, want 1 (no aliases added for absent fields)", len(obj))
	}
}
