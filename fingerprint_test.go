package aigateway

import (
	"testing"

	"github.com/ferro-labs/ai-gateway/providers"
)

func baseFingerprintRequest() providers.Request {
	return providers.Request{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	}
}

func TestRequestFingerprint_SameInputsSameFingerprint(t *testing.T) {
	req := baseFingerprintRequest()
	a := requestFingerprint("/v1/chat/completions", "POST", "user-1", req)
	b := requestFingerprint("/v1/chat/completions", "POST", "user-1", req)
	if a != b {
		t.Errorf("fingerprints differ for identical input: %q vs %q", a, b)
	}
}

func TestRequestFingerprint_DifferentSubjectsDiffer(t *testing.T) {
	req := baseFingerprintRequest()
	a := requestFingerprint("/v1/chat/completions", "POST", "user-1", req)
	b := requestFingerprint("/v1/chat/completions", "POST", "user-2", req)
	if a == b {
		t.Error("fingerprints must differ across subjects")
	}
}

func TestRequestFingerprint_DifferentRoutesDiffer(t *testing.T) {
	req := baseFingerprintRequest()
	a := requestFingerprint("/v1/chat/completions", "POST", "user-1", req)
	b := requestFingerprint("/v1/embeddings", "POST", "user-1", req)
	if a == b {
		t.Error("fingerprints must differ across routes")
	}
}

func TestRequestFingerprint_MessageOrderMatters(t *testing.T) {
	req1 := baseFingerprintRequest()
	req1.Messages = []providers.Message{
		{Role: "user", Content: "a"},
		{Role: "user", Content: "b"},
	}
	req2 := req1
	req2.Messages = []providers.Message{
		{Role: "user", Content: "b"},
		{Role: "user", Content: "a"},
	}

	a := requestFingerprint("/v1/chat/completions", "POST", "user-1", req1)
	b := requestFingerprint("/v1/chat/completions", "POST", "user-1", req2)
	if a == b {
		t.Error("reordering messages must change the fingerprint")
	}
}

func TestRequestFingerprint_ToolSetOrderIndependent(t *testing.T) {
	req1 := baseFingerprintRequest()
	req1.Tools = []providers.Tool{{Type: "function"}, {Type: "retrieval"}}
	req2 := baseFingerprintRequest()
	req2.Tools = []providers.Tool{{Type: "retrieval"}, {Type: "function"}}

	a := requestFingerprint("/v1/chat/completions", "POST", "user-1", req1)
	b := requestFingerprint("/v1/chat/completions", "POST", "user-1", req2)
	if a != b {
		t.Error("tool set fingerprint should not depend on declaration order")
	}
}

func TestRequestFingerprint_SamplingParamsAffectFingerprint(t *testing.T) {
	req1 := baseFingerprintRequest()
	temp1 := 0.2
	req1.Temperature = &temp1

	req2 := baseFingerprintRequest()
	temp2 := 0.9
	req2.Temperature = &temp2

	a := requestFingerprint("/v1/chat/completions", "POST", "user-1", req1)
	b := requestFingerprint("/v1/chat/completions", "POST", "user-1", req2)
	if a == b {
		t.Error("different temperature values must produce different fingerprints")
	}
}
