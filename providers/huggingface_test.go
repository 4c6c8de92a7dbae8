package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHuggingFace(t *testing.T) {
	p, err := NewHuggingFace("test-key", "")
	if err != nil {
		t.Fatalf("NewHuggingFace() error: %v", err)
	}
	if p.Name() != "huggingface" {
		t.Errorf("Name() = %q, want huggingface", p.Name())
	}
}

func TestPromptFromMessages_JoinsRolesInOrder(t *testing.T) {
	got := promptFromMessages([]Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	})
	if !strings.Contains(got, "system: be terse") || !strings.Contains(got, "user: hi") {
		t.Errorf("got prompt %q, want both roles present in order", got)
	}
	if !strings.HasSuffix(got, "assistant:") {
		t.Errorf("got prompt %q, want it to end with an assistant cue", got)
	}
}

func TestHuggingFaceProvider_Complete_ParsesGeneratedText(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"generated_text":"hello there"}]`))
	}))
	defer srv.Close()

	p, _ := NewHuggingFace("test-key", srv.URL)
	resp, err := p.Complete(context.Background(), Request{
		Model:    "meta-llama/Meta-Llama-3-8B-Instruct",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Choices[0].Message.Content != "hello there" {
		t.Errorf("got content %q, want hello there", resp.Choices[0].Message.Content)
	}
	if gotPath != "/models/meta-llama/Meta-Llama-3-8B-Instruct" {
		t.Errorf("got path %q", gotPath)
	}
}

func TestHuggingFaceProvider_Complete_EmptyGenerationsIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p, _ := NewHuggingFace("test-key", srv.URL)
	_, err := p.Complete(context.Background(), Request{
		Model:    "meta-llama/Meta-Llama-3-8B-Instruct",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error for an empty generations array")
	}
}

func TestHuggingFaceProvider_Complete_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer srv.Close()

	p, _ := NewHuggingFace("test-key", srv.URL)
	_, err := p.Complete(context.Background(), Request{
		Model:    "meta-llama/Meta-Llama-3-8B-Instruct",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Errorf("got error %v, want it to surface the upstream message", err)
	}
}
