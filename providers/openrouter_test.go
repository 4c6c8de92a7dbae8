package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenRouter(t *testing.T) {
	p, err := NewOpenRouter("test-key", "")
	if err != nil {
		t.Fatalf("NewOpenRouter() error: %v", err)
	}
	if p.Name() != "openrouter" {
		t.Errorf("Name() = %q, want openrouter", p.Name())
	}
}

func TestOpenRouterProvider_SupportsModel(t *testing.T) {
	p, _ := NewOpenRouter("test-key", "")
	if !p.SupportsModel("anything/goes") {
		t.Error("passthrough: expected any model to be supported")
	}
}

func TestOpenRouterProvider_Models(t *testing.T) {
	p, _ := NewOpenRouter("test-key", "")
	for _, m := range p.Models() {
		if m.OwnedBy != "openrouter" {
			t.Errorf("ModelInfo.OwnedBy = %q, want openrouter", m.OwnedBy)
		}
	}
}

func TestOpenRouterProvider_Complete_SetsAttributionHeaders(t *testing.T) {
	var gotReferer, gotTitle, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"or-1","model":"anthropic/claude-3.5-sonnet","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenRouter("test-key", srv.URL)
	resp, err := p.Complete(context.Background(), Request{
		Model:    "anthropic/claude-3.5-sonnet",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.ID != "or-1" {
		t.Errorf("got ID %q, want or-1", resp.ID)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("got Authorization %q", gotAuth)
	}
	if gotReferer == "" || gotTitle == "" {
		t.Error("expected HTTP-Referer and X-Title attribution headers to be set")
	}
}

func TestOpenRouterProvider_Complete_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","code":429}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenRouter("test-key", srv.URL)
	_, err := p.Complete(context.Background(), Request{
		Model:    "anthropic/claude-3.5-sonnet",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestOpenRouterProvider_CompleteStream_MockSSE(t *testing.T) {
	sseData := "data: {\"id\":\"or-1\",\"model\":\"anthropic/claude-3.5-sonnet\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
		"data: [DONE]\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sseData))
	}))
	defer srv.Close()

	p, _ := NewOpenRouter("test-key", srv.URL)
	ch, err := p.CompleteStream(context.Background(), Request{
		Model:    "anthropic/claude-3.5-sonnet",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("CompleteStream() error: %v", err)
	}

	var chunks []StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Choices[0].Delta.Content != "Hi" {
		t.Errorf("delta content = %q, want Hi", chunks[0].Choices[0].Delta.Content)
	}
}
