package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HuggingFaceProvider implements the Provider interface for models served
// behind the Hugging Face Text Generation Inference (TGI) wire shape: a
// single prompt string in, a generated-text array out, no native chat
// message format and no streaming support in this adapter.
type HuggingFaceProvider struct {
	Base
	httpClient *http.Client
}

// NewHuggingFace creates a new Hugging Face Inference Endpoints provider.
// baseURL should point at a specific endpoint or at the public Inference API
// root; the model path is appended per request.
func NewHuggingFace(apiKey, baseURL string) (*HuggingFaceProvider, error) {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &HuggingFaceProvider{
		Base:       Base{name: "huggingface", apiKey: apiKey, baseURL: baseURL},
		httpClient: &http.Client{},
	}, nil
}

// AuthHeaders implements ProxiableProvider.
func (p *HuggingFaceProvider) AuthHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// SupportedModels returns a sample of commonly deployed TGI models.
func (p *HuggingFaceProvider) SupportedModels() []string {
	return []string{
		"meta-llama/Meta-Llama-3-8B-Instruct",
		"mistralai/Mistral-7B-Instruct-v0.3",
		"HuggingFaceH4/zephyr-7b-beta",
	}
}

// SupportsModel returns true for any model — the repo id is validated upstream.
func (p *HuggingFaceProvider) SupportsModel(_ string) bool {
	return true
}

// Models returns structured model metadata.
func (p *HuggingFaceProvider) Models() []ModelInfo {
	return ModelsFromList(p.name, p.SupportedModels())
}

// tgiParameters mirrors the subset of TGI's generation parameters the
// gateway's Request maps onto.
type tgiParameters struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxNewTokens   *int     `json:"max_new_tokens,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type tgiRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters tgiParameters `json:"parameters"`
}

type tgiGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type tgiError struct {
	Error string `json:"error"`
}

// promptFromMessages collapses a chat-shaped Messages array into the single
// prompt string TGI's /models/{id} endpoint expects, since TGI has no
// concept of per-turn roles.
func promptFromMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	b.WriteString("\nassistant:")
	return b.String()
}

// Complete sends a text-generation request to a Hugging Face TGI endpoint.
func (p *HuggingFaceProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	maxNewTokens := req.MaxTokens
	if maxNewTokens == nil {
		defaultMax := 256
		maxNewTokens = &defaultMax
	}

	tgiReq := tgiRequest{
		Inputs: promptFromMessages(req.Messages),
		Parameters: tgiParameters{
			Temperature:    req.Temperature,
			MaxNewTokens:   maxNewTokens,
			ReturnFullText: false,
		},
	}

	body, err := json.Marshal(tgiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models/"+req.Model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp tgiError
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, NewHTTPError(p.name, httpResp.StatusCode, errResp.Error)
		}
		return nil, NewHTTPError(p.name, httpResp.StatusCode, string(respBody))
	}

	var generations []tgiGeneration
	if err := json.Unmarshal(respBody, &generations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(generations) == 0 {
		return nil, fmt.Errorf("huggingface API returned no generations")
	}

	return &Response{
		Model:    req.Model,
		Provider: p.name,
		Choices: []Choice{
			{
				Index:        0,
				Message:      Message{Role: "assistant", Content: generations[0].GeneratedText},
				FinishReason: "stop",
			},
		},
	}, nil
}
