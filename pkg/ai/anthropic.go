package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

type AnthropicProvider struct {
	Model      string
	APIKey     string
	baseURL    string
	httpClient *http.Client
}

func NewAnthropicProvider(model string, apiKey string) *AnthropicProvider {
	return NewAnthropicProviderWithClient(model, apiKey, "", nil)
}

// NewAnthropicProviderWithClient creates a provider with custom HTTP client and base URL (for testing).
func NewAnthropicProviderWithClient(model, apiKey, baseURL string, client *http.Client) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if baseURL == "" {
		baseURL = anthropicURL
	}
	return &AnthropicProvider{
		Model:      model,
		APIKey:     apiKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

func (p *AnthropicProvider) ID() string {
	return "anthropic:" + p.Model
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not provided (set ANTHROPIC_API_KEY or run 'resolution secrets set anthropic')")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	system := req.System
	if req.JSON {
		system += "\nRespond with a single JSON object and nothing else."
	}
	payload := anthropicRequest{
		Model:  p.Model,
		System: system,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}
	var anthroResp anthropicResponse
	headers := map[string]string{"x-api-key": p.APIKey, "anthropic-version": "2023-06-01"}
	if err := postJSON(ctx, p.httpClient, "Anthropic", p.baseURL, headers, payload, &anthroResp); err != nil {
		return nil, err
	}

	if len(anthroResp.Content) == 0 {
		return nil, fmt.Errorf("Anthropic API returned no content")
	}

	return &ai.CompletionResponse{
		Text:  anthroResp.Content[0].Text,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  anthroResp.Usage.InputTokens,
			OutputTokens: anthroResp.Usage.OutputTokens,
		},
	}, nil
}
