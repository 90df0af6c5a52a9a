package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

const openAIURL = "https://api.openai.com/v1/chat/completions"

type OpenAIProvider struct {
	Model      string
	APIKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIProvider(model string, apiKey string) *OpenAIProvider {
	return NewOpenAIProviderWithClient(model, apiKey, "", nil)
}

// NewOpenAIProviderWithClient creates a provider with custom HTTP client and base URL (for testing).
func NewOpenAIProviderWithClient(model, apiKey, baseURL string, client *http.Client) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = openAIURL
	}
	return &OpenAIProvider{
		Model:      model,
		APIKey:     apiKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

func (p *OpenAIProvider) ID() string {
	return "openai:" + p.Model
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided (set OPENAI_API_KEY or run 'resolution secrets set openai')")
	}

	messages := []openAIMessage{}
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	payload := openAIRequest{
		Model:     p.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}
	if req.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	var openAIResp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + p.APIKey}
	if err := postJSON(ctx, p.httpClient, "OpenAI", p.baseURL, headers, payload, &openAIResp); err != nil {
		return nil, err
	}
	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}

	return &ai.CompletionResponse{
		Text:  openAIResp.Choices[0].Message.Content,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  openAIResp.Usage.PromptTokens,
			OutputTokens: openAIResp.Usage.CompletionTokens,
		},
	}, nil
}
