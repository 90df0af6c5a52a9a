package ai

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

const ollamaURL = "http://localhost:11434"

type OllamaProvider struct {
	Model      string
	baseURL    string
	httpClient *http.Client
}

func NewOllamaProvider(model string) *OllamaProvider {
	return NewOllamaProviderWithClient(model, "", nil)
}

// NewOllamaProviderWithClient points the provider at another server.
func NewOllamaProviderWithClient(model, baseURL string, client *http.Client) *OllamaProvider {
	if model == "" {
		model = "llama3"
	}
	if baseURL == "" {
		baseURL = ollamaURL
	}
	return &OllamaProvider{Model: model, baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (p *OllamaProvider) ID() string {
	return "ollama:" + p.Model
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

var safeModelName = regexp.MustCompile(`^[a-zA-Z0-9:._-]+$`)

func (p *OllamaProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if !safeModelName.MatchString(p.Model) {
		return nil, fmt.Errorf("invalid model name: %s", p.Model)
	}
	if req.Temperature < 0 {
		return nil, fmt.Errorf("invalid temperature")
	}

	payload := ollamaRequest{
		Model:  p.Model,
		Prompt: req.Prompt,
		System: req.System,
	}
	if req.JSON {
		payload.Format = "json"
	}
	if req.Temperature > 0 {
		payload.Options = map[string]any{"temperature": req.Temperature}
	}
	var oResp ollamaResponse
	if err := postJSON(ctx, p.httpClient, "Ollama", p.baseURL+"/api/generate", nil, payload, &oResp); err != nil {
		return nil, err
	}

	return &ai.CompletionResponse{
		Text:  strings.TrimSpace(oResp.Response),
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  oResp.PromptEvalCount,
			OutputTokens: oResp.EvalCount,
		},
	}, nil
}
