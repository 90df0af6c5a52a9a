package ai

import (
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewProvider builds the named backend. An empty name selects ollama.
func NewProvider(cfg ProviderConfig) (ai.Provider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaProviderWithClient(cfg.Model, cfg.BaseURL, nil), nil
	case "openai":
		return NewOpenAIProviderWithClient(cfg.Model, cfg.APIKey, cfg.BaseURL, nil), nil
	case "anthropic":
		return NewAnthropicProviderWithClient(cfg.Model, cfg.APIKey, cfg.BaseURL, nil), nil
	case "mock":
		return &MockProvider{Model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// SecretName is the keyring entry holding the provider's API key, or ""
// when the provider needs none.
func SecretName(provider string) string {
	switch provider {
	case "openai", "anthropic":
		return provider
	default:
		return ""
	}
}
