package config

import (
	"os"
	"time"

	infraai "github.com/SECURESLOG/resolution-ai-sub002/pkg/ai"
)

// AI environment overrides.
const (
	EnvAIProvider = "RESOLUTION_AI_PROVIDER"
	EnvAIModel    = "RESOLUTION_AI_MODEL"
)

// AIConfig selects the proposal generator backend. A Provider of "file"
// reads proposals from a JSON file instead of calling a model.
type AIConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	RetryDelayMs int    `yaml:"retry_delay_ms,omitempty"`
	TimeoutSec   int    `yaml:"timeout_sec,omitempty"`
}

func (c *AIConfig) applyEnv() {
	if v := os.Getenv(EnvAIProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvAIModel); v != "" {
		c.Model = v
	}
}

// Resilience merges the configured retry settings over the defaults.
func (c AIConfig) Resilience() infraai.ResilienceConfig {
	rc := infraai.DefaultResilienceConfig()
	if c.MaxRetries > 0 {
		rc.MaxRetries = c.MaxRetries
	}
	if c.RetryDelayMs > 0 {
		rc.RetryDelay = time.Duration(c.RetryDelayMs) * time.Millisecond
	}
	if c.TimeoutSec > 0 {
		rc.Timeout = time.Duration(c.TimeoutSec) * time.Second
	}
	return rc
}

// ProviderConfig resolves the provider's API key through secrets.
func (c AIConfig) ProviderConfig(secrets *SecretResolver) (infraai.ProviderConfig, error) {
	pc := infraai.ProviderConfig{Provider: c.Provider, Model: c.Model, BaseURL: c.BaseURL}
	name := infraai.SecretName(c.Provider)
	if name == "" || secrets == nil {
		return pc, nil
	}
	key, err := secrets.Get(name)
	if err != nil {
		return pc, err
	}
	pc.APIKey = key
	return pc, nil
}
