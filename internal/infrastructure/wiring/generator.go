package wiring

import (
	"fmt"
	"path/filepath"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/config"
	infraai "github.com/SECURESLOG/resolution-ai-sub002/pkg/ai"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	domainai "github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

// ProposalsFile is read when the AI provider is "file".
const ProposalsFile = "proposals.json"

func (s *AppServices) buildGenerator(override application.ProposalGenerator) error {
	if override != nil {
		s.Generator = override
		return nil
	}
	if s.Config.AI.Provider == "file" {
		s.Generator = application.NewFileProposalGenerator(filepath.Join(s.Workspace.Dir(), ProposalsFile))
		return nil
	}

	provider, err := LoadAIProvider(s.Config.AI, s.Secrets)
	if err != nil {
		s.ProviderErr = fmt.Errorf("AI provider config fallback: %w", err)
		s.Logger.Warn("falling back to default AI provider", "provider", s.Config.AI.Provider, "error", err)
		provider, err = LoadAIProvider(config.AIConfig{Provider: "ollama", Model: "llama3"}, nil)
		if err != nil {
			return fmt.Errorf("fallback AI provider failed: %w", err)
		}
	}
	s.Provider = provider
	s.Generator = application.NewAIProposalGenerator(provider, s.Usage, s.Logger.Logger)
	return nil
}

// LoadAIProvider builds the configured provider wrapped with retry and
// timeout.
func LoadAIProvider(cfg config.AIConfig, secrets *config.SecretResolver) (domainai.Provider, error) {
	pc, err := cfg.ProviderConfig(secrets)
	if err != nil {
		return nil, err
	}
	base, err := infraai.NewProvider(pc)
	if err != nil {
		return nil, err
	}
	return infraai.NewResilientProviderWithConfig(base, cfg.Resilience()), nil
}
