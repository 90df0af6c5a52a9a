package ai

import (
	"context"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
)

// ResilienceConfig bounds calls to a provider.
type ResilienceConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultResilienceConfig returns the settings used when none are configured.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries: 2,
		RetryDelay: time.Second,
		Timeout:    120 * time.Second,
	}
}

func (c ResilienceConfig) withDefaults() ResilienceConfig {
	d := DefaultResilienceConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// ResilientProvider retries failed completions with exponential backoff and
// bounds the whole call, retries included, by a timeout. Permanent API errors
// such as a bad key are returned without retrying.
type ResilientProvider struct {
	inner ai.Provider
	cfg   ResilienceConfig
}

func NewResilientProvider(inner ai.Provider) *ResilientProvider {
	return NewResilientProviderWithConfig(inner, DefaultResilienceConfig())
}

func NewResilientProviderWithConfig(inner ai.Provider, cfg ResilienceConfig) *ResilientProvider {
	cfg = cfg.withDefaults()
	return &ResilientProvider{inner: inner, cfg: cfg}
}

func (p *ResilientProvider) ID() string {
	return p.inner.ID()
}

// Config returns the effective settings.
func (p *ResilientProvider) Config() ResilienceConfig {
	return p.cfg
}

func (p *ResilientProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	r := retry.New[*ai.CompletionResponse](retry.Config{
		MaxAttempts:   p.cfg.MaxRetries,
		InitialDelay:  p.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[*ai.CompletionResponse](timeout.Config{
		DefaultTimeout: p.cfg.Timeout,
	})
	// A permanent failure ends the retry loop as a nil result and is
	// reported after it.
	var permanent error
	resp, err := t.Execute(ctx, p.cfg.Timeout, func(ctx context.Context) (*ai.CompletionResponse, error) {
		return r.Do(ctx, func(ctx context.Context) (*ai.CompletionResponse, error) {
			resp, err := p.inner.Complete(ctx, req)
			if err != nil && IsPermanent(err) {
				permanent = err
				return nil, nil
			}
			return resp, err
		})
	})
	if permanent != nil {
		return nil, permanent
	}
	return resp, err
}
