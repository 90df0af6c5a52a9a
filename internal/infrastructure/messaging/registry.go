package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
)

// secretPrefix marks an adapter Secret that names an entry for the
// registry's SecretLookup instead of holding the value itself.
const secretPrefix = "secret:"

// SecretLookup resolves a named secret (environment or OS keyring).
type SecretLookup func(name string) (string, error)

// Registry owns the active adapters and fans events out to them.
type Registry struct {
	logger     *slog.Logger
	lookup     SecretLookup
	deadLetter *DeadLetterStore
	retry      retry.Config

	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	config  messaging.AdapterConfig
	adapter messaging.MessageAdapter
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithSecretLookup(fn SecretLookup) Option {
	return func(r *Registry) { r.lookup = fn }
}

// WithDeadLetters records deliveries that failed every attempt.
func WithDeadLetters(s *DeadLetterStore) Option {
	return func(r *Registry) { r.deadLetter = s }
}

// WithRetry overrides the per-adapter delivery policy.
func WithRetry(cfg retry.Config) Option {
	return func(r *Registry) { r.retry = cfg }
}

// NewRegistry creates adapters for every enabled entry of config.
func NewRegistry(config *messaging.MessagingConfig, opts ...Option) (*Registry, error) {
	r := &Registry{
		logger: slog.Default(),
		retry: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  500 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(config); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the active adapters. On error the previous set is kept.
func (r *Registry) Reload(config *messaging.MessagingConfig) error {
	var next []entry
	if config != nil {
		for _, cfg := range config.Adapters {
			if !cfg.Enabled {
				continue
			}
			adapter, err := r.createAdapter(cfg)
			if err != nil {
				closeAll(next)
				return fmt.Errorf("create adapter %q: %w", cfg.Name, err)
			}
			next = append(next, entry{config: cfg, adapter: adapter})
		}
	}

	r.mu.Lock()
	prev := r.entries
	r.entries = next
	r.mu.Unlock()

	closeAll(prev)
	return nil
}

// Adapters returns the active adapters.
func (r *Registry) Adapters() []messaging.MessageAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]messaging.MessageAdapter, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.adapter)
	}
	return out
}

// Handle delivers the event to every adapter whose filters accept it.
// Failures of one adapter do not stop the others.
func (r *Registry) Handle(ctx context.Context, event events.DomainEvent) error {
	base := events.AsBase(event)
	if base == nil {
		return nil
	}

	r.mu.RLock()
	targets := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.config.Accepts(base) {
			targets = append(targets, e)
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, e := range targets {
		if err := r.deliver(ctx, e, base); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.adapter.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Registration subscribes the registry to every event type.
func (r *Registry) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name:       "MessagingRegistry",
		Handler:    r.Handle,
		EventTypes: []string{events.AllEvents},
	}
}

func (r *Registry) deliver(ctx context.Context, e entry, event *events.BaseEvent) error {
	attempts := 0
	policy := retry.New[struct{}](r.retry)
	_, err := policy.Do(ctx, func(ctx context.Context) (struct{}, error) {
		attempts++
		return struct{}{}, e.adapter.Send(ctx, event)
	})
	if err == nil {
		return nil
	}

	r.logger.Warn("message delivery failed",
		"adapter", e.adapter.Name(),
		"type", e.adapter.Type(),
		"event_type", event.Type,
		"attempts", attempts,
		"error", err)
	if r.deadLetter != nil {
		dl := DeadLetter{
			Timestamp: time.Now().UTC(),
			Adapter:   e.adapter.Name(),
			Type:      e.adapter.Type(),
			EventType: event.Type,
			EventID:   event.ID,
			Error:     err.Error(),
			Attempts:  attempts,
		}
		if dlErr := r.deadLetter.Append(dl); dlErr != nil {
			r.logger.Error("dead letter write failed", "error", dlErr)
		}
	}
	return err
}

func (r *Registry) createAdapter(cfg messaging.AdapterConfig) (messaging.MessageAdapter, error) {
	secret, err := r.resolveSecret(cfg.Secret)
	if err != nil {
		return nil, err
	}
	cfg.Secret = secret

	switch cfg.Type {
	case messaging.TypeWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook adapter needs a url")
		}
		return NewWebhookAdapter(cfg), nil
	case messaging.TypeSlack:
		if cfg.URL == "" {
			return nil, fmt.Errorf("slack adapter needs a url")
		}
		return NewSlackAdapter(cfg), nil
	case messaging.TypeNATS:
		return NewNATSAdapter(cfg), nil
	case messaging.TypeTelegram:
		return NewTelegramAdapter(cfg)
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Type)
	}
}

func (r *Registry) resolveSecret(value string) (string, error) {
	name, ok := strings.CutPrefix(value, secretPrefix)
	if !ok {
		return value, nil
	}
	if r.lookup == nil {
		return "", fmt.Errorf("secret %q referenced but no secret store configured", name)
	}
	secret, err := r.lookup(name)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", name, err)
	}
	return secret, nil
}

// Close releases adapters holding connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	prev := r.entries
	r.entries = nil
	r.mu.Unlock()
	return closeAll(prev)
}

func closeAll(entries []entry) error {
	var errs []error
	for _, e := range entries {
		if c, ok := e.adapter.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
