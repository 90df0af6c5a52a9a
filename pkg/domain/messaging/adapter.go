// Package messaging defines the outbound notification channels that plan
// and occurrence events are fanned out to.
package messaging

import (
	"context"
	"path"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
)

// Adapter types.
const (
	TypeWebhook  = "webhook"
	TypeSlack    = "slack"
	TypeNATS     = "nats"
	TypeTelegram = "telegram"
)

// MessageAdapter delivers one event to an external channel.
type MessageAdapter interface {
	Send(ctx context.Context, event *events.BaseEvent) error
	Name() string
	Type() string
}

// AdapterConfig configures one adapter. URL is the webhook endpoint, the
// NATS server URL, or unused for telegram. Secret names a keyring entry or
// holds an HMAC key for webhooks.
type AdapterConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Type         string            `yaml:"type" json:"type"`
	URL          string            `yaml:"url,omitempty" json:"url,omitempty"`
	Secret       string            `yaml:"secret,omitempty" json:"secret,omitempty"`
	EventFilters []string          `yaml:"event_filters,omitempty" json:"event_filters,omitempty"`
	Families     []string          `yaml:"families,omitempty" json:"families,omitempty"`
	Enabled      bool              `yaml:"enabled" json:"enabled"`
	Options      map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Accepts reports whether the event passes the adapter's type and family
// filters. Filters are glob patterns ("plan.*"); empty filters accept all.
func (c AdapterConfig) Accepts(event *events.BaseEvent) bool {
	if len(c.Families) > 0 && !contains(c.Families, event.FamilyID) {
		return false
	}
	if len(c.EventFilters) == 0 {
		return true
	}
	for _, f := range c.EventFilters {
		if f == "*" || f == event.Type {
			return true
		}
		if ok, _ := path.Match(f, event.Type); ok {
			return true
		}
	}
	return false
}

// Option returns the named option or def when unset.
func (c AdapterConfig) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// MessagingConfig holds all configured adapters.
type MessagingConfig struct {
	Adapters []AdapterConfig `yaml:"adapters" json:"adapters"`
}
