// Package messaging delivers domain events to the configured outbound
// channels: generic webhooks, Slack, NATS subjects and Telegram chats.
package messaging

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Resolution-Signature"

// Payload is the JSON body posted to webhook endpoints and published on
// NATS subjects.
type Payload struct {
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	FamilyID  string            `json:"family_id,omitempty"`
	Summary   string            `json:"summary"`
	Data      *events.BaseEvent `json:"data"`
}

func newPayload(event *events.BaseEvent) Payload {
	return Payload{
		EventType: event.Type,
		Timestamp: event.Timestamp,
		FamilyID:  event.FamilyID,
		Summary:   event.String(),
		Data:      event,
	}
}

// WebhookAdapter posts events to a generic webhook URL.
type WebhookAdapter struct {
	config messaging.AdapterConfig
	client *http.Client
}

func NewWebhookAdapter(config messaging.AdapterConfig) *WebhookAdapter {
	return &WebhookAdapter{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *WebhookAdapter) Name() string { return a.config.Name }
func (a *WebhookAdapter) Type() string { return messaging.TypeWebhook }

func (a *WebhookAdapter) Send(ctx context.Context, event *events.BaseEvent) error {
	body, err := json.Marshal(newPayload(event))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Resolution-Messaging/1.0")
	if a.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, a.config.Secret))
	}

	return postJSON(a.client, req, "webhook")
}

// Sign computes the signature header value for a payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postJSON(client *http.Client, req *http.Request, target string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}
	return nil
}
