package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
)

// SlackAdapter posts events to a Slack incoming webhook URL.
type SlackAdapter struct {
	config messaging.AdapterConfig
	client *http.Client
}

func NewSlackAdapter(config messaging.AdapterConfig) *SlackAdapter {
	return &SlackAdapter{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *SlackAdapter) Name() string { return a.config.Name }
func (a *SlackAdapter) Type() string { return messaging.TypeSlack }

func (a *SlackAdapter) Send(ctx context.Context, event *events.BaseEvent) error {
	text := formatSlackMessage(event)
	payload := map[string]any{
		"text": text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": text},
			},
		},
	}
	if channel := a.config.Option("channel", ""); channel != "" {
		payload["channel"] = channel
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return postJSON(a.client, req, "slack")
}

func formatSlackMessage(event *events.BaseEvent) string {
	icon := ":calendar:"
	switch event.Type {
	case events.EventTypePlanCreated:
		icon = ":clipboard:"
	case events.EventTypePlanSubmitted:
		icon = ":inbox_tray:"
	case events.EventTypePlanApproved:
		icon = ":white_check_mark:"
	case events.EventTypePlanRejected:
		icon = ":x:"
	case events.EventTypePlanExpired:
		icon = ":hourglass:"
	case events.EventTypeGenerationFailed, events.EventTypeConflictRecorded:
		icon = ":warning:"
	}
	return fmt.Sprintf("%s %s", icon, event.String())
}
