package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

const scheduleSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["schedule"],
  "properties": {
    "reasoning": { "type": "string" },
    "schedule": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["taskId", "assignedUserId", "scheduledDate", "startTime"],
        "properties": {
          "taskId": { "type": "string" },
          "assignedUserId": { "type": "string" },
          "scheduledDate": { "type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$" },
          "startTime": { "type": "string", "pattern": "^\\d{1,2}:\\d{2}$" },
          "endTime": { "type": "string" },
          "reasoning": { "type": "string" }
        }
      }
    }
  }
}`

var scheduleSchemaLoader = gojsonschema.NewStringLoader(scheduleSchemaJSON)

const schedulerSystemPrompt = "You are a careful family scheduler. You place recurring tasks into free time slots and return only JSON. You never place a task on a day it is not allowed on."

// UsageRecorder receives token counts after each completion.
type UsageRecorder interface {
	RecordUsage(providerID string, usage ai.TokenUsage) error
}

// AIProposalGenerator asks a completion provider for a week schedule and
// parses the answer leniently. Entries it cannot read are dropped; the
// validator decides on the rest.
type AIProposalGenerator struct {
	provider ai.Provider
	usage    UsageRecorder
	logger   *slog.Logger
}

func NewAIProposalGenerator(provider ai.Provider, usage UsageRecorder, logger *slog.Logger) *AIProposalGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIProposalGenerator{provider: provider, usage: usage, logger: logger}
}

func (g *AIProposalGenerator) Generate(ctx context.Context, in GenerationInput) (*proposal.Generation, error) {
	prompt := BuildSchedulePrompt(in)

	resp, err := g.complete(ctx, prompt, 1)
	if err != nil {
		return nil, err
	}
	gen, err := ParseGeneration(resp.Text)
	if err != nil {
		g.logger.Warn("unusable schedule response, retrying", "error", err)
		retryPrompt := prompt + "\n\nIMPORTANT: Your previous response was invalid. Return ONLY the JSON object described above with no extra text."
		resp, err = g.complete(ctx, retryPrompt, 2)
		if err != nil {
			return nil, err
		}
		gen, err = ParseGeneration(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule JSON after retry: %w", err)
		}
	}
	return gen, nil
}

func (g *AIProposalGenerator) complete(ctx context.Context, prompt string, attempt int) (*ai.CompletionResponse, error) {
	resp, err := g.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      prompt,
		System:      schedulerSystemPrompt,
		Temperature: 0.2,
		MaxTokens:   4000,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	g.logger.Debug("schedule completion", "provider", g.provider.ID(), "model", resp.Model,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens, "attempt", attempt)
	if g.usage != nil {
		if err := g.usage.RecordUsage(g.provider.ID(), resp.Usage); err != nil {
			g.logger.Warn("failed to record token usage", "error", err)
		}
	}
	return resp, nil
}

// BuildSchedulePrompt renders the generation input as instructions.
func BuildSchedulePrompt(in GenerationInput) string {
	var b strings.Builder
	w := in.Window
	fmt.Fprintf(&b, "Plan the week of %s to %s for the family %q.\n", w.FullWeekStart, w.FullWeekEnd, in.Family.Name)
	fmt.Fprintf(&b, "Only schedule on dates from %s to %s.\n\n", w.SchedulingStart, w.FullWeekEnd)

	b.WriteString("Members:\n")
	for _, m := range in.Members {
		fmt.Fprintf(&b, "- %s (id: %s, role: %s)\n", m.Name(), m.UserID, m.Role)
	}

	b.WriteString("\nTasks:\n")
	for _, tc := range in.Tasks {
		t := tc.Task
		if tc.Remaining == 0 {
			fmt.Fprintf(&b, "- %s (id: %s): already satisfied, %s; do not schedule\n", t.Name, t.ID, tc.Fulfillment.Summary(t))
			continue
		}
		fmt.Fprintf(&b, "- %s (id: %s, %s, %d min, priority %d): place %d more; %s\n",
			t.Name, t.ID, t.Type, t.DurationMin, t.Priority, tc.Remaining, tc.Fulfillment.Summary(t))
		if t.Type == scheduling.TaskTypeResolution {
			fmt.Fprintf(&b, "  assign only to %s\n", t.OwnerID)
		}
		if t.Mode == scheduling.ModeFixed {
			if len(t.FixedDays) > 0 {
				fmt.Fprintf(&b, "  fixed days: %s\n", t.FixedDays)
			}
			if t.FixedTime != nil {
				fmt.Fprintf(&b, "  fixed start: %s (±%d min)\n", *t.FixedTime, scheduling.FixedTimeToleranceMin)
			}
		} else {
			if len(t.RequiredDays) > 0 {
				fmt.Fprintf(&b, "  allowed days: %s\n", t.RequiredDays)
			}
			if len(t.PreferredDays) > 0 {
				fmt.Fprintf(&b, "  preferred days: %s\n", t.PreferredDays)
			}
			if t.PreferredWindow != nil {
				fmt.Fprintf(&b, "  preferred time: %s-%s\n", t.PreferredWindow.Start, t.PreferredWindow.End)
			}
		}
		if dates := tc.Fulfillment.Dates.Sorted(); len(dates) > 0 {
			placed := make([]string, len(dates))
			for i, d := range dates {
				placed[i] = d.String()
			}
			fmt.Fprintf(&b, "  already placed on: %s\n", strings.Join(placed, ", "))
		}
	}

	if len(in.Busy) > 0 {
		busy := append([]BusyBlock(nil), in.Busy...)
		sort.SliceStable(busy, func(i, j int) bool {
			if busy[i].Date != busy[j].Date {
				return busy[i].Date.Before(busy[j].Date)
			}
			return busy[i].Window.Start < busy[j].Window.Start
		})
		b.WriteString("\nBusy times:\n")
		for _, bb := range busy {
			fmt.Fprintf(&b, "- %s %s %s-%s %s\n", bb.UserID, bb.Date, bb.Window.Start, bb.Window.End, bb.Label)
		}
	}

	b.WriteString(`
Return ONLY a JSON object with no markdown and no code fences:
{"schedule":[{"taskId":"...","assignedUserId":"...","scheduledDate":"YYYY-MM-DD","startTime":"HH:MM","endTime":"HH:MM","reasoning":"..."}],"reasoning":"..."}
`)
	return b.String()
}

// ParseGeneration extracts a schedule from a model answer. It accepts the
// documented object, a bare array of proposals, and common wrapper keys.
// It fails only when no schedule structure can be found at all.
func ParseGeneration(text string) (*proposal.Generation, error) {
	clean := extractJSONPayload(text)
	if clean == "" {
		return nil, fmt.Errorf("empty response")
	}

	if result, err := gojsonschema.Validate(scheduleSchemaLoader, gojsonschema.NewStringLoader(clean)); err == nil && result.Valid() {
		var gen proposal.Generation
		if err := json.Unmarshal([]byte(clean), &gen); err == nil {
			return &gen, nil
		}
	}

	var list []map[string]any
	if err := json.Unmarshal([]byte(clean), &list); err == nil {
		return &proposal.Generation{Proposals: normalizeProposals(list)}, nil
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(clean), &generic); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	if errValue, ok := generic["error"]; ok {
		return nil, fmt.Errorf("generator reported an error: %v", errValue)
	}
	gen := &proposal.Generation{Reasoning: getString(generic, "reasoning", "explanation", "summary")}
	for _, key := range []string{"schedule", "proposals", "tasks", "items", "data"} {
		raw, ok := generic[key].([]any)
		if !ok {
			continue
		}
		var entries []map[string]any
		for _, r := range raw {
			if m, ok := r.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
		gen.Proposals = normalizeProposals(entries)
		return gen, nil
	}
	if hasAnyKey(generic, "taskId", "task_id", "task-id") {
		gen.Proposals = normalizeProposals([]map[string]any{generic})
		return gen, nil
	}
	return nil, fmt.Errorf("no schedule found in response")
}

func normalizeProposals(entries []map[string]any) []proposal.Proposal {
	out := make([]proposal.Proposal, 0, len(entries))
	for _, raw := range entries {
		p := proposal.Proposal{
			TaskID:         getString(raw, "taskId", "task_id", "task-id", "id"),
			AssignedUserID: getString(raw, "assignedUserId", "assigned_user_id", "assignee", "userId", "user_id"),
			ScheduledDate:  getString(raw, "scheduledDate", "scheduled_date", "date"),
			StartTime:      getString(raw, "startTime", "start_time", "start"),
			EndTime:        getString(raw, "endTime", "end_time", "end"),
			Reasoning:      getString(raw, "reasoning", "reason", "why"),
		}
		if p.TaskID == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			switch val := v.(type) {
			case string:
				return strings.TrimSpace(val)
			case float64:
				return fmt.Sprintf("%v", val)
			}
		}
	}
	return ""
}

func hasAnyKey(raw map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	return false
}

// extractJSONPayload strips code fences and surrounding prose.
func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return clean
	}

	start := strings.IndexAny(clean, "[{")
	if start == -1 {
		return clean
	}
	end := strings.LastIndexAny(clean, "]}")
	if end == -1 || end <= start {
		return clean
	}
	return strings.TrimSpace(clean[start : end+1])
}
