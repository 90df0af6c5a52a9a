package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/messaging"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	domainmsg "github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
)

func planEvent(eventType string) *events.BaseEvent {
	return events.NewPlanEvent(eventType, "plan-1", "fam-1", "alice",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		map[string]any{"week_start": "2025-03-10"})
}

func fastRetry() messaging.Option {
	return messaging.WithRetry(retry.Config{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		BackoffPolicy: retry.BackoffExponential,
	})
}

func TestWebhookAdapter_SendSignsPayload(t *testing.T) {
	var body []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(messaging.SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	adapter := messaging.NewWebhookAdapter(domainmsg.AdapterConfig{
		Name: "hook", Type: domainmsg.TypeWebhook, URL: server.URL, Secret: "s3cret", Enabled: true,
	})
	if err := adapter.Send(context.Background(), planEvent(events.EventTypePlanCreated)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var payload messaging.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.EventType != events.EventTypePlanCreated || payload.FamilyID != "fam-1" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if !strings.Contains(payload.Summary, "week of 2025-03-10") {
		t.Errorf("summary = %q", payload.Summary)
	}
	if want := messaging.Sign(body, "s3cret"); signature != want {
		t.Errorf("signature = %q, want %q", signature, want)
	}
}

func TestWebhookAdapter_SendHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := messaging.NewWebhookAdapter(domainmsg.AdapterConfig{Name: "hook", URL: server.URL})
	err := adapter.Send(context.Background(), planEvent(events.EventTypePlanCreated))
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSlackAdapter_Send(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer server.Close()

	adapter := messaging.NewSlackAdapter(domainmsg.AdapterConfig{
		Name: "slack", URL: server.URL, Options: map[string]string{"channel": "#family"},
	})
	if err := adapter.Send(context.Background(), planEvent(events.EventTypePlanApproved)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	text, _ := payload["text"].(string)
	if !strings.HasPrefix(text, ":white_check_mark:") || !strings.Contains(text, "approved") {
		t.Errorf("text = %q", text)
	}
	if payload["channel"] != "#family" {
		t.Errorf("channel = %v", payload["channel"])
	}
	if _, ok := payload["blocks"]; !ok {
		t.Error("expected blocks")
	}
}

func TestNATSAdapter_Subject(t *testing.T) {
	adapter := messaging.NewNATSAdapter(domainmsg.AdapterConfig{
		Name: "bus", Type: domainmsg.TypeNATS, Options: map[string]string{"subject_prefix": "home."},
	})
	if got := adapter.Subject(planEvent(events.EventTypePlanExpired)); got != "home.fam-1.plan.expired" {
		t.Errorf("subject = %q", got)
	}
	ev := planEvent(events.EventTypeGenerationFailed)
	ev.FamilyID = ""
	if got := adapter.Subject(ev); got != "home._.plan.generation_failed" {
		t.Errorf("subject = %q", got)
	}
	if err := adapter.Close(); err != nil {
		t.Errorf("close without connection: %v", err)
	}
}

func TestTelegramAdapter_Send(t *testing.T) {
	var mu sync.Mutex
	var chatID, text string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Res","username":"res_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			chatID, text = r.FormValue("chat_id"), r.FormValue("text")
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	adapter, err := messaging.NewTelegramAdapter(domainmsg.AdapterConfig{
		Name:   "tg",
		Type:   domainmsg.TypeTelegram,
		Secret: "TOKEN",
		Options: map[string]string{
			"chat_id":      "42",
			"api_endpoint": server.URL + "/bot%s/%s",
		},
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := adapter.Send(context.Background(), planEvent(events.EventTypePlanRejected)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if chatID != "42" {
		t.Errorf("chat_id = %q", chatID)
	}
	if !strings.Contains(text, "<b>plan.rejected</b>") {
		t.Errorf("text = %q", text)
	}
}

func TestNewTelegramAdapter_Validation(t *testing.T) {
	cases := []domainmsg.AdapterConfig{
		{Name: "no-token", Options: map[string]string{"chat_id": "1"}},
		{Name: "no-chat", Secret: "t"},
		{Name: "bad-chat", Secret: "t", Options: map[string]string{"chat_id": "abc"}},
	}
	for _, cfg := range cases {
		if _, err := messaging.NewTelegramAdapter(cfg); err == nil {
			t.Errorf("%s: expected error", cfg.Name)
		}
	}
}

type fakeAdapter struct {
	name  string
	err   error
	calls int
	mu    sync.Mutex
	types []string
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Type() string { return "fake" }
func (f *fakeAdapter) Send(_ context.Context, e *events.BaseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.types = append(f.types, e.Type)
	return f.err
}

func TestRegistry_FiltersAndDelivers(t *testing.T) {
	var mu sync.Mutex
	received := map[string][]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p messaging.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		received[r.URL.Path] = append(received[r.URL.Path], p.EventType)
		mu.Unlock()
	}))
	defer server.Close()

	reg, err := messaging.NewRegistry(&domainmsg.MessagingConfig{Adapters: []domainmsg.AdapterConfig{
		{Name: "all", Type: domainmsg.TypeWebhook, URL: server.URL + "/all", Enabled: true},
		{Name: "plans", Type: domainmsg.TypeWebhook, URL: server.URL + "/plans", Enabled: true, EventFilters: []string{"plan.approved", "plan.rejected"}},
		{Name: "other-family", Type: domainmsg.TypeWebhook, URL: server.URL + "/other", Enabled: true, Families: []string{"fam-2"}},
		{Name: "off", Type: domainmsg.TypeWebhook, URL: server.URL + "/off"},
	}}, fastRetry())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if n := len(reg.Adapters()); n != 3 {
		t.Fatalf("adapters = %d, want 3", n)
	}

	for _, typ := range []string{events.EventTypePlanCreated, events.EventTypePlanApproved} {
		if err := reg.Handle(context.Background(), planEvent(typ)); err != nil {
			t.Fatalf("handle %s: %v", typ, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got := len(received["/all"]); got != 2 {
		t.Errorf("/all got %d events", got)
	}
	if got := received["/plans"]; len(got) != 1 || got[0] != events.EventTypePlanApproved {
		t.Errorf("/plans got %v", got)
	}
	if len(received["/other"]) != 0 || len(received["/off"]) != 0 {
		t.Errorf("unexpected deliveries: %v", received)
	}
}

func TestRegistry_DeadLettersAfterRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := messaging.NewDeadLetterStore(filepath.Join(t.TempDir(), "deadletters.jsonl"))
	reg, err := messaging.NewRegistry(&domainmsg.MessagingConfig{Adapters: []domainmsg.AdapterConfig{
		{Name: "flaky", Type: domainmsg.TypeWebhook, URL: server.URL, Enabled: true},
	}}, fastRetry(), messaging.WithDeadLetters(store))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	ev := planEvent(events.EventTypePlanExpired)
	if err := reg.Handle(context.Background(), ev); err == nil {
		t.Fatal("expected delivery error")
	}
	if attempts < 1 {
		t.Errorf("attempts = %d", attempts)
	}
	letters, err := store.ReadAll()
	if err != nil {
		t.Fatalf("read dead letters: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("dead letters = %d", len(letters))
	}
	if dl := letters[0]; dl.Adapter != "flaky" || dl.EventID != ev.ID || dl.Attempts != attempts {
		t.Errorf("unexpected dead letter: %+v", dl)
	}
}

func TestRegistry_SecretReferences(t *testing.T) {
	lookup := func(name string) (string, error) {
		if name == "tg-token" {
			return "TOKEN", nil
		}
		return "", errors.New("not found")
	}
	cfg := &domainmsg.MessagingConfig{Adapters: []domainmsg.AdapterConfig{
		{Name: "tg", Type: domainmsg.TypeTelegram, Secret: "secret:tg-token", Enabled: true, Options: map[string]string{"chat_id": "5"}},
	}}
	if _, err := messaging.NewRegistry(cfg, messaging.WithSecretLookup(lookup)); err != nil {
		t.Fatalf("expected secret to resolve: %v", err)
	}

	cfg.Adapters[0].Secret = "secret:missing"
	if _, err := messaging.NewRegistry(cfg, messaging.WithSecretLookup(lookup)); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := messaging.NewRegistry(cfg); err == nil {
		t.Fatal("expected error without a secret store")
	}
}

func TestRegistry_ReloadKeepsPreviousOnError(t *testing.T) {
	reg, err := messaging.NewRegistry(&domainmsg.MessagingConfig{Adapters: []domainmsg.AdapterConfig{
		{Name: "hook", Type: domainmsg.TypeWebhook, URL: "http://127.0.0.1:1", Enabled: true},
	}})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	bad := &domainmsg.MessagingConfig{Adapters: []domainmsg.AdapterConfig{
		{Name: "mystery", Type: "pager", Enabled: true},
	}}
	if err := reg.Reload(bad); err == nil {
		t.Fatal("expected unknown adapter type error")
	}
	if n := len(reg.Adapters()); n != 1 {
		t.Errorf("adapters after failed reload = %d, want 1", n)
	}

	if err := reg.Reload(nil); err != nil {
		t.Fatalf("reload nil: %v", err)
	}
	if n := len(reg.Adapters()); n != 0 {
		t.Errorf("adapters after empty reload = %d", n)
	}
}

func TestRegistry_DispatcherIntegration(t *testing.T) {
	var mu sync.Mutex
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	defer server.Close()

	reg, err := messaging.NewRegistry(&domainmsg.MessagingConfig{Adapters: []domainmsg.AdapterConfig{
		{Name: "hook", Type: domainmsg.TypeWebhook, URL: server.URL, Enabled: true, EventFilters: []string{"plan.*"}},
	}}, fastRetry())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	d := events.NewEventDispatcher(nil)
	d.Register(reg.Registration())
	d.Publish(context.Background(), planEvent(events.EventTypePlanSubmitted))
	d.Publish(context.Background(), events.NewOccurrenceEvent("occ-1", "fam-1", "bob", time.Now(), nil))
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("deliveries = %d, want 1", count)
	}
}
