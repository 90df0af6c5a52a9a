package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

func newWorkspace(t *testing.T) *storage.Workspace {
	t.Helper()
	ws := storage.NewWorkspace(t.TempDir())
	if err := ws.Initialize(); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	return ws
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	ws := newWorkspace(t)
	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != storage.DriverSQLite || cfg.Planning.ExpiryHours != 72 || cfg.Planning.ConflictWeeks != 4 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PlanExpiry() != 72*time.Hour {
		t.Errorf("expiry = %v", cfg.PlanExpiry())
	}
	opts := cfg.StorageOptions(ws)
	if opts.DSN != ws.DatabasePath() {
		t.Errorf("dsn = %q", opts.DSN)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ws := newWorkspace(t)
	in := Default()
	in.Timezone = "Europe/Berlin"
	in.AI = AIConfig{Provider: "mock", Model: "test-model", MaxRetries: 4}
	in.Messaging = messaging.MessagingConfig{Adapters: []messaging.AdapterConfig{
		{Name: "hook", Type: messaging.TypeWebhook, URL: "http://example.test", Enabled: true, EventFilters: []string{"plan.*"}},
	}}
	if err := Save(ws, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.Provider != "mock" || cfg.AI.Model != "test-model" {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.AI.Resilience().MaxRetries != 4 {
		t.Errorf("resilience = %+v", cfg.AI.Resilience())
	}
	if len(cfg.Messaging.Adapters) != 1 || cfg.Messaging.Adapters[0].EventFilters[0] != "plan.*" {
		t.Errorf("messaging = %+v", cfg.Messaging)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("location = %v, %v", loc, err)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	ws := newWorkspace(t)
	if err := os.WriteFile(ws.ConfigPath(), []byte("planning:\n  conflict_weeks: 8\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Planning.ConflictWeeks != 8 {
		t.Errorf("conflict weeks = %d", cfg.Planning.ConflictWeeks)
	}
	if cfg.Schedule.ExpirySweep == "" || cfg.Server.Addr == "" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	ws := newWorkspace(t)
	t.Setenv(EnvDBDriver, storage.DriverPostgres)
	t.Setenv(EnvDBDSN, "postgres://localhost/resolution")
	t.Setenv(EnvTimezone, "America/New_York")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvAIProvider, "mock")

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != storage.DriverPostgres || cfg.Timezone != "America/New_York" || !cfg.Log.Debug || cfg.AI.Provider != "mock" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if opts := cfg.StorageOptions(ws); opts.DSN != "postgres://localhost/resolution" {
		t.Errorf("dsn = %q", opts.DSN)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", "::bad"},
		{"driver", "database:\n  driver: mysql\n"},
		{"postgres without dsn", "database:\n  driver: postgres\n"},
		{"timezone", "timezone: Mars/Olympus\n"},
		{"log level", "log:\n  level: loud\n"},
		{"negative expiry", "planning:\n  expiry_hours: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			if err := os.WriteFile(ws.ConfigPath(), []byte(tt.body), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(ws); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStorageOptions_RelativeSQLitePath(t *testing.T) {
	ws := newWorkspace(t)
	cfg := Default()
	cfg.Database.DSN = "other.db"
	if got := cfg.StorageOptions(ws).DSN; got != filepath.Join(ws.Dir(), "other.db") {
		t.Errorf("dsn = %q", got)
	}
	cfg.Database.DSN = ":memory:"
	if got := cfg.StorageOptions(ws).DSN; got != ":memory:" {
		t.Errorf("dsn = %q", got)
	}
}

func TestSecretResolver(t *testing.T) {
	keyring.MockInit()
	r := NewSecretResolver()

	if _, err := r.Get("openai"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := r.Set("openai", "sk-keyring"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := r.Get("openai"); err != nil || v != "sk-keyring" {
		t.Fatalf("get = %q, %v", v, err)
	}

	t.Setenv(EnvName("openai"), "sk-env")
	if v, _ := r.Get("openai"); v != "sk-env" {
		t.Errorf("env should win, got %q", v)
	}

	if err := r.Delete("openai"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete("openai"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("second delete = %v", err)
	}
	if err := r.Set("", "x"); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("tg-token.home"); got != "RESOLUTION_SECRET_TG_TOKEN_HOME" {
		t.Errorf("EnvName = %q", got)
	}
}

func TestAIConfig_ProviderConfig(t *testing.T) {
	keyring.MockInit()
	r := NewSecretResolver()
	if err := r.Set("anthropic", "key-1"); err != nil {
		t.Fatal(err)
	}

	pc, err := AIConfig{Provider: "anthropic", Model: "claude"}.ProviderConfig(r)
	if err != nil || pc.APIKey != "key-1" {
		t.Fatalf("provider config = %+v, %v", pc, err)
	}
	pc, err = AIConfig{Provider: "ollama", Model: "llama3"}.ProviderConfig(r)
	if err != nil || pc.APIKey != "" {
		t.Fatalf("ollama needs no key: %+v, %v", pc, err)
	}
	if _, err := (AIConfig{Provider: "openai"}).ProviderConfig(r); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected missing openai key, got %v", err)
	}
}
