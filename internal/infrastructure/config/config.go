// Package config loads the workspace configuration file and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

// Environment overrides.
const (
	EnvDBDriver = "RESOLUTION_DB_DRIVER"
	EnvDBDSN    = "RESOLUTION_DB_DSN"
	EnvTimezone = "RESOLUTION_TZ"
	EnvDebug    = "RESOLUTION_DEBUG"
)

// Config is the content of .resolution/config.yaml.
type Config struct {
	Timezone  string                    `yaml:"timezone,omitempty"`
	Database  DatabaseConfig            `yaml:"database"`
	AI        AIConfig                  `yaml:"ai"`
	Planning  PlanningConfig            `yaml:"planning"`
	Messaging messaging.MessagingConfig `yaml:"messaging,omitempty"`
	Schedule  ScheduleConfig            `yaml:"schedule"`
	Server    ServerConfig              `yaml:"server"`
	Log       LogConfig                 `yaml:"log"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite (relative paths resolve against the
	// workspace directory) or a connection string for postgres.
	DSN string `yaml:"dsn,omitempty"`
}

type PlanningConfig struct {
	ExpiryHours   int `yaml:"expiry_hours"`
	ConflictWeeks int `yaml:"conflict_weeks"`
}

// ScheduleConfig holds cron specs (with seconds) for the background jobs.
// An empty spec disables the job.
type ScheduleConfig struct {
	ExpirySweep  string `yaml:"expiry_sweep"`
	AutoGenerate string `yaml:"auto_generate"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug,omitempty"`
}

// Default returns the configuration written by `init`.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: storage.DriverSQLite},
		AI:       AIConfig{Provider: "ollama", Model: "llama3"},
		Planning: PlanningConfig{ExpiryHours: 72, ConflictWeeks: 4},
		Schedule: ScheduleConfig{
			ExpirySweep:  "0 */15 * * * *",
			AutoGenerate: "0 0 18 * * SUN",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the workspace config, falling back to defaults when the file
// does not exist, and applies environment overrides.
func Load(ws *storage.Workspace) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(ws.ConfigPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the workspace.
func Save(ws *storage.Workspace, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(ws.ConfigPath(), data, 0600)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.Debug = b
		}
	}
	c.AI.applyEnv()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", storage.DriverSQLite:
	case storage.DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Planning.ExpiryHours < 0 || c.Planning.ConflictWeeks < 0 {
		return fmt.Errorf("planning settings must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	return nil
}

// Location is the default timezone for families without one; nil means
// the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// PlanExpiry is the approval window; zero selects the service default.
func (c *Config) PlanExpiry() time.Duration {
	return time.Duration(c.Planning.ExpiryHours) * time.Hour
}

// StorageOptions resolves the database settings against the workspace.
func (c *Config) StorageOptions(ws *storage.Workspace) storage.Options {
	driver := c.Database.Driver
	if driver == "" {
		driver = storage.DriverSQLite
	}
	dsn := c.Database.DSN
	if driver == storage.DriverSQLite {
		switch {
		case dsn == "":
			dsn = ws.DatabasePath()
		case dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && !filepath.IsAbs(dsn):
			dsn = filepath.Join(ws.Dir(), dsn)
		}
	}
	return storage.Options{Driver: driver, DSN: dsn}
}
