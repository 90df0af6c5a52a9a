package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
)

const (
	WorkspaceDir = ".resolution"
	ConfigFile   = "config.yaml"
	DatabaseFile = "resolution.db"
	EventsFile   = "events.jsonl"
	UsageFile    = "usage.json"
	LogFile      = "resolution.log"
)

// Workspace is the on-disk project directory holding config, database and
// the append-only files.
type Workspace struct {
	root        string
	retryConfig retry.Config
	mu          sync.Mutex
	// lastHash is the tail of the audit chain; loaded on first append.
	lastHash   string
	chainReady bool
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root is the directory containing .resolution.
func (w *Workspace) Root() string { return w.root }

// Dir is the .resolution directory.
func (w *Workspace) Dir() string { return filepath.Join(w.root, WorkspaceDir) }

// ResolvePath returns the path of a file directly inside the workspace
// directory, rejecting traversal and nested paths.
func (w *Workspace) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	baseDir := w.Dir()
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))
	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}
	return cleanPath, nil
}

func (w *Workspace) Initialize() error {
	if err := os.MkdirAll(w.Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", WorkspaceDir, err)
	}
	return nil
}

func (w *Workspace) IsInitialized() bool {
	_, err := os.Stat(w.Dir())
	return err == nil
}

// DatabasePath is the default SQLite file location.
func (w *Workspace) DatabasePath() string {
	return filepath.Join(w.Dir(), DatabaseFile)
}

func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.Dir(), ConfigFile)
}

func (w *Workspace) LogPath() string {
	return filepath.Join(w.Dir(), LogFile)
}

// AppendEvent chains e after the last logged event and writes it as one
// JSON line. e itself is not modified.
func (w *Workspace) AppendEvent(e *events.BaseEvent) error {
	path, err := w.ResolvePath(EventsFile)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.chainReady {
		existing, err := readEvents(path)
		if err != nil {
			return err
		}
		if n := len(existing); n > 0 {
			w.lastHash = existing[n-1].Hash
		}
		w.chainReady = true
	}
	rec := e.Chain(w.lastHash)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// #nosec G304 -- path is resolved and validated via ResolvePath
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	w.lastHash = rec.Hash
	return nil
}

// LoadEvents reads the audit log. A missing log is empty.
func (w *Workspace) LoadEvents() ([]*events.BaseEvent, error) {
	r := retry.New[[]*events.BaseEvent](w.retryConfig)
	return r.Do(context.Background(), func(ctx context.Context) ([]*events.BaseEvent, error) {
		path, err := w.ResolvePath(EventsFile)
		if err != nil {
			return nil, err
		}
		return readEvents(path)
	})
}

func readEvents(path string) ([]*events.BaseEvent, error) {
	// #nosec G304 -- path is resolved and validated via ResolvePath
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var out []*events.BaseEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e events.BaseEvent
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		out = append(out, &e)
	}
	return out, sc.Err()
}

func (w *Workspace) SaveUsage(stats ai.UsageStats) error {
	path, err := w.ResolvePath(UsageFile)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage stats: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadUsage returns the stored usage, or empty stats when none exist yet.
func (w *Workspace) LoadUsage() (*ai.UsageStats, error) {
	path, err := w.ResolvePath(UsageFile)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ai.UsageStats{ProviderStats: make(map[string]int)}, nil
		}
		return nil, fmt.Errorf("failed to read usage file: %w", err)
	}
	var stats ai.UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage stats: %w", err)
	}
	if stats.ProviderStats == nil {
		stats.ProviderStats = make(map[string]int)
	}
	return &stats, nil
}
