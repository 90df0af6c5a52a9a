package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is a debounced modification of a watched file.
type Change struct {
	Path string
	Op   string // "create", "write", "remove", "rename"
}

// FileWatcher watches one directory and reports changes of the files
// passing its filter. Directories are watched rather than files so that
// editors replacing a file by rename are still seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	filter   NameFilter
	debounce time.Duration
	onChange func(Change)
	logger   *slog.Logger
}

// NewFileWatcher watches dir. A zero debounce means 300ms.
func NewFileWatcher(dir string, filter NameFilter, debounce time.Duration, onChange func(Change)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &FileWatcher{
		watcher:  w,
		filter:   filter,
		debounce: debounce,
		onChange: onChange,
		logger:   slog.Default(),
	}, nil
}

// SetLogger replaces the default logger.
func (w *FileWatcher) SetLogger(l *slog.Logger) {
	if l != nil {
		w.logger = l
	}
}

// Run delivers changes until ctx is cancelled. Watcher errors are logged
// and do not stop the loop.
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	debouncer := NewDebouncer(w.debounce, w.onChange)
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			op := opName(event.Op)
			if op == "" || !w.filter.Matches(event.Name) {
				continue
			}
			debouncer.Trigger(Change{Path: event.Name, Op: op})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
