package wiring

import (
	"context"
	"path/filepath"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/config"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/watch"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

// ReloadConfig rereads config.yaml and applies what can change while
// running: messaging adapters and the log level. Database, AI and
// scheduler settings need a restart.
func (s *AppServices) ReloadConfig() error {
	cfg, err := config.Load(s.Workspace)
	if err != nil {
		return err
	}
	if err := s.Messaging.Reload(&cfg.Messaging); err != nil {
		return err
	}
	if err := s.Logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	s.Logger.Info("configuration reloaded", "adapters", len(s.Messaging.Adapters()))
	return nil
}

// WatchConfig reloads on every change to config.yaml until ctx ends.
func (s *AppServices) WatchConfig(ctx context.Context) error {
	filter := watch.NameFilter{Include: []string{storage.ConfigFile}, Exclude: watch.DefaultExcludes}
	w, err := watch.NewFileWatcher(s.Workspace.Dir(), filter, 0, func(c watch.Change) {
		if c.Op == "remove" {
			return
		}
		if err := s.ReloadConfig(); err != nil {
			s.Logger.Error("config reload failed", "path", filepath.Base(c.Path), "error", err)
		}
	})
	if err != nil {
		return err
	}
	w.SetLogger(s.Logger.Logger)
	return w.Run(ctx)
}
