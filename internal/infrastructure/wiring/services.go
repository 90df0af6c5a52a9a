// Package wiring assembles the application services, storage and event
// handlers for one workspace.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/config"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/logging"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/messaging"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/metrics"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/stream"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	domainai "github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

// DeadLetterFile is the messaging dead-letter log inside the workspace.
const DeadLetterFile = "deadletters.jsonl"

// timelineCapacity bounds the in-memory activity feed.
const timelineCapacity = 512

// ErrNotInitialized is returned when the workspace directory is missing.
var ErrNotInitialized = errors.New("workspace not initialized")

// Options tune Build. The zero value builds from the current directory
// with the configured generator and a file logger.
type Options struct {
	Root string
	// Generator replaces the configured proposal generator.
	Generator application.ProposalGenerator
	// Notifier receives plan lifecycle notifications when set.
	Notifier events.Notifier
	// LogStderr is where debug output is mirrored; nil means os.Stderr.
	LogStderr io.Writer
	Debug     bool
}

// AppServices exposes the application layer services wired together with a
// workspace.
type AppServices struct {
	Workspace *storage.Workspace
	Config    *config.Config
	Logger    *logging.Logger
	Secrets   *config.SecretResolver

	Store      *storage.SQLStore
	Dispatcher *events.EventDispatcher
	Timeline   *events.ActivityTimeline
	Audit      *application.AuditRecorder
	Usage      *application.UsageService
	Metrics    *metrics.Recorder
	Messaging  *messaging.Registry
	Stream     *stream.Hub

	// Provider is nil when proposals come from a file.
	Provider  domainai.Provider
	Generator application.ProposalGenerator
	// ProviderErr records why the configured provider could not be built
	// and the default was used instead.
	ProviderErr error

	Families    *application.FamilyService
	Tasks       *application.TaskService
	Planning    *application.PlanningService
	Plans       *application.PlanService
	Items       *application.ItemEditor
	Occurrences *application.OccurrenceService
	Analytics   *application.AnalyticsService
}

// Build constructs the services for the workspace at opts.Root. Callers
// must Close the result.
func Build(ctx context.Context, opts Options) (*AppServices, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	ws := storage.NewWorkspace(root)
	if !ws.IsInitialized() {
		return nil, fmt.Errorf("%w: run `resolution init` in %s", ErrNotInitialized, root)
	}

	cfg, err := config.Load(ws)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		File:   ws.LogPath(),
		Level:  cfg.Log.Level,
		Debug:  opts.Debug || cfg.Log.Debug,
		Stderr: opts.LogStderr,
	})
	if err != nil {
		return nil, err
	}

	storeOpts := cfg.StorageOptions(ws)
	storeOpts.Logger = logger.Logger
	raw, err := storage.Open(ctx, storeOpts)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	s := &AppServices{
		Workspace:  ws,
		Config:     cfg,
		Logger:     logger,
		Secrets:    config.NewSecretResolver(),
		Store:      raw,
		Dispatcher: events.NewEventDispatcher(logger.Logger),
		Timeline:   events.NewActivityTimeline(timelineCapacity),
		Audit:      application.NewAuditRecorder(ws),
		Usage:      application.NewUsageService(ws),
		Metrics:    metrics.New(),
	}

	registry, err := messaging.NewRegistry(&cfg.Messaging,
		messaging.WithLogger(logger.Logger),
		messaging.WithSecretLookup(s.Secrets.Get),
		messaging.WithDeadLetters(messaging.NewDeadLetterStore(filepath.Join(ws.Dir(), DeadLetterFile))),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("configure messaging: %w", err)
	}
	s.Messaging = registry
	s.Stream = stream.NewHub(s.Timeline, logger.Logger)

	s.registerHandlers(opts.Notifier)

	if err := s.buildGenerator(opts.Generator); err != nil {
		_ = s.Close()
		return nil, err
	}

	svcOpts := []application.Option{
		application.WithLogger(logger.Logger),
		application.WithPublisher(s.Dispatcher),
		application.WithMetrics(s.Metrics),
		application.WithPlanExpiry(cfg.PlanExpiry()),
		application.WithConflictWeeks(cfg.Planning.ConflictWeeks),
	}
	if loc != nil {
		svcOpts = append(svcOpts, application.WithLocation(loc))
	}

	store := application.NewSQLStore(raw)
	s.Families = application.NewFamilyService(store, svcOpts...)
	s.Tasks = application.NewTaskService(store, svcOpts...)
	s.Planning = application.NewPlanningService(store, s.Generator, svcOpts...)
	s.Plans = application.NewPlanService(store, svcOpts...)
	s.Items = application.NewItemEditor(store, svcOpts...)
	s.Occurrences = application.NewOccurrenceService(store, svcOpts...)
	s.Analytics = application.NewAnalyticsService(store, svcOpts...)
	return s, nil
}

func (s *AppServices) registerHandlers(notifier events.Notifier) {
	d := s.Dispatcher
	d.Register(events.NewLoggingHandler(s.Logger.Logger).Registration())
	s.Audit.Register(d)
	d.Register(s.Timeline.Registration())
	d.Register(s.Metrics.Registration())
	d.Register(s.Messaging.Registration())
	d.Register(s.Stream.Registration())
	if notifier != nil {
		d.Register(events.NewPlanNotificationHandler(notifier, s.Logger.Logger).Registration())
	}
}

// Close waits for in-flight event handlers and releases every resource.
func (s *AppServices) Close() error {
	if s.Dispatcher != nil {
		s.Dispatcher.Wait()
	}
	var errs []error
	if s.Messaging != nil {
		errs = append(errs, s.Messaging.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.Logger != nil {
		errs = append(errs, s.Logger.Close())
	}
	return errors.Join(errs...)
}
