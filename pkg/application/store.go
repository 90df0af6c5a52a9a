// Package application orchestrates the scheduling engine: it loads state
// from storage, runs the domain rules and persists the outcome.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

// Repositories is every storage view the services use.
type Repositories interface {
	family.Repository
	scheduling.TaskRepository
	scheduling.OccurrenceRepository
	planning.PlanRepository
	planning.ItemRepository
	planning.ApprovalRepository
	analytics.ConflictRepository
}

// Store adds transactions to Repositories. Inside fn only the passed
// Repositories may be used.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(tx Repositories) error) error
}

type sqlStore struct {
	*storage.SQLStore
}

// NewSQLStore adapts a storage.SQLStore to Store.
func NewSQLStore(s *storage.SQLStore) Store {
	return sqlStore{SQLStore: s}
}

func (s sqlStore) InTx(ctx context.Context, fn func(tx Repositories) error) error {
	return s.SQLStore.InTx(ctx, func(tx *storage.SQLStore) error {
		return fn(tx)
	})
}

// Recorder receives engine metrics. The default discards them.
type Recorder interface {
	GenerationCompleted(familyID string, accepted int, rejectedByRule map[string]int)
	GenerationFailed(familyID, reason string)
	PlanTransition(from, to planning.PlanStatus)
	EditOutcome(outcome EditOutcome)
}

type noopRecorder struct{}

func (noopRecorder) GenerationCompleted(string, int, map[string]int) {}
func (noopRecorder) GenerationFailed(string, string) {}
func (noopRecorder) PlanTransition(planning.PlanStatus, planning.PlanStatus) {}
func (noopRecorder) EditOutcome(EditOutcome) {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.DomainEvent) {}

// Option configures a service.
type Option func(*serviceConfig)

type serviceConfig struct {
	logger        *slog.Logger
	now           func() time.Time
	location      *time.Location
	publisher     events.Publisher
	metrics       Recorder
	planExpiry    time.Duration
	conflictWeeks int
	newID         func() string
}

func newServiceConfig(opts []Option) serviceConfig {
	cfg := serviceConfig{
		logger:        slog.Default(),
		now:           time.Now,
		location:      time.Local,
		publisher:     noopPublisher{},
		metrics:       noopRecorder{},
		planExpiry:    planning.DefaultExpiry,
		conflictWeeks: analytics.DefaultConflictWeeks,
		newID:         newID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *serviceConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the zone used for families without a valid timezone.
func WithLocation(loc *time.Location) Option {
	return func(c *serviceConfig) {
		if loc != nil {
			c.location = loc
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(c *serviceConfig) {
		if p != nil {
			c.publisher = p
		}
	}
}

func WithMetrics(r Recorder) Option {
	return func(c *serviceConfig) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithPlanExpiry sets how long a generated plan stays open.
func WithPlanExpiry(ttl time.Duration) Option {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.planExpiry = ttl
		}
	}
}

func WithConflictWeeks(weeks int) Option {
	return func(c *serviceConfig) {
		if weeks > 0 {
			c.conflictWeeks = weeks
		}
	}
}

// WithIDGenerator replaces random IDs, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(c *serviceConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}
