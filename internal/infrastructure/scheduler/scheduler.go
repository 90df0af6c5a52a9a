// Package scheduler runs the periodic jobs of the serve command: the plan
// expiry sweep and weekly generation for families that opted in.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// Actor is recorded as the requester of scheduled generations.
const Actor = "scheduler"

type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type WeekGenerator interface {
	GenerateWeek(ctx context.Context, req application.GenerateRequest) (*application.GenerateResult, error)
}

type FamilyLister interface {
	ListFamilies(ctx context.Context) ([]*family.Family, error)
}

type WeekFinder interface {
	FindWeek(ctx context.Context, familyID string, weekStart scheduling.Date) (*application.PlanDetail, error)
}

// Deps are the services the jobs call.
type Deps struct {
	Sweeper   ExpirySweeper
	Generator WeekGenerator
	Families  FamilyLister
	Plans     WeekFinder
}

// Specs are cron expressions with a seconds field. Empty disables a job.
type Specs struct {
	ExpirySweep  string
	AutoGenerate string
}

type Scheduler struct {
	cron   *cron.Cron
	deps   Deps
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// New creates a scheduler evaluating specs in loc (nil means local time).
func New(deps Deps, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		deps:   deps,
		loc:    loc,
		now:    time.Now,
		logger: logger.With("component", "scheduler"),
	}
}

// Schedule registers the jobs of specs. Jobs run with ctx.
func (s *Scheduler) Schedule(ctx context.Context, specs Specs) error {
	if specs.ExpirySweep != "" {
		if _, err := s.cron.AddFunc(specs.ExpirySweep, func() { _, _ = s.SweepExpired(ctx) }); err != nil {
			return fmt.Errorf("invalid expiry sweep spec %q: %w", specs.ExpirySweep, err)
		}
	}
	if specs.AutoGenerate != "" {
		if _, err := s.cron.AddFunc(specs.AutoGenerate, func() { _, _ = s.GenerateUpcoming(ctx) }); err != nil {
			return fmt.Errorf("invalid auto generate spec %q: %w", specs.AutoGenerate, err)
		}
	}
	return nil
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepExpired expires every pending plan past its deadline.
func (s *Scheduler) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.deps.Sweeper.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return n, err
	}
	if n > 0 {
		s.logger.Info("expired pending plans", "count", n)
	}
	return n, nil
}

// GenerateUpcoming drafts next week's plan for every family with
// auto-generation enabled that has no plan for that week yet. Failures of
// one family do not stop the others.
func (s *Scheduler) GenerateUpcoming(ctx context.Context) (int, error) {
	families, err := s.deps.Families.ListFamilies(ctx)
	if err != nil {
		s.logger.Error("list families failed", "error", err)
		return 0, err
	}

	created := 0
	var errs []error
	for _, fam := range families {
		if !fam.AutoGenerate {
			continue
		}
		week := scheduling.DateOf(s.now(), fam.Location(s.loc)).Monday().AddDays(7)
		log := s.logger.With("family", fam.ID, "week", week.String())

		_, err := s.deps.Plans.FindWeek(ctx, fam.ID, week)
		if err == nil {
			log.Debug("plan already exists, skipping")
			continue
		}
		if !errors.Is(err, planning.ErrPlanNotFound) {
			errs = append(errs, fmt.Errorf("family %s: %w", fam.ID, err))
			continue
		}

		res, err := s.deps.Generator.GenerateWeek(ctx, application.GenerateRequest{
			FamilyID:    fam.ID,
			WeekStart:   &week,
			RequestedBy: Actor,
		})
		if err != nil {
			log.Warn("scheduled generation failed", "error", err)
			errs = append(errs, fmt.Errorf("family %s: %w", fam.ID, err))
			continue
		}
		log.Info("scheduled plan generated", "plan_id", res.Plan.ID)
		created++
	}
	return created, errors.Join(errs...)
}
