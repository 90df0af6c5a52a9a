package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// AnalyticsService builds the reschedule and workload reports.
type AnalyticsService struct {
	store Store
	cfg   serviceConfig
}

func NewAnalyticsService(store Store, opts ...Option) *AnalyticsService {
	return &AnalyticsService{store: store, cfg: newServiceConfig(opts)}
}

// ConflictReport groups the family's reschedule conflicts by moved task over
// the trailing window. weeks <= 0 uses the configured default.
func (s *AnalyticsService) ConflictReport(ctx context.Context, familyID string, weeks int) ([]analytics.TaskConflicts, error) {
	if weeks <= 0 {
		weeks = s.cfg.conflictWeeks
	}
	fam, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	today := scheduling.DateOf(s.cfg.now(), fam.Location(s.cfg.location))
	conflicts, err := s.store.ListConflicts(ctx, familyID, analytics.ConflictWindowStart(today, weeks))
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return analytics.ConflictReport(conflicts, today, weeks), nil
}

// WeekReport scores workload fairness for the week containing weekStart
// (nil for the current week). Before a week is approved its plan items are
// scored instead of occurrences.
func (s *AnalyticsService) WeekReport(ctx context.Context, familyID string, weekStart *scheduling.Date) (*analytics.WeekReport, error) {
	fam, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	monday := scheduling.DateOf(s.cfg.now(), fam.Location(s.cfg.location)).Monday()
	if weekStart != nil && !weekStart.IsZero() {
		monday = weekStart.Monday()
	}

	occurrences, err := s.store.ListFamilyOccurrences(ctx, familyID, monday, monday.AddDays(6))
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	if len(occurrences) == 0 {
		occurrences, err = s.planPreview(ctx, familyID, monday)
		if err != nil {
			return nil, err
		}
	}
	report := analytics.NewWeekReport(monday, occurrences, members.IDs())
	return &report, nil
}

func (s *AnalyticsService) planPreview(ctx context.Context, familyID string, monday scheduling.Date) ([]scheduling.ScheduledOccurrence, error) {
	plan, err := s.store.FindPlanByWeek(ctx, familyID, monday)
	if errors.Is(err, planning.ErrPlanNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	now := s.cfg.now()
	out := make([]scheduling.ScheduledOccurrence, 0, len(items))
	for _, it := range items {
		out = append(out, it.Occurrence(it.ID, now))
	}
	return out, nil
}
