// Package analytics reports reschedule conflicts and workload balance for
// family weeks.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// DefaultConflictWeeks is the trailing window used by ConflictReport.
const DefaultConflictWeeks = 4

// ResolutionType describes how a manual reschedule affected other work.
type ResolutionType string

const (
	ResolutionDisplaced   ResolutionType = "displaced"
	ResolutionShortened   ResolutionType = "shortened"
	ResolutionOverlapping ResolutionType = "overlapping"
)

func (r ResolutionType) IsValid() bool {
	switch r {
	case ResolutionDisplaced, ResolutionShortened, ResolutionOverlapping:
		return true
	}
	return false
}

// ParseResolutionType parses a resolution type name.
func ParseResolutionType(s string) (ResolutionType, error) {
	r := ResolutionType(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid resolution type: %s", s)
	}
	return r, nil
}

// ScheduleConflict is an append-only record of one manual reschedule.
type ScheduleConflict struct {
	ID              string          `json:"id"`
	FamilyID        string          `json:"family_id"`
	MovedTaskID     string          `json:"moved_task_id"`
	DisplacedTaskID string          `json:"displaced_task_id,omitempty"`
	WeekStart       scheduling.Date `json:"week_start"`
	ResolutionType  ResolutionType  `json:"resolution_type"`
	RecordedBy      string          `json:"recorded_by"`
	RecordedAt      time.Time       `json:"recorded_at"`
}

// ConflictRepository appends and queries schedule conflicts.
type ConflictRepository interface {
	AppendConflict(ctx context.Context, c ScheduleConflict) error
	// ListConflicts returns conflicts whose week starts on or after since,
	// in recording order.
	ListConflicts(ctx context.Context, familyID string, since scheduling.Date) ([]ScheduleConflict, error)
}

// WeekCount is the number of moves recorded in one week.
type WeekCount struct {
	WeekStart scheduling.Date `json:"week_start"`
	Moves     int             `json:"moves"`
}

// TaskConflicts aggregates the moves of one task.
type TaskConflicts struct {
	TaskID     string                 `json:"task_id"`
	TotalMoves int                    `json:"total_moves"`
	ByWeek     []WeekCount            `json:"by_week"`
	ByType     map[ResolutionType]int `json:"by_type"`
}

// ConflictWindowStart returns the Monday that opens a trailing window of
// weeks ending with the week containing today.
func ConflictWindowStart(today scheduling.Date, weeks int) scheduling.Date {
	if weeks <= 0 {
		weeks = DefaultConflictWeeks
	}
	return today.Monday().AddDays(-7 * (weeks - 1))
}

// ConflictReport groups conflicts inside the trailing window by moved task,
// most-moved first. Tasks with equal totals keep first-seen order.
func ConflictReport(conflicts []ScheduleConflict, today scheduling.Date, weeks int) []TaskConflicts {
	since := ConflictWindowStart(today, weeks)
	until := today.Monday()

	index := make(map[string]int)
	var out []TaskConflicts
	for _, c := range conflicts {
		if c.WeekStart.Before(since) || c.WeekStart.After(until) {
			continue
		}
		i, ok := index[c.MovedTaskID]
		if !ok {
			i = len(out)
			index[c.MovedTaskID] = i
			out = append(out, TaskConflicts{TaskID: c.MovedTaskID, ByType: make(map[ResolutionType]int)})
		}
		tc := &out[i]
		tc.TotalMoves++
		tc.ByType[c.ResolutionType]++
		tc.addWeek(c.WeekStart)
	}

	for i := range out {
		weeks := out[i].ByWeek
		sort.Slice(weeks, func(a, b int) bool { return weeks[a].WeekStart.Before(weeks[b].WeekStart) })
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].TotalMoves > out[b].TotalMoves })
	return out
}

func (tc *TaskConflicts) addWeek(week scheduling.Date) {
	for i := range tc.ByWeek {
		if tc.ByWeek[i].WeekStart == week {
			tc.ByWeek[i].Moves++
			return
		}
	}
	tc.ByWeek = append(tc.ByWeek, WeekCount{WeekStart: week, Moves: 1})
}
