package scheduling

import (
	"errors"
	"time"
)

// ErrWeekElapsed is returned when the requested week lies entirely in the past.
var ErrWeekElapsed = errors.New("requested week has already ended")

// Window describes the week being planned and the first day that may still
// receive new placements.
type Window struct {
	FullWeekStart   Date `json:"full_week_start"`
	FullWeekEnd     Date `json:"full_week_end"`
	SchedulingStart Date `json:"scheduling_start"`
}

// ResolveSchedulingWindow anchors planning to a Monday-starting week.
// Without a requested week the current week is used. A requested date that is
// not a Monday is normalized to the Monday of its week. When today falls inside
// the week, scheduling starts today; future weeks schedule from their Monday.
func ResolveSchedulingWindow(now time.Time, loc *time.Location, requestedWeekStart *Date) (Window, error) {
	today := DateOf(now, loc)

	weekStart := today.Monday()
	if requestedWeekStart != nil && !requestedWeekStart.IsZero() {
		weekStart = requestedWeekStart.Monday()
	}
	weekEnd := weekStart.AddDays(6)

	if today.After(weekEnd) {
		return Window{}, ErrWeekElapsed
	}

	start := weekStart
	if today.After(weekStart) {
		start = today
	}

	return Window{
		FullWeekStart:   weekStart,
		FullWeekEnd:     weekEnd,
		SchedulingStart: start,
	}, nil
}

// Contains reports whether d can receive new placements.
func (w Window) Contains(d Date) bool {
	return d.Between(w.SchedulingStart, w.FullWeekEnd)
}

// RemainingDays is the number of schedulable days, today included.
func (w Window) RemainingDays() int {
	return w.SchedulingStart.DaysUntil(w.FullWeekEnd) + 1
}
