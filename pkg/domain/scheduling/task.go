// Package scheduling holds the placement rules for recurring tasks: civil
// dates, weekdays, times of day and the constraint predicate that every
// scheduled occurrence must satisfy.
package scheduling

import (
	"fmt"
	"time"
)

type TaskType string

const (
	// TaskTypeResolution is a personal goal task. It is never transferable.
	TaskTypeResolution TaskType = "resolution"
	TaskTypeHousehold  TaskType = "household"
)

func (t TaskType) IsValid() bool {
	return t == TaskTypeResolution || t == TaskTypeHousehold
}

type SchedulingMode string

const (
	ModeFixed    SchedulingMode = "fixed"
	ModeFlexible SchedulingMode = "flexible"
)

func (m SchedulingMode) IsValid() bool {
	return m == ModeFixed || m == ModeFlexible
}

type FrequencyPeriod string

const (
	PeriodDay  FrequencyPeriod = "day"
	PeriodWeek FrequencyPeriod = "week"
)

const (
	PriorityHighest = 1
	PriorityLowest  = 4
)

// TaskDefinition is a recurring unit of work and its placement rules.
type TaskDefinition struct {
	ID              string          `json:"id" yaml:"id"`
	OwnerID         string          `json:"owner_id" yaml:"owner_id"`
	FamilyID        string          `json:"family_id,omitempty" yaml:"family_id,omitempty"`
	Name            string          `json:"name" yaml:"name"`
	Type            TaskType        `json:"type" yaml:"type"`
	DurationMin     int             `json:"duration_min" yaml:"duration_min"`
	Priority        int             `json:"priority" yaml:"priority"`
	Mode            SchedulingMode  `json:"scheduling_mode" yaml:"scheduling_mode"`
	FixedDays       Weekdays        `json:"fixed_days,omitempty" yaml:"fixed_days,omitempty"`
	FixedTime       *TimeOfDay      `json:"fixed_time,omitempty" yaml:"fixed_time,omitempty"`
	Frequency       int             `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	FrequencyPeriod FrequencyPeriod `json:"frequency_period,omitempty" yaml:"frequency_period,omitempty"`
	RequiredDays    Weekdays        `json:"required_days,omitempty" yaml:"required_days,omitempty"`
	PreferredDays   Weekdays        `json:"preferred_days,omitempty" yaml:"preferred_days,omitempty"`
	PreferredWindow *TimeWindow     `json:"preferred_time_window,omitempty" yaml:"preferred_time_window,omitempty"`
	MinDurationMin  int             `json:"min_duration_min,omitempty" yaml:"min_duration_min,omitempty"`
	MaxDurationMin  int             `json:"max_duration_min,omitempty" yaml:"max_duration_min,omitempty"`
	CreatedAt       time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the definition is internally consistent.
func (t TaskDefinition) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.OwnerID == "" {
		return fmt.Errorf("task %s: owner is required", t.ID)
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("task %s: invalid type %q", t.ID, t.Type)
	}
	if !t.Mode.IsValid() {
		return fmt.Errorf("task %s: invalid scheduling mode %q", t.ID, t.Mode)
	}
	if t.DurationMin <= 0 {
		return fmt.Errorf("task %s: duration must be positive", t.ID)
	}
	if t.Priority < PriorityHighest || t.Priority > PriorityLowest {
		return fmt.Errorf("task %s: priority must be between %d and %d", t.ID, PriorityHighest, PriorityLowest)
	}
	for _, d := range append(append(Weekdays{}, t.FixedDays...), t.RequiredDays...) {
		if !d.IsValid() {
			return fmt.Errorf("task %s: invalid weekday %d", t.ID, int(d))
		}
	}
	if t.FixedTime != nil && !t.FixedTime.IsValid() {
		return fmt.Errorf("task %s: invalid fixed time", t.ID)
	}
	if t.Mode == ModeFlexible {
		if t.Frequency < 0 {
			return fmt.Errorf("task %s: frequency cannot be negative", t.ID)
		}
		if t.Frequency > 0 && t.FrequencyPeriod != PeriodDay && t.FrequencyPeriod != PeriodWeek {
			return fmt.Errorf("task %s: invalid frequency period %q", t.ID, t.FrequencyPeriod)
		}
	}
	if t.MinDurationMin > 0 && t.MaxDurationMin > 0 && t.MinDurationMin > t.MaxDurationMin {
		return fmt.Errorf("task %s: min duration exceeds max duration", t.ID)
	}
	if t.PreferredWindow != nil {
		if err := t.PreferredWindow.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return nil
}

// AllowedDays returns the hard day restriction, or nil when any day is allowed.
func (t TaskDefinition) AllowedDays() Weekdays {
	if t.Mode == ModeFixed && len(t.FixedDays) > 0 {
		return t.FixedDays
	}
	if len(t.RequiredDays) > 0 {
		return t.RequiredDays
	}
	return nil
}

// WeeklyTarget is the number of placements the task wants in a full week.
// Fixed tasks want one placement per fixed day.
func (t TaskDefinition) WeeklyTarget() int {
	if t.Mode == ModeFixed {
		if len(t.FixedDays) > 0 {
			return len(t.FixedDays)
		}
		return 1
	}
	if t.Frequency <= 0 {
		return 1
	}
	if t.FrequencyPeriod == PeriodDay {
		days := 7
		if allowed := t.AllowedDays(); len(allowed) > 0 {
			days = len(allowed)
		}
		return t.Frequency * days
	}
	return t.Frequency
}

// EndFor returns the end time of an occurrence starting at start.
func (t TaskDefinition) EndFor(start TimeOfDay) TimeOfDay {
	return start.Add(t.DurationMin)
}
