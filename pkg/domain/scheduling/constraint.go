package scheduling

import (
	"errors"
	"fmt"
)

// FixedTimeToleranceMin is the inclusive slack around a fixed start time.
const FixedTimeToleranceMin = 15

// Rule identifies the constraint that rejected a placement.
type Rule string

const (
	RuleNone           Rule = ""
	RuleDayRestriction Rule = "day_restriction"
	RuleFixedTime      Rule = "fixed_time"
	RuleOwnership      Rule = "ownership"
	RuleWeekBounds     Rule = "week_bounds"
)

// ErrConstraintViolation is the category of every ConstraintError.
var ErrConstraintViolation = errors.New("scheduling constraint violated")

// ConstraintError is a rejected placement of an existing occurrence or item.
type ConstraintError struct {
	TaskID string
	Rule   Rule
	Reason string
}

func (e *ConstraintError) Error() string { return e.Reason }

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// Placement is a candidate position for one occurrence of a task.
type Placement struct {
	Date           Date
	Start          TimeOfDay
	AssignedUserID string
}

// Verdict is the outcome of checking a placement.
type Verdict struct {
	OK     bool
	Rule   Rule
	Reason string
}

func accept() Verdict { return Verdict{OK: true} }

func reject(rule Rule, format string, args ...any) Verdict {
	return Verdict{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// Check evaluates the placement rules in order; the first failure wins.
func (t TaskDefinition) Check(p Placement) Verdict {
	day := p.Date.Weekday()
	if t.Mode == ModeFixed && len(t.FixedDays) > 0 {
		if !t.FixedDays.Contains(day) {
			return reject(RuleDayRestriction, "task %q is fixed to %s; %s is a %s", t.Name, t.FixedDays, p.Date, day)
		}
	} else if len(t.RequiredDays) > 0 {
		if !t.RequiredDays.Contains(day) {
			return reject(RuleDayRestriction, "task %q is restricted to %s; %s is a %s", t.Name, t.RequiredDays, p.Date, day)
		}
	}

	if t.Mode == ModeFixed && t.FixedTime != nil {
		if diff := p.Start.DistanceTo(*t.FixedTime); diff > FixedTimeToleranceMin {
			return reject(RuleFixedTime, "task %q is fixed at %s; %s is %d minutes off (tolerance %d)",
				t.Name, *t.FixedTime, p.Start, diff, FixedTimeToleranceMin)
		}
	}

	if t.Type == TaskTypeResolution && p.AssignedUserID != t.OwnerID {
		return reject(RuleOwnership, "resolution task %q belongs to %s and cannot be assigned to %s",
			t.Name, t.OwnerID, p.AssignedUserID)
	}

	return accept()
}

// Err returns nil for an accepted verdict and a ConstraintError otherwise.
func (v Verdict) Err(taskID string) error {
	if v.OK {
		return nil
	}
	return &ConstraintError{TaskID: taskID, Rule: v.Rule, Reason: v.Reason}
}

// CheckWithin is Check preceded by an inclusive date bound.
func (t TaskDefinition) CheckWithin(p Placement, from, to Date) Verdict {
	if !p.Date.Between(from, to) {
		return reject(RuleWeekBounds, "%s is outside %s..%s", p.Date, from, to)
	}
	return t.Check(p)
}

// Satisfies is a boolean shorthand for Check.
func (t TaskDefinition) Satisfies(p Placement) (bool, string) {
	v := t.Check(p)
	return v.OK, v.Reason
}
