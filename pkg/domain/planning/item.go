package planning

import (
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// Editable item fields as recorded in edit history.
const (
	FieldAssignedUser = "assigned_user_id"
	FieldDate         = "date"
	FieldStart        = "start_time"
	FieldEnd          = "end_time"
	FieldReasoning    = "reasoning"
)

// FieldChange is one field's before and after value.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// EditEntry summarizes one edit; all fields changed together share an entry.
type EditEntry struct {
	UserID    string        `json:"user_id"`
	Timestamp time.Time     `json:"timestamp"`
	Changes   []FieldChange `json:"changes"`
}

// WeeklyPlanItem is one occurrence inside a weekly plan.
type WeeklyPlanItem struct {
	ID             string               `json:"id" yaml:"id"`
	PlanID         string               `json:"plan_id" yaml:"plan_id"`
	TaskID         string               `json:"task_id" yaml:"task_id"`
	AssignedUserID string               `json:"assigned_user_id" yaml:"assigned_user_id"`
	Date           scheduling.Date      `json:"date" yaml:"date"`
	Start          scheduling.TimeOfDay `json:"start_time" yaml:"start_time"`
	End            scheduling.TimeOfDay `json:"end_time" yaml:"end_time"`
	Reasoning      string               `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Version        int                  `json:"version" yaml:"version"`
	LastEditedBy   string               `json:"last_edited_by,omitempty" yaml:"last_edited_by,omitempty"`
	LastEditedAt   *time.Time           `json:"last_edited_at,omitempty" yaml:"last_edited_at,omitempty"`
	EditHistory    []EditEntry          `json:"edit_history,omitempty" yaml:"edit_history,omitempty"`
	CreatedAt      time.Time            `json:"created_at" yaml:"created_at"`
}

// ItemChanges carries the requested new values; nil fields are untouched.
type ItemChanges struct {
	AssignedUserID *string               `json:"assigned_user_id,omitempty"`
	Date           *scheduling.Date      `json:"date,omitempty"`
	Start          *scheduling.TimeOfDay `json:"start_time,omitempty"`
	Reasoning      *string               `json:"reasoning,omitempty"`
}

// IsEmpty reports whether no field was requested.
func (c ItemChanges) IsEmpty() bool {
	return c.AssignedUserID == nil && c.Date == nil && c.Start == nil && c.Reasoning == nil
}

// Diff returns the fields that actually differ from the item's current
// values. A start change also reports the recomputed end time.
func (it *WeeklyPlanItem) Diff(c ItemChanges, durationMin int) []FieldChange {
	var out []FieldChange
	if c.AssignedUserID != nil && *c.AssignedUserID != it.AssignedUserID {
		out = append(out, FieldChange{Field: FieldAssignedUser, From: it.AssignedUserID, To: *c.AssignedUserID})
	}
	if c.Date != nil && *c.Date != it.Date {
		out = append(out, FieldChange{Field: FieldDate, From: it.Date.String(), To: c.Date.String()})
	}
	if c.Start != nil && *c.Start != it.Start {
		out = append(out, FieldChange{Field: FieldStart, From: it.Start.String(), To: c.Start.String()})
		if end := c.Start.Add(durationMin); end != it.End {
			out = append(out, FieldChange{Field: FieldEnd, From: it.End.String(), To: end.String()})
		}
	}
	if c.Reasoning != nil && *c.Reasoning != it.Reasoning {
		out = append(out, FieldChange{Field: FieldReasoning, From: it.Reasoning, To: *c.Reasoning})
	}
	return out
}

// WithChanges returns a copy of the item with the changes applied, the
// version bumped and one history entry appended. Callers pass a non-empty
// diff from Diff.
func (it *WeeklyPlanItem) WithChanges(c ItemChanges, durationMin int, changes []FieldChange, editorID string, now time.Time) *WeeklyPlanItem {
	next := *it
	next.EditHistory = append(append([]EditEntry(nil), it.EditHistory...), EditEntry{
		UserID:    editorID,
		Timestamp: now,
		Changes:   changes,
	})
	if c.AssignedUserID != nil {
		next.AssignedUserID = *c.AssignedUserID
	}
	if c.Date != nil {
		next.Date = *c.Date
	}
	if c.Start != nil {
		next.Start = *c.Start
		next.End = c.Start.Add(durationMin)
	}
	if c.Reasoning != nil {
		next.Reasoning = *c.Reasoning
	}
	next.Version = it.Version + 1
	next.LastEditedBy = editorID
	next.LastEditedAt = &now
	return &next
}

// Occurrence converts an approved item into a scheduled occurrence.
func (it *WeeklyPlanItem) Occurrence(id string, now time.Time) scheduling.ScheduledOccurrence {
	return scheduling.ScheduledOccurrence{
		ID:             id,
		TaskID:         it.TaskID,
		AssignedUserID: it.AssignedUserID,
		Date:           it.Date,
		Start:          it.Start,
		End:            it.End,
		Status:         scheduling.OccurrencePending,
		ManuallyMoved:  it.Version > 0,
		PlanItemID:     it.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
