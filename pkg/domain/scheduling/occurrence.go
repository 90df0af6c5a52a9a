package scheduling

import "time"

type OccurrenceStatus string

const (
	OccurrencePending   OccurrenceStatus = "pending"
	OccurrenceCompleted OccurrenceStatus = "completed"
	OccurrenceSkipped   OccurrenceStatus = "skipped"
)

func (s OccurrenceStatus) IsValid() bool {
	switch s {
	case OccurrencePending, OccurrenceCompleted, OccurrenceSkipped:
		return true
	}
	return false
}

// CanTransitionTo allows pending occurrences to be completed or skipped and
// a skipped one to be completed after all.
func (s OccurrenceStatus) CanTransitionTo(target OccurrenceStatus) bool {
	switch s {
	case OccurrencePending:
		return target == OccurrenceCompleted || target == OccurrenceSkipped
	case OccurrenceSkipped:
		return target == OccurrenceCompleted
	}
	return false
}

// CountsTowardFrequency is false for skipped occurrences.
func (s OccurrenceStatus) CountsTowardFrequency() bool {
	return s != OccurrenceSkipped
}

// ScheduledOccurrence is one concrete placement of a task.
type ScheduledOccurrence struct {
	ID             string           `json:"id"`
	TaskID         string           `json:"task_id"`
	FamilyID       string           `json:"family_id,omitempty"`
	AssignedUserID string           `json:"assigned_user_id"`
	Date           Date             `json:"date"`
	Start          TimeOfDay        `json:"start_time"`
	End            TimeOfDay        `json:"end_time"`
	Status         OccurrenceStatus `json:"status"`
	ManuallyMoved  bool             `json:"manually_moved"`
	PlanItemID     string           `json:"plan_item_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// DurationMin is the scheduled length of the occurrence.
func (o ScheduledOccurrence) DurationMin() int {
	return int(o.End - o.Start)
}
