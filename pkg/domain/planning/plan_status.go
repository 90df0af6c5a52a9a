package planning

import (
	"encoding/json"
	"fmt"
)

// PlanStatus is the lifecycle position of a weekly plan.
type PlanStatus string

const (
	StatusDraft           PlanStatus = "draft"
	StatusPendingApproval PlanStatus = "pending_approval"
	StatusApproved        PlanStatus = "approved"
	StatusRejected        PlanStatus = "rejected"
	StatusExpired         PlanStatus = "expired"
)

// Lifecycle events.
const (
	EventSubmit  = "submit"
	EventApprove = "approve"
	EventReject  = "reject"
	EventExpire  = "expire"
	EventEdit    = "edit"
)

// planTransitions maps currentStatus -> event -> targetStatus.
var planTransitions = map[PlanStatus]map[string]PlanStatus{
	StatusDraft: {
		EventSubmit: StatusPendingApproval,
		EventExpire: StatusExpired,
		EventEdit:   StatusDraft,
	},
	StatusPendingApproval: {
		EventApprove: StatusApproved,
		EventReject:  StatusRejected,
		EventExpire:  StatusExpired,
		EventEdit:    StatusDraft,
	},
}

// AllPlanStatuses returns all valid plan statuses.
func AllPlanStatuses() []PlanStatus {
	return []PlanStatus{
		StatusDraft,
		StatusPendingApproval,
		StatusApproved,
		StatusRejected,
		StatusExpired,
	}
}

func (s PlanStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

func (s PlanStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the plan can no longer change.
func (s PlanStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// IsEditable reports whether items may be edited or deleted.
func (s PlanStatus) IsEditable() bool {
	return s == StatusDraft || s == StatusPendingApproval
}

// CanTransitionWith returns true if the event is defined for this status.
func (s PlanStatus) CanTransitionWith(event string) bool {
	_, ok := planTransitions[s][event]
	return ok
}

// TargetFor returns the status the event leads to, if any.
func (s PlanStatus) TargetFor(event string) (PlanStatus, bool) {
	target, ok := planTransitions[s][event]
	return target, ok
}

// CanTransitionTo returns true if some event moves this status to target.
func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	for _, t := range planTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ValidEvents returns the events accepted in this status.
func (s PlanStatus) ValidEvents() []string {
	var events []string
	for _, e := range []string{EventSubmit, EventApprove, EventReject, EventExpire, EventEdit} {
		if s.CanTransitionWith(e) {
			events = append(events, e)
		}
	}
	return events
}

func (s PlanStatus) DisplayName() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPendingApproval:
		return "Pending approval"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusExpired:
		return "Expired"
	default:
		return string(s)
	}
}

// ParsePlanStatus parses a string into a PlanStatus.
func ParsePlanStatus(str string) (PlanStatus, error) {
	status := PlanStatus(str)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid plan status: %s", str)
	}
	return status, nil
}

func (s PlanStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s *PlanStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParsePlanStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
