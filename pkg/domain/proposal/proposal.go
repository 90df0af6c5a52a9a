// Package proposal filters externally generated schedule proposals against
// task placement rules. Failing proposals are dropped, never corrected.
package proposal

import (
	"errors"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// ErrNoValidProposals is reported when nothing survives validation.
var ErrNoValidProposals = errors.New("no valid tasks after validation")

// Proposal is one untrusted candidate occurrence from the generator.
// Dates and times stay as raw strings until validation parses them.
type Proposal struct {
	TaskID         string `json:"taskId"`
	AssignedUserID string `json:"assignedUserId"`
	ScheduledDate  string `json:"scheduledDate"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
}

// Generation is the full generator output for one week.
type Generation struct {
	Proposals []Proposal `json:"schedule"`
	Reasoning string     `json:"reasoning"`
}

// Accepted is a proposal that passed every rule, with its parsed placement.
// End is derived from the task duration; the proposal's end time is informational.
type Accepted struct {
	Proposal Proposal
	Task     scheduling.TaskDefinition
	Date     scheduling.Date
	Start    scheduling.TimeOfDay
	End      scheduling.TimeOfDay
}

// Rejection records why a proposal was dropped.
type Rejection struct {
	Proposal Proposal        `json:"proposal"`
	Rule     scheduling.Rule `json:"rule"`
	Reason   string          `json:"reason"`
}
