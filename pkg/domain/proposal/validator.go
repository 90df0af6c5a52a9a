package proposal

import (
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// Rules applied by the validator in addition to the task constraints.
const (
	RuleUnknownTask scheduling.Rule = "unknown_task"
	RuleMalformed   scheduling.Rule = "malformed"
	RuleMembership  scheduling.Rule = "membership"
	RuleWindow      scheduling.Rule = "outside_window"
)

// Result splits the input into accepted and rejected proposals.
type Result struct {
	Accepted []Accepted
	Rejected []Rejection
}

// Err returns ErrNoValidProposals when nothing was accepted.
func (r Result) Err() error {
	if len(r.Accepted) == 0 {
		return ErrNoValidProposals
	}
	return nil
}

// Proposals returns the accepted proposals in input order.
func (r Result) Proposals() []Proposal {
	out := make([]Proposal, 0, len(r.Accepted))
	for _, a := range r.Accepted {
		out = append(out, a.Proposal)
	}
	return out
}

// RejectionsByRule counts rejections per rule.
func (r Result) RejectionsByRule() map[scheduling.Rule]int {
	counts := make(map[scheduling.Rule]int)
	for _, rej := range r.Rejected {
		counts[rej.Rule]++
	}
	return counts
}

// Option configures optional validator rules.
type Option func(*Validator)

// WithMembers drops proposals assigned to anyone outside the given set.
func WithMembers(userIDs ...string) Option {
	return func(v *Validator) {
		v.members = make(map[string]bool, len(userIDs))
		for _, id := range userIDs {
			v.members[id] = true
		}
	}
}

// WithWindow drops proposals dated outside the scheduling window.
func WithWindow(w scheduling.Window) Option {
	return func(v *Validator) {
		v.window = &w
	}
}

// Validator applies placement rules to generator output.
type Validator struct {
	members map[string]bool
	window  *scheduling.Window
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate keeps proposals whose task is known and whose placement satisfies
// every rule. Rejected proposals are reported with a reason and otherwise
// discarded; nothing is re-dated or reassigned.
func (v *Validator) Validate(proposals []Proposal, knownTasks map[string]scheduling.TaskDefinition) Result {
	var res Result
	for _, p := range proposals {
		accepted, rejection := v.check(p, knownTasks)
		if rejection != nil {
			res.Rejected = append(res.Rejected, *rejection)
			continue
		}
		res.Accepted = append(res.Accepted, accepted)
	}
	return res
}

func (v *Validator) check(p Proposal, knownTasks map[string]scheduling.TaskDefinition) (Accepted, *Rejection) {
	task, ok := knownTasks[p.TaskID]
	if !ok {
		return Accepted{}, &Rejection{Proposal: p, Rule: RuleUnknownTask, Reason: fmt.Sprintf("unknown task %q", p.TaskID)}
	}

	date, err := scheduling.ParseDate(p.ScheduledDate)
	if err != nil {
		return Accepted{}, &Rejection{Proposal: p, Rule: RuleMalformed, Reason: err.Error()}
	}
	start, err := scheduling.ParseTimeOfDay(p.StartTime)
	if err != nil {
		return Accepted{}, &Rejection{Proposal: p, Rule: RuleMalformed, Reason: err.Error()}
	}
	if p.AssignedUserID == "" {
		return Accepted{}, &Rejection{Proposal: p, Rule: RuleMalformed, Reason: "missing assignee"}
	}

	if v.window != nil && !v.window.Contains(date) {
		return Accepted{}, &Rejection{Proposal: p, Rule: RuleWindow,
			Reason: fmt.Sprintf("%s is outside %s..%s", date, v.window.SchedulingStart, v.window.FullWeekEnd)}
	}

	verdict := task.Check(scheduling.Placement{Date: date, Start: start, AssignedUserID: p.AssignedUserID})
	if !verdict.OK {
		return Accepted{}, &Rejection{Proposal: p, Rule: verdict.Rule, Reason: verdict.Reason}
	}

	if v.members != nil && !v.members[p.AssignedUserID] {
		return Accepted{}, &Rejection{Proposal: p, Rule: RuleMembership,
			Reason: fmt.Sprintf("%s is not a member of the family", p.AssignedUserID)}
	}

	return Accepted{
		Proposal: p,
		Task:     task,
		Date:     date,
		Start:    start,
		End:      task.EndFor(start),
	}, nil
}
