package planning

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit integration. They must stay untyped string
// constants for statekit.StateID and match the PlanStatus values.
const (
	StateDraft           = "draft"
	StatePendingApproval = "pending_approval"
	StateApproved        = "approved"
	StateRejected        = "rejected"
	StateExpired         = "expired"
)

func init() {
	stateMap := map[string]PlanStatus{
		StateDraft:           StatusDraft,
		StatePendingApproval: StatusPendingApproval,
		StateApproved:        StatusApproved,
		StateRejected:        StatusRejected,
		StateExpired:         StatusExpired,
	}
	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match PlanStatus %q - constants are out of sync", fsmState, status))
		}
	}
}

// lifecycleContext is the guard input captured when the machine is built.
type lifecycleContext struct {
	PlanID      string
	AllApproved bool
	AnyRejected bool
	Expired     bool
}

func newPlanMachine(plan *WeeklyPlan, ctx lifecycleContext) (*statekit.Interpreter[lifecycleContext], error) {
	builder := statekit.NewMachine[lifecycleContext]("weekly-plan").
		WithInitial(statekit.StateID(plan.Status)).
		WithContext(ctx).
		WithGuard("allApproved", func(c lifecycleContext, e statekit.Event) bool {
			return c.AllApproved && !c.Expired
		}).
		WithGuard("anyRejected", func(c lifecycleContext, e statekit.Event) bool {
			return c.AnyRejected && !c.Expired
		}).
		WithGuard("pastExpiry", func(c lifecycleContext, e statekit.Event) bool {
			return c.Expired
		})

	builder.State(StateDraft).
		On(EventSubmit).Target(StatePendingApproval).
		On(EventExpire).Target(StateExpired).Guard("pastExpiry").
		On(EventEdit).Target(StateDraft).
		Done()

	builder.State(StatePendingApproval).
		On(EventApprove).Target(StateApproved).Guard("allApproved").
		On(EventReject).Target(StateRejected).Guard("anyRejected").
		On(EventExpire).Target(StateExpired).Guard("pastExpiry").
		On(EventEdit).Target(StateDraft).
		Done()

	builder.State(StateApproved).Done()
	builder.State(StateRejected).Done()
	builder.State(StateExpired).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build plan state machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return interpreter, nil
}

// PlanLifecycle couples a plan's status with its approval records. Every
// status change and approval reset goes through it.
type PlanLifecycle struct {
	Plan      *WeeklyPlan
	Approvals []*WeeklyPlanApproval
}

func NewPlanLifecycle(plan *WeeklyPlan, approvals []*WeeklyPlanApproval) *PlanLifecycle {
	return &PlanLifecycle{Plan: plan, Approvals: approvals}
}

func (l *PlanLifecycle) context(now time.Time) lifecycleContext {
	sum := Summarize(l.Approvals)
	return lifecycleContext{
		PlanID:      l.Plan.ID,
		AllApproved: sum.Total() > 0 && sum.Approved == sum.Total(),
		AnyRejected: sum.Rejected > 0,
		Expired:     l.Plan.IsExpiredAt(now),
	}
}

// fire sends event through the machine and applies the resulting status.
// It reports whether the guard allowed the transition.
func (l *PlanLifecycle) fire(event string, now time.Time) (bool, error) {
	current := l.Plan.Status
	target, ok := current.TargetFor(event)
	if !ok {
		return false, violation(l.Plan, ruleFor(current), "the action '%s' is not allowed while the plan is %s", event, current.DisplayName())
	}

	interpreter, err := newPlanMachine(l.Plan, l.context(now))
	if err != nil {
		return false, err
	}
	interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	after := PlanStatus(interpreter.State().Value)
	if after != target {
		return false, nil
	}
	l.Plan.Status = after
	l.Plan.UpdatedAt = now
	return true, nil
}

func ruleFor(status PlanStatus) string {
	switch status {
	case StatusDraft:
		return RuleNotPending
	case StatusPendingApproval:
		return RuleNotDraft
	default:
		return RuleTerminal
	}
}

func (l *PlanLifecycle) resetApprovals(now time.Time) {
	for _, a := range l.Approvals {
		a.Status = ApprovalPending
		a.Comment = ""
		a.UpdatedAt = now
	}
}

func (l *PlanLifecycle) approvalFor(userID string) *WeeklyPlanApproval {
	for _, a := range l.Approvals {
		if a.UserID == userID {
			return a
		}
	}
	return nil
}

// Submit moves a draft plan to pending_approval and clears prior decisions.
func (l *PlanLifecycle) Submit(now time.Time) error {
	if l.Plan.Status != StatusDraft {
		return violation(l.Plan, ruleFor(l.Plan.Status), "only draft plans can be submitted for approval")
	}
	if l.Plan.IsExpiredAt(now) {
		l.ExpireIfDue(now)
		return violation(l.Plan, RuleTerminal, "the approval window closed at %s", l.Plan.ExpiresAt.Format(time.RFC3339))
	}
	if _, err := l.fire(EventSubmit, now); err != nil {
		return err
	}
	l.resetApprovals(now)
	l.Plan.SubmittedAt = &now
	return nil
}

// RecordDecision stores a member's approval or rejection. A single rejection
// rejects the plan; the last outstanding approval approves it. The returned
// status is the plan status after the decision.
func (l *PlanLifecycle) RecordDecision(userID string, decision ApprovalStatus, comment string, now time.Time) (PlanStatus, error) {
	if !decision.IsDecision() {
		return l.Plan.Status, violation(l.Plan, RuleInvalidDecision, "%q is not an approval decision", decision)
	}
	if l.Plan.Status.IsEditable() && l.Plan.IsExpiredAt(now) {
		l.ExpireIfDue(now)
	}
	if l.Plan.Status != StatusPendingApproval {
		return l.Plan.Status, violation(l.Plan, ruleFor(l.Plan.Status), "decisions are only accepted while the plan is pending approval")
	}
	approval := l.approvalFor(userID)
	if approval == nil {
		return l.Plan.Status, fmt.Errorf("%w: %s on plan %s", ErrApprovalNotFound, userID, l.Plan.ID)
	}
	if approval.Status != decision && !approval.Status.CanTransitionTo(decision) {
		return l.Plan.Status, violation(l.Plan, RuleInvalidDecision, "%s already %s the plan", userID, approval.Status)
	}

	approval.Status = decision
	approval.Comment = comment
	approval.UpdatedAt = now

	event := EventApprove
	if decision == ApprovalRejected {
		event = EventReject
	}
	moved, err := l.fire(event, now)
	if err != nil {
		return l.Plan.Status, err
	}
	if moved {
		l.Plan.DecidedAt = &now
	}
	return l.Plan.Status, nil
}

// ResetForEdit is applied after any item edit or deletion: every approval
// returns to pending and the plan returns to draft.
func (l *PlanLifecycle) ResetForEdit(now time.Time) error {
	if err := l.EnsureEditable(now); err != nil {
		return err
	}
	if _, err := l.fire(EventEdit, now); err != nil {
		return err
	}
	l.resetApprovals(now)
	l.Plan.SubmittedAt = nil
	return nil
}

// EnsureEditable fails with a StateViolationError unless items may change.
// A plan past its expiry is expired first.
func (l *PlanLifecycle) EnsureEditable(now time.Time) error {
	l.ExpireIfDue(now)
	if !l.Plan.Status.IsEditable() {
		return violation(l.Plan, RuleTerminal, "%s plans cannot be edited or deleted", l.Plan.Status.DisplayName())
	}
	return nil
}

// ExpireIfDue moves a non-terminal plan past its expiry to expired and
// reports whether it did.
func (l *PlanLifecycle) ExpireIfDue(now time.Time) bool {
	if l.Plan.Status.IsTerminal() || !l.Plan.IsExpiredAt(now) {
		return false
	}
	moved, err := l.fire(EventExpire, now)
	return err == nil && moved
}
