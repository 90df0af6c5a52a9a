package planning

import (
	"errors"
	"fmt"
)

// Domain errors for weekly plans.
var (
	// ErrPlanNotFound indicates no plan exists for the given id or week.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrItemNotFound indicates the plan item does not exist.
	ErrItemNotFound = errors.New("plan item not found")

	// ErrApprovalNotFound indicates the member has no approval record on the plan.
	ErrApprovalNotFound = errors.New("approval record not found")

	// ErrNotFamilyMember indicates the user does not belong to the plan's family.
	ErrNotFamilyMember = errors.New("user is not a member of the family")

	// ErrVersionConflict is returned by storage when a conditional item write loses a race.
	ErrVersionConflict = errors.New("plan item version conflict")

	// ErrPlanExists indicates a plan already exists for the family and week.
	ErrPlanExists = errors.New("plan already exists for this week")

	// ErrStateViolation is the category of every StateViolationError.
	ErrStateViolation = errors.New("plan state violation")
)

// Rules reported by StateViolationError.
const (
	RuleTerminal         = "terminal_status"
	RuleNotDraft         = "not_draft"
	RuleNotPending       = "not_pending_approval"
	RuleInvalidDecision  = "invalid_decision"
	RuleAwaitingOthers   = "awaiting_approvals"
	RuleNotExpired       = "not_expired"
	RuleMembership       = "membership"
	RuleOwnership        = "ownership"
	RuleRole             = "role"
	RuleApprovedExisting = "approved_plan_exists"
	RuleSuperseded       = "plan_superseded"
)

// StateViolationError reports an action disallowed by the plan's status or
// by family membership rules.
type StateViolationError struct {
	PlanID string
	Status PlanStatus
	Rule   string
	Detail string
}

func (e *StateViolationError) Error() string {
	msg := fmt.Sprintf("plan %s is %s", e.PlanID, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is allows errors.Is to match ErrStateViolation.
func (e *StateViolationError) Is(target error) bool {
	return target == ErrStateViolation
}

func violation(plan *WeeklyPlan, rule, format string, args ...any) *StateViolationError {
	return &StateViolationError{
		PlanID: plan.ID,
		Status: plan.Status,
		Rule:   rule,
		Detail: fmt.Sprintf(format, args...),
	}
}

// NewStateViolation builds a violation for checks made outside this package.
func NewStateViolation(plan *WeeklyPlan, rule, format string, args ...any) *StateViolationError {
	return violation(plan, rule, format, args...)
}
