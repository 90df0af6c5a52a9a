package planning

import (
	"encoding/json"
	"fmt"
)

// ApprovalStatus is one member's position on a weekly plan.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) IsValid() bool {
	return s == ApprovalPending || s.IsDecision()
}

// IsDecision reports whether a member may record this status explicitly.
func (s ApprovalStatus) IsDecision() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// CanTransitionTo allows pending records to take a decision and an approval
// to be withdrawn as a rejection. Decided records fall back to pending when the
// plan is edited. A rejection is final because it rejects the plan.
func (s ApprovalStatus) CanTransitionTo(target ApprovalStatus) bool {
	switch s {
	case ApprovalPending:
		return target.IsDecision()
	case ApprovalApproved:
		return target == ApprovalPending || target == ApprovalRejected
	case ApprovalRejected:
		return target == ApprovalPending
	}
	return false
}

func ParseApprovalStatus(str string) (ApprovalStatus, error) {
	if status := ApprovalStatus(str); status.IsValid() {
		return status, nil
	}
	return "", fmt.Errorf("invalid approval status: %q", str)
}

// UnmarshalJSON treats a missing status as pending.
func (s *ApprovalStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*s = ApprovalPending
		return nil
	}
	status, err := ParseApprovalStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
