// Package planning models the weekly family plan: its items, per-member
// approvals and the lifecycle that couples them.
package planning

import (
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// DefaultExpiry is how long a new plan stays open for approval.
const DefaultExpiry = 72 * time.Hour

// WeeklyPlan is a proposed bundle of occurrences for one family and one
// Monday-starting week.
type WeeklyPlan struct {
	ID          string          `json:"id" yaml:"id"`
	FamilyID    string          `json:"family_id" yaml:"family_id"`
	WeekStart   scheduling.Date `json:"week_start" yaml:"week_start"`
	WeekEnd     scheduling.Date `json:"week_end" yaml:"week_end"`
	Status      PlanStatus      `json:"status" yaml:"status"`
	Reasoning   string          `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at" yaml:"expires_at"`
	CreatedBy   string          `json:"created_by" yaml:"created_by"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty" yaml:"decided_at,omitempty"`
}

// NewWeeklyPlan returns a draft plan for the week starting at weekStart.
// The plan expires ttl after creation, but never later than the end of the
// week in loc.
func NewWeeklyPlan(id, familyID string, weekStart scheduling.Date, createdBy, reasoning string, now time.Time, ttl time.Duration, loc *time.Location) *WeeklyPlan {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	weekStart = weekStart.Monday()
	weekEnd := weekStart.AddDays(6)
	return &WeeklyPlan{
		ID:        id,
		FamilyID:  familyID,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Status:    StatusDraft,
		Reasoning: reasoning,
		ExpiresAt: ExpiryFor(now, ttl, weekEnd, loc),
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExpiryFor caps now+ttl at the first instant after weekEnd in loc.
func ExpiryFor(now time.Time, ttl time.Duration, weekEnd scheduling.Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	expires := now.Add(ttl)
	limit := weekEnd.AddDays(1).At(0, loc)
	if expires.After(limit) {
		return limit
	}
	return expires
}

// IsExpiredAt reports whether now is past the expiry instant.
func (p *WeeklyPlan) IsExpiredAt(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// WeeklyPlanApproval is one member's approval record for a plan.
type WeeklyPlanApproval struct {
	PlanID    string         `json:"plan_id" yaml:"plan_id"`
	UserID    string         `json:"user_id" yaml:"user_id"`
	Status    ApprovalStatus `json:"status" yaml:"status"`
	Comment   string         `json:"comment,omitempty" yaml:"comment,omitempty"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

// NewApprovals creates a pending record for every member.
func NewApprovals(planID string, memberIDs []string, now time.Time) []*WeeklyPlanApproval {
	out := make([]*WeeklyPlanApproval, 0, len(memberIDs))
	for _, id := range memberIDs {
		out = append(out, &WeeklyPlanApproval{
			PlanID:    planID,
			UserID:    id,
			Status:    ApprovalPending,
			UpdatedAt: now,
		})
	}
	return out
}

// ApprovalSummary counts approvals by status.
type ApprovalSummary struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

func (s ApprovalSummary) Total() int { return s.Pending + s.Approved + s.Rejected }

// Summarize counts approval records by status.
func Summarize(approvals []*WeeklyPlanApproval) ApprovalSummary {
	var s ApprovalSummary
	for _, a := range approvals {
		switch a.Status {
		case ApprovalApproved:
			s.Approved++
		case ApprovalRejected:
			s.Rejected++
		default:
			s.Pending++
		}
	}
	return s
}
