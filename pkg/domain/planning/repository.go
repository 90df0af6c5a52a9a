package planning

import (
	"context"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// PlanRepository handles persistence of weekly plans. Storage enforces one
// plan per family and week start.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan *WeeklyPlan) error
	GetPlan(ctx context.Context, id string) (*WeeklyPlan, error)
	FindPlanByWeek(ctx context.Context, familyID string, weekStart scheduling.Date) (*WeeklyPlan, error)
	ListPlans(ctx context.Context, familyID string) ([]*WeeklyPlan, error)
	ListExpirable(ctx context.Context, now time.Time) ([]*WeeklyPlan, error)
	UpdatePlan(ctx context.Context, plan *WeeklyPlan) error
	DeletePlan(ctx context.Context, id string) error
}

// ItemRepository handles plan items. UpdateItem and DeleteItem only succeed
// when the stored version equals expectedVersion and return
// ErrVersionConflict otherwise.
type ItemRepository interface {
	CreateItems(ctx context.Context, items []*WeeklyPlanItem) error
	GetItem(ctx context.Context, id string) (*WeeklyPlanItem, error)
	ListItems(ctx context.Context, planID string) ([]*WeeklyPlanItem, error)
	UpdateItem(ctx context.Context, item *WeeklyPlanItem, expectedVersion int) error
	DeleteItem(ctx context.Context, id string, expectedVersion int) error
}

// ApprovalRepository handles per-member approval records.
type ApprovalRepository interface {
	SaveApprovals(ctx context.Context, approvals []*WeeklyPlanApproval) error
	ListApprovals(ctx context.Context, planID string) ([]*WeeklyPlanApproval, error)
}
