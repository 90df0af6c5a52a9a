package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// PlanDetail is a plan with its items and approvals.
type PlanDetail struct {
	Plan      *planning.WeeklyPlan
	Items     []*planning.WeeklyPlanItem
	Approvals []*planning.WeeklyPlanApproval
	Summary   planning.ApprovalSummary
}

// DecisionRequest records one member's vote.
type DecisionRequest struct {
	PlanID   string
	UserID   string
	Decision planning.ApprovalStatus
	Comment  string
}

// PlanService drives weekly plans through their lifecycle. Every read
// applies lazy expiry.
type PlanService struct {
	store Store
	cfg   serviceConfig
}

func NewPlanService(store Store, opts ...Option) *PlanService {
	return &PlanService{store: store, cfg: newServiceConfig(opts)}
}

// GetPlan returns the plan with items and approvals.
func (s *PlanService) GetPlan(ctx context.Context, planID string) (*PlanDetail, error) {
	var detail *PlanDetail
	err := s.mutate(ctx, planID, "", func(tx Repositories, lc *planning.PlanLifecycle, now time.Time) (opResult, error) {
		return opRead, nil
	}, func(d *PlanDetail) { detail = d })
	return detail, err
}

// FindWeek returns the family's plan for the week containing weekStart.
func (s *PlanService) FindWeek(ctx context.Context, familyID string, weekStart scheduling.Date) (*PlanDetail, error) {
	plan, err := s.store.FindPlanByWeek(ctx, familyID, weekStart.Monday())
	if err != nil {
		return nil, err
	}
	return s.GetPlan(ctx, plan.ID)
}

// ListPlans returns the family's plans, newest first, with lazy expiry applied.
func (s *PlanService) ListPlans(ctx context.Context, familyID string) ([]*planning.WeeklyPlan, error) {
	plans, err := s.store.ListPlans(ctx, familyID)
	if err != nil {
		return nil, err
	}
	now := s.cfg.now()
	for i, p := range plans {
		if p.Status.IsTerminal() || !p.IsExpiredAt(now) {
			continue
		}
		d, err := s.GetPlan(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		plans[i] = d.Plan
	}
	return plans, nil
}

// Submit sends a draft plan out for approval.
func (s *PlanService) Submit(ctx context.Context, planID, actorID string) (*PlanDetail, error) {
	var detail *PlanDetail
	err := s.mutate(ctx, planID, actorID, func(tx Repositories, lc *planning.PlanLifecycle, now time.Time) (opResult, error) {
		if _, err := requireRole(ctx, tx, lc.Plan, actorID, family.Role.CanEditPlan, "submit"); err != nil {
			return opRead, err
		}
		if err := lc.Submit(now); err != nil {
			return opRead, err
		}
		return opWrite, nil
	}, func(d *PlanDetail) { detail = d })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTypePlanSubmitted, detail.Plan, actorID, nil)
	return detail, nil
}

// Decide records an approval or rejection. The last approval approves the
// plan and materializes its items as scheduled occurrences.
func (s *PlanService) Decide(ctx context.Context, req DecisionRequest) (*PlanDetail, error) {
	var (
		detail *PlanDetail
		before planning.PlanStatus
	)
	err := s.mutate(ctx, req.PlanID, req.UserID, func(tx Repositories, lc *planning.PlanLifecycle, now time.Time) (opResult, error) {
		if _, err := requireRole(ctx, tx, lc.Plan, req.UserID, family.Role.CanApprove, "approve"); err != nil {
			return opRead, err
		}
		before = lc.Plan.Status
		status, err := lc.RecordDecision(req.UserID, req.Decision, req.Comment, now)
		if err != nil {
			return opRead, err
		}
		if status == planning.StatusApproved && before != planning.StatusApproved {
			if err := materialize(ctx, tx, lc.Plan, s.cfg.newID, now); err != nil {
				return opRead, err
			}
		}
		return opWrite, nil
	}, func(d *PlanDetail) { detail = d })
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypeDecisionRecorded, detail.Plan, req.UserID, map[string]any{
		"decision": string(req.Decision),
		"comment":  req.Comment,
	})
	switch detail.Plan.Status {
	case planning.StatusApproved:
		s.publish(ctx, events.EventTypePlanApproved, detail.Plan, req.UserID, nil)
	case planning.StatusRejected:
		s.publish(ctx, events.EventTypePlanRejected, detail.Plan, req.UserID, map[string]any{"comment": req.Comment})
	}
	return detail, nil
}

// Expire closes a plan whose approval window has passed.
func (s *PlanService) Expire(ctx context.Context, planID string) (*PlanDetail, error) {
	var detail *PlanDetail
	err := s.mutate(ctx, planID, "", func(tx Repositories, lc *planning.PlanLifecycle, now time.Time) (opResult, error) {
		if lc.Plan.Status.IsTerminal() {
			return opRead, planning.NewStateViolation(lc.Plan, planning.RuleTerminal, "the plan is already %s", lc.Plan.Status.DisplayName())
		}
		return opRead, planning.NewStateViolation(lc.Plan, planning.RuleNotExpired, "the approval window is open until %s", lc.Plan.ExpiresAt.Format(time.RFC3339))
	}, func(d *PlanDetail) { detail = d })
	if err != nil && detail != nil && detail.Plan.Status == planning.StatusExpired {
		return detail, nil
	}
	return detail, err
}

// SweepExpired expires every plan past its window and returns how many moved.
func (s *PlanService) SweepExpired(ctx context.Context) (int, error) {
	due, err := s.store.ListExpirable(ctx, s.cfg.now())
	if err != nil {
		return 0, fmt.Errorf("list expirable plans: %w", err)
	}
	expired := 0
	for _, p := range due {
		d, err := s.GetPlan(ctx, p.ID)
		if err != nil {
			s.cfg.logger.Warn("expiry sweep failed", "plan", p.ID, "error", err)
			continue
		}
		if d.Plan.Status == planning.StatusExpired {
			expired++
		}
	}
	if expired > 0 {
		s.cfg.logger.Info("expired weekly plans", "count", expired)
	}
	return expired, nil
}

// Delete removes a plan that has not been approved.
func (s *PlanService) Delete(ctx context.Context, planID, actorID string) error {
	var deleted *planning.WeeklyPlan
	err := s.mutate(ctx, planID, actorID, func(tx Repositories, lc *planning.PlanLifecycle, now time.Time) (opResult, error) {
		if _, err := requireRole(ctx, tx, lc.Plan, actorID, family.Role.CanEditPlan, "delete"); err != nil {
			return opRead, err
		}
		if lc.Plan.Status == planning.StatusApproved {
			return opRead, planning.NewStateViolation(lc.Plan, planning.RuleTerminal, "approved plans cannot be deleted")
		}
		if err := tx.DeletePlan(ctx, lc.Plan.ID); err != nil {
			return opRead, err
		}
		deleted = lc.Plan
		return opDeleted, nil
	}, nil)
	if err != nil {
		return err
	}
	s.publish(ctx, events.EventTypePlanDeleted, deleted, actorID, nil)
	return nil
}

type opResult int

const (
	opRead opResult = iota
	opWrite
	opDeleted
)

// planOp runs inside the transaction and reports what it did to the plan.
type planOp func(tx Repositories, lc *planning.PlanLifecycle, now time.Time) (opResult, error)

// mutate loads the plan in a transaction, applies lazy expiry, runs op and
// persists the result. An expiry is committed even when op fails.
func (s *PlanService) mutate(ctx context.Context, planID, actorID string, op planOp, done func(*PlanDetail)) error {
	now := s.cfg.now()
	var (
		opErr   error
		from    planning.PlanStatus
		expired bool
		removed bool
		out     *PlanDetail
	)
	err := s.store.InTx(ctx, func(tx Repositories) error {
		plan, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		approvals, err := tx.ListApprovals(ctx, planID)
		if err != nil {
			return err
		}
		from = plan.Status
		lc := planning.NewPlanLifecycle(plan, approvals)
		expired = lc.ExpireIfDue(now)

		result, err := op(tx, lc, now)
		if err != nil {
			opErr = err
			result = opRead
		}
		if result == opDeleted {
			removed = true
			out = &PlanDetail{Plan: lc.Plan}
			return nil
		}
		if result == opWrite || expired {
			if err := tx.UpdatePlan(ctx, lc.Plan); err != nil {
				return err
			}
			if err := tx.SaveApprovals(ctx, lc.Approvals); err != nil {
				return err
			}
		}
		if opErr != nil && !expired {
			return opErr
		}

		items, err := tx.ListItems(ctx, planID)
		if err != nil {
			return err
		}
		out = &PlanDetail{Plan: lc.Plan, Items: items, Approvals: lc.Approvals, Summary: planning.Summarize(lc.Approvals)}
		return nil
	})
	if err != nil && (opErr == nil || !errors.Is(err, opErr)) {
		return err
	}
	if out != nil && !removed {
		if out.Plan.Status != from {
			s.cfg.metrics.PlanTransition(from, out.Plan.Status)
			s.cfg.logger.Info("plan status changed", "plan", planID, "from", string(from), "to", string(out.Plan.Status), "actor", actorID)
		}
		if expired {
			s.publish(ctx, events.EventTypePlanExpired, out.Plan, actorID, nil)
		}
		if done != nil {
			done(out)
		}
	}
	return opErr
}

func (s *PlanService) publish(ctx context.Context, eventType string, plan *planning.WeeklyPlan, actor string, metadata map[string]any) {
	if plan == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["week_start"] = plan.WeekStart.String()
	metadata["status"] = string(plan.Status)
	s.cfg.publisher.Publish(ctx, events.NewPlanEvent(eventType, plan.ID, plan.FamilyID, actor, s.cfg.now(), metadata))
}

// requireRole checks that userID belongs to the plan's family with a role
// allowing the action.
func requireRole(ctx context.Context, repos Repositories, plan *planning.WeeklyPlan, userID string, allowed func(family.Role) bool, action string) (*family.Member, error) {
	members, err := repos.ListMembers(ctx, plan.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	m := members.Find(userID)
	if m == nil {
		return nil, fmt.Errorf("%w: %s in family %s", planning.ErrNotFamilyMember, userID, plan.FamilyID)
	}
	if !allowed(m.Role) {
		return nil, planning.NewStateViolation(plan, planning.RuleRole, "%s members cannot %s plans", m.Role, action)
	}
	return m, nil
}

// materialize turns an approved plan's items into pending occurrences.
func materialize(ctx context.Context, tx Repositories, plan *planning.WeeklyPlan, newID func() string, now time.Time) error {
	items, err := tx.ListItems(ctx, plan.ID)
	if err != nil {
		return err
	}
	occurrences := make([]scheduling.ScheduledOccurrence, 0, len(items))
	for _, it := range items {
		o := it.Occurrence(newID(), now)
		o.FamilyID = plan.FamilyID
		occurrences = append(occurrences, o)
	}
	return tx.CreateOccurrences(ctx, occurrences)
}
