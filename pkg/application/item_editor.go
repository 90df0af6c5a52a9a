package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// EditOutcome classifies an edit attempt.
type EditOutcome string

const (
	OutcomeApplied  EditOutcome = "applied"
	OutcomeNoop     EditOutcome = "noop"
	OutcomeConflict EditOutcome = "conflict"
)

// EditRequest changes one plan item. ExpectedVersion is the version the
// editor last read.
type EditRequest struct {
	ItemID          string
	Changes         planning.ItemChanges
	ExpectedVersion int
	EditorID        string
}

// Conflict tells the loser of a concurrent edit who won and when.
type Conflict struct {
	CurrentVersion int        `json:"current_version"`
	LastEditedBy   string     `json:"last_edited_by,omitempty"`
	LastEditedAt   *time.Time `json:"last_edited_at,omitempty"`
}

func (c Conflict) String() string {
	if c.LastEditedBy == "" || c.LastEditedAt == nil {
		return fmt.Sprintf("item is at version %d; refresh and retry", c.CurrentVersion)
	}
	return fmt.Sprintf("item is at version %d, last edited by %s at %s; refresh and retry",
		c.CurrentVersion, c.LastEditedBy, c.LastEditedAt.Format(time.RFC3339))
}

// EditResult is returned for every edit that reached the version check.
type EditResult struct {
	Outcome   EditOutcome
	Item      *planning.WeeklyPlanItem
	Plan      *planning.WeeklyPlan
	Changes   []planning.FieldChange
	Conflict  *Conflict
	Conflicts []analytics.ScheduleConflict
}

// ItemEditor applies versioned edits to plan items. Every applied edit or
// deletion returns the plan to draft with all approvals pending.
type ItemEditor struct {
	store Store
	cfg   serviceConfig
}

func NewItemEditor(store Store, opts ...Option) *ItemEditor {
	return &ItemEditor{store: store, cfg: newServiceConfig(opts)}
}

type editScope struct {
	item      *planning.WeeklyPlanItem
	lifecycle *planning.PlanLifecycle
	members   family.Members
	expired   bool
}

// load reads the item with its plan and checks that editorID may change it.
func (e *ItemEditor) load(ctx context.Context, tx Repositories, itemID, editorID string, now time.Time) (*editScope, error) {
	item, err := tx.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	plan, err := tx.GetPlan(ctx, item.PlanID)
	if err != nil {
		return nil, err
	}
	approvals, err := tx.ListApprovals(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	scope := &editScope{item: item, lifecycle: planning.NewPlanLifecycle(plan, approvals)}
	scope.expired = scope.lifecycle.ExpireIfDue(now)
	if err := scope.lifecycle.EnsureEditable(now); err != nil {
		return scope, err
	}

	scope.members, err = tx.ListMembers(ctx, plan.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	editor := scope.members.Find(editorID)
	if editor == nil {
		return scope, fmt.Errorf("%w: %s in family %s", planning.ErrNotFamilyMember, editorID, plan.FamilyID)
	}
	if !editor.Role.CanEditPlan() {
		return scope, planning.NewStateViolation(plan, planning.RuleRole, "%s members cannot edit plans", editor.Role)
	}
	return scope, nil
}

func conflictFor(item *planning.WeeklyPlanItem) *Conflict {
	return &Conflict{CurrentVersion: item.Version, LastEditedBy: item.LastEditedBy, LastEditedAt: item.LastEditedAt}
}

// EditItem applies req. A stale ExpectedVersion yields OutcomeConflict and
// a request that changes nothing yields OutcomeNoop; neither writes.
func (e *ItemEditor) EditItem(ctx context.Context, req EditRequest) (*EditResult, error) {
	now := e.cfg.now()
	var (
		result  *EditResult
		opErr   error
		expired *planning.WeeklyPlan
	)
	err := e.store.InTx(ctx, func(tx Repositories) error {
		scope, err := e.load(ctx, tx, req.ItemID, req.EditorID, now)
		if err != nil {
			if scope != nil && scope.expired {
				opErr = err
				expired = scope.lifecycle.Plan
				return tx.UpdatePlan(ctx, scope.lifecycle.Plan)
			}
			return err
		}
		item, lc := scope.item, scope.lifecycle

		if item.Version != req.ExpectedVersion {
			result = &EditResult{Outcome: OutcomeConflict, Item: item, Plan: lc.Plan, Conflict: conflictFor(item)}
			return nil
		}

		task, err := tx.GetTask(ctx, item.TaskID)
		if err != nil {
			return err
		}
		if req.Changes.AssignedUserID != nil {
			assignee := *req.Changes.AssignedUserID
			if !scope.members.Has(assignee) {
				return planning.NewStateViolation(lc.Plan, planning.RuleMembership, "%s is not a member of the family", assignee)
			}
			if task.Type == scheduling.TaskTypeResolution && assignee != task.OwnerID {
				return planning.NewStateViolation(lc.Plan, planning.RuleOwnership,
					"resolution task %q can only be assigned to its owner %s", task.Name, task.OwnerID)
			}
		}

		changes := item.Diff(req.Changes, task.DurationMin)
		if len(changes) == 0 {
			result = &EditResult{Outcome: OutcomeNoop, Item: item, Plan: lc.Plan}
			return nil
		}

		next := item.WithChanges(req.Changes, task.DurationMin, changes, req.EditorID, now)
		if rescheduled, _ := classify(changes); rescheduled {
			placement := scheduling.Placement{Date: next.Date, Start: next.Start, AssignedUserID: next.AssignedUserID}
			if v := task.CheckWithin(placement, lc.Plan.WeekStart, lc.Plan.WeekEnd); !v.OK {
				return planning.NewStateViolation(lc.Plan, string(v.Rule), "%s", v.Reason)
			}
		}
		if err := tx.UpdateItem(ctx, next, req.ExpectedVersion); err != nil {
			if errors.Is(err, planning.ErrVersionConflict) {
				current, getErr := tx.GetItem(ctx, item.ID)
				if getErr != nil {
					return getErr
				}
				result = &EditResult{Outcome: OutcomeConflict, Item: current, Plan: lc.Plan, Conflict: conflictFor(current)}
				return nil
			}
			return err
		}
		if err := e.resetPlan(ctx, tx, lc, now); err != nil {
			return err
		}

		var recorded []analytics.ScheduleConflict
		if rescheduled, reassigned := classify(changes); rescheduled || reassigned {
			recorded, err = e.recordMove(ctx, tx, lc.Plan, next, rescheduled, req.EditorID, now)
			if err != nil {
				return err
			}
		}
		result = &EditResult{Outcome: OutcomeApplied, Item: next, Plan: lc.Plan, Changes: changes, Conflicts: recorded}
		return nil
	})
	if expired != nil {
		e.publish(ctx, events.EventTypePlanExpired, expired, req.EditorID, nil)
	}
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		return nil, err
	}

	e.cfg.metrics.EditOutcome(result.Outcome)
	switch result.Outcome {
	case OutcomeApplied:
		e.cfg.logger.Info("plan item edited", "item", result.Item.ID, "version", result.Item.Version, "editor", req.EditorID, "changes", len(result.Changes))
		e.publish(ctx, events.EventTypeItemEdited, result.Plan, req.EditorID, map[string]any{
			"item_id": result.Item.ID,
			"version": result.Item.Version,
		})
		e.publish(ctx, events.EventTypeApprovalsReset, result.Plan, req.EditorID, nil)
		for _, c := range result.Conflicts {
			e.publish(ctx, events.EventTypeConflictRecorded, result.Plan, req.EditorID, map[string]any{
				"moved_task_id":     c.MovedTaskID,
				"displaced_task_id": c.DisplacedTaskID,
				"resolution_type":   string(c.ResolutionType),
			})
		}
	case OutcomeConflict:
		e.cfg.logger.Info("plan item edit conflict", "item", req.ItemID, "expected", req.ExpectedVersion, "current", result.Conflict.CurrentVersion)
	}
	return result, nil
}

// DeleteItem removes an item under the same version and authorization
// rules as EditItem.
func (e *ItemEditor) DeleteItem(ctx context.Context, itemID string, expectedVersion int, editorID string) (*EditResult, error) {
	now := e.cfg.now()
	var (
		result  *EditResult
		opErr   error
		expired *planning.WeeklyPlan
	)
	err := e.store.InTx(ctx, func(tx Repositories) error {
		scope, err := e.load(ctx, tx, itemID, editorID, now)
		if err != nil {
			if scope != nil && scope.expired {
				opErr = err
				expired = scope.lifecycle.Plan
				return tx.UpdatePlan(ctx, scope.lifecycle.Plan)
			}
			return err
		}
		item, lc := scope.item, scope.lifecycle
		if item.Version != expectedVersion {
			result = &EditResult{Outcome: OutcomeConflict, Item: item, Plan: lc.Plan, Conflict: conflictFor(item)}
			return nil
		}
		if err := tx.DeleteItem(ctx, item.ID, expectedVersion); err != nil {
			if errors.Is(err, planning.ErrVersionConflict) {
				current, getErr := tx.GetItem(ctx, item.ID)
				if getErr != nil {
					return getErr
				}
				result = &EditResult{Outcome: OutcomeConflict, Item: current, Plan: lc.Plan, Conflict: conflictFor(current)}
				return nil
			}
			return err
		}
		if err := e.resetPlan(ctx, tx, lc, now); err != nil {
			return err
		}
		result = &EditResult{Outcome: OutcomeApplied, Item: item, Plan: lc.Plan}
		return nil
	})
	if expired != nil {
		e.publish(ctx, events.EventTypePlanExpired, expired, editorID, nil)
	}
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		return nil, err
	}

	e.cfg.metrics.EditOutcome(result.Outcome)
	if result.Outcome == OutcomeApplied {
		e.cfg.logger.Info("plan item deleted", "item", itemID, "editor", editorID)
		e.publish(ctx, events.EventTypeItemDeleted, result.Plan, editorID, map[string]any{"item_id": itemID})
		e.publish(ctx, events.EventTypeApprovalsReset, result.Plan, editorID, nil)
	}
	return result, nil
}

func (e *ItemEditor) resetPlan(ctx context.Context, tx Repositories, lc *planning.PlanLifecycle, now time.Time) error {
	from := lc.Plan.Status
	if err := lc.ResetForEdit(now); err != nil {
		return err
	}
	if err := tx.UpdatePlan(ctx, lc.Plan); err != nil {
		return err
	}
	if err := tx.SaveApprovals(ctx, lc.Approvals); err != nil {
		return err
	}
	if from != lc.Plan.Status {
		e.cfg.metrics.PlanTransition(from, lc.Plan.Status)
	}
	return nil
}

// classify reports whether the changes move the item in time and whether
// they hand it to someone else.
func classify(changes []planning.FieldChange) (rescheduled, reassigned bool) {
	for _, c := range changes {
		switch c.Field {
		case planning.FieldDate, planning.FieldStart:
			rescheduled = true
		case planning.FieldAssignedUser:
			reassigned = true
		}
	}
	return rescheduled, reassigned
}

// recordMove logs a manual reschedule. Landing on a slot that overlaps
// another item of the same assignee records one overlapping conflict per
// displaced task; a reschedule without overlap is logged as displaced.
func (e *ItemEditor) recordMove(ctx context.Context, tx Repositories, plan *planning.WeeklyPlan, item *planning.WeeklyPlanItem, rescheduled bool, editorID string, now time.Time) ([]analytics.ScheduleConflict, error) {
	items, err := tx.ListItems(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	var out []analytics.ScheduleConflict
	for _, other := range items {
		if other.ID == item.ID || other.AssignedUserID != item.AssignedUserID || other.Date != item.Date {
			continue
		}
		if !scheduling.Overlaps(item.Start, item.End, other.Start, other.End) {
			continue
		}
		out = append(out, analytics.ScheduleConflict{
			ID:              e.cfg.newID(),
			FamilyID:        plan.FamilyID,
			MovedTaskID:     item.TaskID,
			DisplacedTaskID: other.TaskID,
			WeekStart:       plan.WeekStart,
			ResolutionType:  analytics.ResolutionOverlapping,
			RecordedBy:      editorID,
			RecordedAt:      now,
		})
	}
	if len(out) == 0 && rescheduled {
		out = append(out, analytics.ScheduleConflict{
			ID:             e.cfg.newID(),
			FamilyID:       plan.FamilyID,
			MovedTaskID:    item.TaskID,
			WeekStart:      plan.WeekStart,
			ResolutionType: analytics.ResolutionDisplaced,
			RecordedBy:     editorID,
			RecordedAt:     now,
		})
	}
	for _, c := range out {
		if err := tx.AppendConflict(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *ItemEditor) publish(ctx context.Context, eventType string, plan *planning.WeeklyPlan, actor string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["week_start"] = plan.WeekStart.String()
	metadata["status"] = string(plan.Status)
	e.cfg.publisher.Publish(ctx, events.NewPlanEvent(eventType, plan.ID, plan.FamilyID, actor, e.cfg.now(), metadata))
}
