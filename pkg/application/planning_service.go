package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// GenerateRequest asks for a plan for one family week.
type GenerateRequest struct {
	FamilyID    string
	WeekStart   *scheduling.Date // nil means the current week
	RequestedBy string
}

// GenerateResult is a persisted draft plan.
type GenerateResult struct {
	Plan      *planning.WeeklyPlan
	Items     []*planning.WeeklyPlanItem
	Approvals []*planning.WeeklyPlanApproval
	Rejected  []proposal.Rejection
	Replaced  string // id of the plan this one replaced, if any
}

// PlanningService fills a week: aggregate, generate, validate, persist.
type PlanningService struct {
	store     Store
	generator ProposalGenerator
	busy      BusyTimeSource
	cfg       serviceConfig
}

func NewPlanningService(store Store, generator ProposalGenerator, opts ...Option) *PlanningService {
	return &PlanningService{store: store, generator: generator, cfg: newServiceConfig(opts)}
}

// SetBusyTimeSource attaches calendar busy times to generation input.
func (s *PlanningService) SetBusyTimeSource(src BusyTimeSource) {
	s.busy = src
}

// GenerateWeek produces a draft plan for the requested week. Nothing is
// written unless at least one proposal survives validation. A week that
// already has a non-approved plan has it replaced; an approved plan blocks
// regeneration.
func (s *PlanningService) GenerateWeek(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no proposal generator configured")
	}
	now := s.cfg.now()

	fam, err := s.store.GetFamily(ctx, req.FamilyID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, fam.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	loc := fam.Location(s.cfg.location)

	window, err := scheduling.ResolveSchedulingWindow(now, loc, req.WeekStart)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindPlanByWeek(ctx, fam.ID, window.FullWeekStart)
	if err != nil && !errors.Is(err, planning.ErrPlanNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == planning.StatusApproved {
		return nil, planning.NewStateViolation(existing, planning.RuleApprovedExisting,
			"the week of %s already has an approved plan", window.FullWeekStart)
	}

	input, known, err := s.buildInput(ctx, fam, members, window)
	if err != nil {
		return nil, err
	}

	log := s.cfg.logger.With("family", fam.ID, "week", window.FullWeekStart.String())
	log.Info("generating weekly plan", "tasks", len(input.Tasks), "scheduling_start", window.SchedulingStart.String())

	gen, err := s.generator.Generate(ctx, input)
	if err != nil {
		genErr := &GenerationError{
			FamilyID:  fam.ID,
			WeekStart: window.FullWeekStart,
			Reason:    err.Error(),
			Err:       fmt.Errorf("%w: %w", ErrUpstream, err),
		}
		s.fail(ctx, log, genErr, req.RequestedBy, now)
		return nil, genErr
	}
	if gen == nil {
		gen = &proposal.Generation{}
	}

	validator := proposal.NewValidator(proposal.WithMembers(members.IDs()...), proposal.WithWindow(window))
	result := validator.Validate(gen.Proposals, known)
	if err := result.Err(); err != nil {
		genErr := &GenerationError{
			FamilyID:   fam.ID,
			WeekStart:  window.FullWeekStart,
			Reason:     err.Error(),
			Rejections: result.Rejected,
			Err:        err,
		}
		s.fail(ctx, log, genErr, req.RequestedBy, now)
		return nil, genErr
	}

	plan := planning.NewWeeklyPlan(s.cfg.newID(), fam.ID, window.FullWeekStart, req.RequestedBy, gen.Reasoning, now, s.cfg.planExpiry, loc)
	items := make([]*planning.WeeklyPlanItem, 0, len(result.Accepted))
	for _, a := range result.Accepted {
		items = append(items, &planning.WeeklyPlanItem{
			ID:             s.cfg.newID(),
			PlanID:         plan.ID,
			TaskID:         a.Task.ID,
			AssignedUserID: a.Proposal.AssignedUserID,
			Date:           a.Date,
			Start:          a.Start,
			End:            a.End,
			Reasoning:      a.Proposal.Reasoning,
			CreatedAt:      now,
		})
	}
	approvals := planning.NewApprovals(plan.ID, members.Approvers(), now)

	out := &GenerateResult{Plan: plan, Items: items, Approvals: approvals, Rejected: result.Rejected}
	err = s.store.InTx(ctx, func(tx Repositories) error {
		// The week may have changed while the generator ran.
		current, err := tx.FindPlanByWeek(ctx, fam.ID, window.FullWeekStart)
		if err != nil && !errors.Is(err, planning.ErrPlanNotFound) {
			return err
		}
		if current != nil {
			if current.Status == planning.StatusApproved {
				return planning.NewStateViolation(current, planning.RuleApprovedExisting,
					"the week of %s was approved while the plan was being generated", window.FullWeekStart)
			}
			if existing == nil || current.ID != existing.ID {
				return planning.NewStateViolation(current, planning.RuleSuperseded,
					"another plan for the week of %s was created while this one was being generated", window.FullWeekStart)
			}
			if err := tx.DeletePlan(ctx, current.ID); err != nil {
				return err
			}
			out.Replaced = current.ID
		}
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return err
		}
		if err := tx.CreateItems(ctx, items); err != nil {
			return err
		}
		return tx.SaveApprovals(ctx, approvals)
	})
	if err != nil {
		var sv *planning.StateViolationError
		if errors.As(err, &sv) {
			log.Warn("weekly plan discarded", "reason", sv.Error())
			return nil, err
		}
		return nil, fmt.Errorf("persist plan: %w", err)
	}

	byRule := make(map[string]int)
	for rule, n := range result.RejectionsByRule() {
		byRule[string(rule)] = n
	}
	s.cfg.metrics.GenerationCompleted(fam.ID, len(items), byRule)
	log.Info("weekly plan generated", "plan", plan.ID, "items", len(items), "rejected", len(result.Rejected))
	for _, r := range result.Rejected {
		log.Debug("proposal dropped", "task", r.Proposal.TaskID, "date", r.Proposal.ScheduledDate, "rule", string(r.Rule), "reason", r.Reason)
	}

	s.cfg.publisher.Publish(ctx, events.NewPlanEvent(events.EventTypePlanCreated, plan.ID, fam.ID, req.RequestedBy, now, map[string]any{
		"week_start": plan.WeekStart.String(),
		"items":      len(items),
		"rejected":   len(result.Rejected),
	}))
	return out, nil
}

func (s *PlanningService) buildInput(ctx context.Context, fam *family.Family, members family.Members, window scheduling.Window) (GenerationInput, map[string]scheduling.TaskDefinition, error) {
	tasks, err := s.store.ListTasks(ctx, fam.ID)
	if err != nil {
		return GenerationInput{}, nil, fmt.Errorf("list tasks: %w", err)
	}
	known := make(map[string]scheduling.TaskDefinition, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		known[t.ID] = *t
		ids = append(ids, t.ID)
	}

	fulfillment, err := scheduling.NewAggregator(s.store).Aggregate(ctx, ids, window.FullWeekStart, window.FullWeekEnd)
	if err != nil {
		return GenerationInput{}, nil, err
	}

	input := GenerationInput{Family: *fam, Members: members, Window: window}
	for _, t := range tasks {
		f := fulfillment[t.ID]
		input.Tasks = append(input.Tasks, TaskContext{Task: *t, Fulfillment: f, Remaining: f.Remaining(*t)})
	}
	sort.SliceStable(input.Tasks, func(i, j int) bool {
		return input.Tasks[i].Task.Priority < input.Tasks[j].Task.Priority
	})

	if s.busy != nil {
		busy, err := s.busy.BusyTimes(ctx, members.IDs(), window.SchedulingStart, window.FullWeekEnd)
		if err != nil {
			s.cfg.logger.Warn("busy times unavailable", "family", fam.ID, "error", err)
		} else {
			input.Busy = busy
		}
	}
	return input, known, nil
}

func (s *PlanningService) fail(ctx context.Context, log *slog.Logger, genErr *GenerationError, actor string, now time.Time) {
	log.Warn("weekly plan generation failed", "reason", genErr.Reason, "rejected", len(genErr.Rejections))
	s.cfg.metrics.GenerationFailed(genErr.FamilyID, genErr.Reason)
	s.cfg.publisher.Publish(ctx, events.NewPlanEvent(events.EventTypeGenerationFailed, "", genErr.FamilyID, actor, now, map[string]any{
		"week_start": genErr.WeekStart.String(),
		"reason":     genErr.Reason,
		"rejected":   len(genErr.Rejections),
	}))
}
