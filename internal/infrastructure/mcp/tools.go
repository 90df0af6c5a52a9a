package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// defaultActor is recorded when a tool call names no user.
const defaultActor = "ai-agent"

func actorOr(actor string) string {
	if actor == "" {
		return defaultActor
	}
	return actor
}

type FamilyArgs struct {
	FamilyID string `json:"family_id" jsonschema:"description=The family id"`
}

type PlanArgs struct {
	PlanID string `json:"plan_id" jsonschema:"description=The weekly plan id"`
}

type GetPlanArgs struct {
	PlanID    string `json:"plan_id,omitempty" jsonschema:"description=The weekly plan id; leave empty to look up by family and week"`
	FamilyID  string `json:"family_id,omitempty" jsonschema:"description=The family id when looking up by week"`
	WeekStart string `json:"week_start,omitempty" jsonschema:"description=Any date (YYYY-MM-DD) in the week to look up"`
}

type GenerateWeekArgs struct {
	FamilyID    string `json:"family_id" jsonschema:"description=The family to plan for"`
	WeekStart   string `json:"week_start,omitempty" jsonschema:"description=Any date (YYYY-MM-DD) in the target week; empty means the current week"`
	RequestedBy string `json:"requested_by,omitempty" jsonschema:"description=The user asking for the plan"`
}

type SubmitPlanArgs struct {
	PlanID string `json:"plan_id" jsonschema:"description=The draft plan to submit for approval"`
	Actor  string `json:"actor,omitempty" jsonschema:"description=The user submitting the plan"`
}

type DecideArgs struct {
	PlanID   string `json:"plan_id" jsonschema:"description=The plan awaiting approval"`
	UserID   string `json:"user_id" jsonschema:"description=The member casting the decision"`
	Decision string `json:"decision" jsonschema:"description=approved or rejected"`
	Comment  string `json:"comment,omitempty" jsonschema:"description=Optional comment; shown to the family on rejection"`
}

type EditItemArgs struct {
	ItemID          string `json:"item_id" jsonschema:"description=The plan item to edit"`
	ExpectedVersion int    `json:"expected_version" jsonschema:"description=The item version you last read"`
	EditorID        string `json:"editor_id" jsonschema:"description=The member making the edit"`
	AssignedUserID  string `json:"assigned_user_id,omitempty" jsonschema:"description=New assignee"`
	Date            string `json:"date,omitempty" jsonschema:"description=New date (YYYY-MM-DD)"`
	StartTime       string `json:"start_time,omitempty" jsonschema:"description=New start time (HH:MM)"`
	Reasoning       string `json:"reasoning,omitempty" jsonschema:"description=New reasoning note"`
}

type DeleteItemArgs struct {
	ItemID          string `json:"item_id" jsonschema:"description=The plan item to delete"`
	ExpectedVersion int    `json:"expected_version" jsonschema:"description=The item version you last read"`
	EditorID        string `json:"editor_id" jsonschema:"description=The member deleting the item"`
}

type OccurrenceArgs struct {
	OccurrenceID string `json:"occurrence_id" jsonschema:"description=The scheduled occurrence id"`
	Actor        string `json:"actor" jsonschema:"description=The member updating the occurrence"`
}

type WeekArgs struct {
	FamilyID  string `json:"family_id" jsonschema:"description=The family id"`
	WeekStart string `json:"week_start,omitempty" jsonschema:"description=Any date (YYYY-MM-DD) in the week; empty means the current week"`
}

type ConflictReportArgs struct {
	FamilyID string `json:"family_id" jsonschema:"description=The family id"`
	Weeks    int    `json:"weeks,omitempty" jsonschema:"description=How many recent weeks to include; 0 uses the configured window"`
}

type ActivityArgs struct {
	FamilyID string `json:"family_id,omitempty" jsonschema:"description=The family id; empty returns every family"`
	Limit    int    `json:"limit,omitempty" jsonschema:"description=Maximum entries (default 20)"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("resolution_list_families").
		Description("List all families with their timezone and auto-generation setting").
		Handler(s.handleListFamilies)

	s.mcpServer.Tool("resolution_get_family").
		Description("Retrieve a family and its members with their roles").
		Handler(s.handleGetFamily)

	s.mcpServer.Tool("resolution_list_tasks").
		Description("List the recurring task definitions of a family").
		Handler(s.handleListTasks)

	s.mcpServer.Tool("resolution_list_plans").
		Description("List the weekly plans of a family, newest week first").
		Handler(s.handleListPlans)

	s.mcpServer.Tool("resolution_get_plan").
		Description("Retrieve a weekly plan with its items, approvals and approval summary").
		Handler(s.handleGetPlan)

	s.mcpServer.Tool("resolution_generate_week").
		Description("Generate a draft weekly plan for a family. Replaces a non-approved plan for the same week").
		Handler(s.handleGenerateWeek)

	s.mcpServer.Tool("resolution_submit_plan").
		Description("Submit a draft plan so family members can approve it").
		Handler(s.handleSubmitPlan)

	s.mcpServer.Tool("resolution_decide").
		Description("Record a member's approval or rejection of a pending plan").
		Handler(s.handleDecide)

	s.mcpServer.Tool("resolution_expire_plan").
		Description("Expire a plan that is still waiting for approval").
		Handler(s.handleExpirePlan)

	s.mcpServer.Tool("resolution_edit_item").
		Description("Edit a plan item with an optimistic version check. Edits reset the plan to draft").
		Handler(s.handleEditItem)

	s.mcpServer.Tool("resolution_delete_item").
		Description("Delete a plan item with an optimistic version check").
		Handler(s.handleDeleteItem)

	s.mcpServer.Tool("resolution_list_occurrences").
		Description("List the scheduled occurrences of an approved week").
		Handler(s.handleListOccurrences)

	s.mcpServer.Tool("resolution_complete_occurrence").
		Description("Mark a scheduled occurrence completed").
		Handler(s.handleCompleteOccurrence)

	s.mcpServer.Tool("resolution_skip_occurrence").
		Description("Mark a scheduled occurrence skipped").
		Handler(s.handleSkipOccurrence)

	s.mcpServer.Tool("resolution_conflict_report").
		Description("Report which tasks get moved most often over recent weeks").
		Handler(s.handleConflictReport)

	s.mcpServer.Tool("resolution_fairness_report").
		Description("Report per-member load, burnout flags and the fairness score for a week").
		Handler(s.handleFairnessReport)

	s.mcpServer.Tool("resolution_recent_activity").
		Description("Recent plan and occurrence events").
		Handler(s.handleRecentActivity)
}

// planView is the JSON shape of a plan for clients.
type planView struct {
	Plan      *planning.WeeklyPlan           `json:"plan"`
	Items     []*planning.WeeklyPlanItem     `json:"items"`
	Approvals []*planning.WeeklyPlanApproval `json:"approvals"`
	Summary   planning.ApprovalSummary       `json:"summary"`
}

func viewOf(d *application.PlanDetail) planView {
	return planView{Plan: d.Plan, Items: d.Items, Approvals: d.Approvals, Summary: d.Summary}
}

type familyView struct {
	Family  *family.Family `json:"family"`
	Members family.Members `json:"members"`
}

type generateView struct {
	planView
	Rejected []proposal.Rejection `json:"rejected,omitempty"`
	Replaced string               `json:"replaced,omitempty"`
}

type editView struct {
	Outcome   application.EditOutcome      `json:"outcome"`
	Message   string                       `json:"message,omitempty"`
	Item      *planning.WeeklyPlanItem     `json:"item,omitempty"`
	Plan      *planning.WeeklyPlan         `json:"plan,omitempty"`
	Changes   []planning.FieldChange       `json:"changes,omitempty"`
	Conflict  *application.Conflict        `json:"conflict,omitempty"`
	Conflicts []analytics.ScheduleConflict `json:"schedule_conflicts,omitempty"`
}

func editViewOf(r *application.EditResult) editView {
	v := editView{Outcome: r.Outcome, Item: r.Item, Plan: r.Plan, Changes: r.Changes, Conflict: r.Conflict, Conflicts: r.Conflicts}
	if r.Conflict != nil {
		v.Message = r.Conflict.String()
	}
	return v
}

// optionalDate parses an optional YYYY-MM-DD argument.
func optionalDate(value string) (*scheduling.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := scheduling.ParseDate(value)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Invalid date %q. Use YYYY-MM-DD.", value))
	}
	return &d, nil
}

func (s *Server) handleListFamilies(ctx context.Context, args struct{}) (any, error) {
	families, err := s.services.Families.ListFamilies(ctx)
	if err != nil {
		return nil, mcpErr("Failed to list families.")
	}
	return families, nil
}

func (s *Server) handleGetFamily(ctx context.Context, args FamilyArgs) (any, error) {
	fam, members, err := s.services.Families.GetFamily(ctx, args.FamilyID)
	if err != nil {
		return nil, domainErr(err, "Failed to load family.")
	}
	return familyView{Family: fam, Members: members}, nil
}

func (s *Server) handleListTasks(ctx context.Context, args FamilyArgs) (any, error) {
	tasks, err := s.services.Tasks.ListTasks(ctx, args.FamilyID)
	if err != nil {
		return nil, domainErr(err, "Failed to list tasks.")
	}
	return tasks, nil
}

func (s *Server) handleListPlans(ctx context.Context, args FamilyArgs) (any, error) {
	plans, err := s.services.Plans.ListPlans(ctx, args.FamilyID)
	if err != nil {
		return nil, domainErr(err, "Failed to list plans.")
	}
	return plans, nil
}

func (s *Server) handleGetPlan(ctx context.Context, args GetPlanArgs) (any, error) {
	if args.PlanID != "" {
		detail, err := s.services.Plans.GetPlan(ctx, args.PlanID)
		if err != nil {
			return nil, domainErr(err, "Failed to load plan.")
		}
		return viewOf(detail), nil
	}
	if args.FamilyID == "" || args.WeekStart == "" {
		return nil, mcpErr("Pass plan_id, or family_id together with week_start.")
	}
	week, err := optionalDate(args.WeekStart)
	if err != nil {
		return nil, err
	}
	detail, err := s.services.Plans.FindWeek(ctx, args.FamilyID, *week)
	if err != nil {
		return nil, domainErr(err, "Failed to load plan.")
	}
	return viewOf(detail), nil
}

func (s *Server) handleGenerateWeek(ctx context.Context, args GenerateWeekArgs) (any, error) {
	week, err := optionalDate(args.WeekStart)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Planning.GenerateWeek(ctx, application.GenerateRequest{
		FamilyID:    args.FamilyID,
		WeekStart:   week,
		RequestedBy: actorOr(args.RequestedBy),
	})
	if err != nil {
		return nil, domainErr(err, "Failed to generate the weekly plan. Check the AI provider configuration.")
	}
	return generateView{
		planView: planView{Plan: res.Plan, Items: res.Items, Approvals: res.Approvals, Summary: planning.Summarize(res.Approvals)},
		Rejected: res.Rejected,
		Replaced: res.Replaced,
	}, nil
}

func (s *Server) handleSubmitPlan(ctx context.Context, args SubmitPlanArgs) (any, error) {
	detail, err := s.services.Plans.Submit(ctx, args.PlanID, actorOr(args.Actor))
	if err != nil {
		return nil, domainErr(err, "Failed to submit plan.")
	}
	return viewOf(detail), nil
}

func (s *Server) handleDecide(ctx context.Context, args DecideArgs) (any, error) {
	decision := planning.ApprovalStatus(strings.ToLower(strings.TrimSpace(args.Decision)))
	if decision != planning.ApprovalApproved && decision != planning.ApprovalRejected {
		return nil, mcpErr("Decision must be 'approved' or 'rejected'.")
	}
	detail, err := s.services.Plans.Decide(ctx, application.DecisionRequest{
		PlanID:   args.PlanID,
		UserID:   args.UserID,
		Decision: decision,
		Comment:  args.Comment,
	})
	if err != nil {
		return nil, domainErr(err, "Failed to record the decision.")
	}
	return viewOf(detail), nil
}

func (s *Server) handleExpirePlan(ctx context.Context, args PlanArgs) (any, error) {
	detail, err := s.services.Plans.Expire(ctx, args.PlanID)
	if err != nil {
		return nil, domainErr(err, "Failed to expire plan.")
	}
	return viewOf(detail), nil
}

func (s *Server) handleEditItem(ctx context.Context, args EditItemArgs) (any, error) {
	var changes planning.ItemChanges
	if args.AssignedUserID != "" {
		changes.AssignedUserID = &args.AssignedUserID
	}
	if args.Date != "" {
		d, err := optionalDate(args.Date)
		if err != nil {
			return nil, err
		}
		changes.Date = d
	}
	if args.StartTime != "" {
		start, err := scheduling.ParseTimeOfDay(args.StartTime)
		if err != nil {
			return nil, mcpErr(fmt.Sprintf("Invalid start time %q. Use HH:MM.", args.StartTime))
		}
		changes.Start = &start
	}
	if args.Reasoning != "" {
		changes.Reasoning = &args.Reasoning
	}
	if changes.IsEmpty() {
		return nil, mcpErr("Nothing to change. Pass assigned_user_id, date, start_time or reasoning.")
	}

	res, err := s.services.Items.EditItem(ctx, application.EditRequest{
		ItemID:          args.ItemID,
		Changes:         changes,
		ExpectedVersion: args.ExpectedVersion,
		EditorID:        args.EditorID,
	})
	if err != nil {
		return nil, domainErr(err, "Failed to edit plan item.")
	}
	return editViewOf(res), nil
}

func (s *Server) handleDeleteItem(ctx context.Context, args DeleteItemArgs) (any, error) {
	res, err := s.services.Items.DeleteItem(ctx, args.ItemID, args.ExpectedVersion, args.EditorID)
	if err != nil {
		return nil, domainErr(err, "Failed to delete plan item.")
	}
	return editViewOf(res), nil
}

func (s *Server) currentWeek(value string) (scheduling.Date, error) {
	week, err := optionalDate(value)
	if err != nil {
		return scheduling.Date{}, err
	}
	if week != nil {
		return *week, nil
	}
	loc, _ := s.services.Config.Location()
	if loc == nil {
		loc = time.Local
	}
	return scheduling.DateOf(s.now(), loc).Monday(), nil
}

func (s *Server) handleListOccurrences(ctx context.Context, args WeekArgs) (any, error) {
	week, err := s.currentWeek(args.WeekStart)
	if err != nil {
		return nil, err
	}
	occ, err := s.services.Occurrences.ListWeek(ctx, args.FamilyID, week)
	if err != nil {
		return nil, domainErr(err, "Failed to list occurrences.")
	}
	return occ, nil
}

func (s *Server) handleCompleteOccurrence(ctx context.Context, args OccurrenceArgs) (string, error) {
	occ, err := s.services.Occurrences.Complete(ctx, args.OccurrenceID, args.Actor)
	if err != nil {
		return "", domainErr(err, "Failed to complete occurrence. Completed occurrences cannot change again.")
	}
	return fmt.Sprintf("Occurrence %s of task %s is %s", occ.ID, occ.TaskID, occ.Status), nil
}

func (s *Server) handleSkipOccurrence(ctx context.Context, args OccurrenceArgs) (string, error) {
	occ, err := s.services.Occurrences.Skip(ctx, args.OccurrenceID, args.Actor)
	if err != nil {
		return "", domainErr(err, "Failed to skip occurrence. Completed occurrences cannot change again.")
	}
	return fmt.Sprintf("Occurrence %s of task %s is %s", occ.ID, occ.TaskID, occ.Status), nil
}

func (s *Server) handleConflictReport(ctx context.Context, args ConflictReportArgs) (any, error) {
	report, err := s.services.Analytics.ConflictReport(ctx, args.FamilyID, args.Weeks)
	if err != nil {
		return nil, domainErr(err, "Failed to build the conflict report.")
	}
	return report, nil
}

func (s *Server) handleFairnessReport(ctx context.Context, args WeekArgs) (any, error) {
	week, err := optionalDate(args.WeekStart)
	if err != nil {
		return nil, err
	}
	report, err := s.services.Analytics.WeekReport(ctx, args.FamilyID, week)
	if err != nil {
		return nil, domainErr(err, "Failed to build the fairness report.")
	}
	return report, nil
}

func (s *Server) handleRecentActivity(ctx context.Context, args ActivityArgs) (any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	entries := s.services.Timeline.Recent(args.FamilyID, limit)
	if len(entries) > 0 {
		return entries, nil
	}
	// The in-memory timeline is empty after a restart; fall back to the log.
	history, err := s.services.Audit.History(args.FamilyID)
	if err != nil {
		return nil, mcpErr("Failed to read the activity log.")
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]events.TimelineEntry, 0, len(history))
	for _, e := range history {
		out = append(out, events.TimelineEntry{
			Timestamp:   e.Timestamp,
			EventType:   e.Type,
			Actor:       e.Actor,
			Description: e.String(),
			AggregateID: e.AggregateID_,
			FamilyID:    e.FamilyID,
			Metadata:    e.Metadata,
		})
	}
	return out, nil
}
