package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
)

var (
	planFamily    string
	planWeek      string
	planActor     string
	planProposals string
	planComment   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and approve weekly plans",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a draft plan for a week",
	Long: `Ask the configured generator for a week of placements, drop any that
break a task constraint and store the rest as a draft. A draft or rejected
plan for the same week is replaced; a pending or approved plan blocks
generation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if planFamily == "" {
			return NewCLIError("--family is required", "Run 'resolution family list' to see family ids", nil)
		}
		week, err := parseWeek(planWeek)
		if err != nil {
			return err
		}
		var opts wiring.Options
		if planProposals != "" {
			opts.Generator = application.NewFileProposalGenerator(planProposals)
		}
		return withServices(cmd.Context(), opts, func(s *wiring.AppServices) error {
			res, err := s.Planning.GenerateWeek(cmd.Context(), application.GenerateRequest{
				FamilyID:    planFamily,
				WeekStart:   week,
				RequestedBy: planActor,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"plan":      res.Plan,
					"items":     res.Items,
					"approvals": res.Approvals,
					"rejected":  res.Rejected,
					"replaced":  res.Replaced,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Generated plan %s with %d items\n", okStyle.Render("✓"), res.Plan.ID, len(res.Items))
			if res.Replaced != "" {
				fmt.Fprintln(out, mutedStyle.Render("  replaced "+res.Replaced))
			}
			if len(res.Rejected) > 0 {
				fmt.Fprintf(out, "%s %d proposals dropped:\n", warnStyle.Render("!"), len(res.Rejected))
				for _, r := range res.Rejected {
					fmt.Fprintf(out, "  - %s %s %s [%s] %s\n", r.Proposal.TaskID, r.Proposal.ScheduledDate, r.Proposal.StartTime, r.Rule, r.Reason)
				}
			}
			fmt.Fprintln(out)
			return printPlan(cmd.Context(), out, s, &application.PlanDetail{
				Plan:      res.Plan,
				Items:     res.Items,
				Approvals: res.Approvals,
				Summary:   planning.Summarize(res.Approvals),
			})
		})
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show [plan-id]",
	Short: "Show a plan by id, or the plan for --family and --week",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			detail, err := lookupPlan(cmd.Context(), s, args)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), planJSON(detail))
			}
			return printPlan(cmd.Context(), cmd.OutOrStdout(), s, detail)
		})
	},
}

func lookupPlan(ctx context.Context, s *wiring.AppServices, args []string) (*application.PlanDetail, error) {
	if len(args) == 1 {
		return s.Plans.GetPlan(ctx, args[0])
	}
	if planFamily == "" {
		return nil, NewCLIError("a plan id or --family is required", "", nil)
	}
	week, err := parseWeek(planWeek)
	if err != nil {
		return nil, err
	}
	monday := currentWeek(s)
	if week != nil {
		monday = *week
	}
	return s.Plans.FindWeek(ctx, planFamily, monday)
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a family's plans, newest week first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if planFamily == "" {
			return NewCLIError("--family is required", "", nil)
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			plans, err := s.Plans.ListPlans(cmd.Context(), planFamily)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), plans)
			}
			rows := make([]table.Row, 0, len(plans))
			for _, p := range plans {
				rows = append(rows, table.Row{p.ID, p.WeekStart.String(), string(p.Status), p.CreatedBy, formatTS(&p.ExpiresAt)})
			}
			renderTable(cmd.OutOrStdout(), []table.Column{
				{Title: "ID", Width: 36},
				{Title: "Week", Width: 10},
				{Title: "Status", Width: 16},
				{Title: "By", Width: 12},
				{Title: "Expires", Width: 16},
			}, rows)
			return nil
		})
	},
}

func planAction(use, short string, run func(ctx context.Context, s *wiring.AppServices, planID string) (*application.PlanDetail, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
				detail, err := run(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), planJSON(detail))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Plan %s is %s (%d approved, %d rejected, %d pending)\n",
					okStyle.Render("✓"), detail.Plan.ID, statusBadge(detail.Plan.Status),
					detail.Summary.Approved, detail.Summary.Rejected, detail.Summary.Pending)
				return nil
			})
		},
	}
}

var planSubmitCmd = planAction("submit", "Send a draft plan to the family for approval",
	func(ctx context.Context, s *wiring.AppServices, id string) (*application.PlanDetail, error) {
		return s.Plans.Submit(ctx, id, planActor)
	})

var planApproveCmd = planAction("approve", "Approve a pending plan as --user",
	func(ctx context.Context, s *wiring.AppServices, id string) (*application.PlanDetail, error) {
		return decide(ctx, s, id, planning.ApprovalApproved)
	})

var planRejectCmd = planAction("reject", "Reject a pending plan as --user",
	func(ctx context.Context, s *wiring.AppServices, id string) (*application.PlanDetail, error) {
		return decide(ctx, s, id, planning.ApprovalRejected)
	})

var planExpireCmd = planAction("expire", "Expire a plan that is past its deadline",
	func(ctx context.Context, s *wiring.AppServices, id string) (*application.PlanDetail, error) {
		return s.Plans.Expire(ctx, id)
	})

func decide(ctx context.Context, s *wiring.AppServices, planID string, decision planning.ApprovalStatus) (*application.PlanDetail, error) {
	if planActor == "" {
		return nil, NewCLIError("--user is required", "Decisions are recorded per family member", nil)
	}
	return s.Plans.Decide(ctx, application.DecisionRequest{
		PlanID:   planID,
		UserID:   planActor,
		Decision: decision,
		Comment:  planComment,
	})
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a plan that is not approved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			if err := s.Plans.Delete(cmd.Context(), args[0], planActor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted plan %s\n", okStyle.Render("✓"), args[0])
			return nil
		})
	},
}

var planSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire every plan past its deadline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			n, err := s.Plans.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]int{"expired": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Expired %d plans\n", okStyle.Render("✓"), n)
			return nil
		})
	},
}

func planJSON(d *application.PlanDetail) map[string]any {
	return map[string]any{
		"plan":      d.Plan,
		"items":     d.Items,
		"approvals": d.Approvals,
		"summary":   d.Summary,
	}
}

func printPlan(ctx context.Context, w io.Writer, s *wiring.AppServices, d *application.PlanDetail) error {
	names := make(map[string]string)
	tasks, err := s.Tasks.ListTasks(ctx, d.Plan.FamilyID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		names[t.ID] = t.Name
	}

	p := d.Plan
	fmt.Fprintf(w, "%s  %s\n", titleStyle.Render("Week of "+p.WeekStart.String()), statusBadge(p.Status))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s · expires %s", p.ID, formatTS(&p.ExpiresAt))))
	if p.Reasoning != "" {
		fmt.Fprintln(w, hintStyle.Render(p.Reasoning))
	}
	fmt.Fprintln(w)

	items := append([]*planning.WeeklyPlanItem(nil), d.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].Date.Compare(items[j].Date); c != 0 {
			return c < 0
		}
		return items[i].Start < items[j].Start
	})
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		name := names[it.TaskID]
		if name == "" {
			name = it.TaskID
		}
		rows = append(rows, table.Row{
			it.ID, it.Date.String() + " " + it.Date.Weekday().Short(),
			it.Start.String() + "-" + it.End.String(), name, it.AssignedUserID, strconv.Itoa(it.Version),
		})
	}
	renderTable(w, []table.Column{
		{Title: "Item", Width: 36},
		{Title: "Day", Width: 14},
		{Title: "Time", Width: 11},
		{Title: "Task", Width: 20},
		{Title: "Who", Width: 12},
		{Title: "v", Width: 3},
	}, rows)

	fmt.Fprintln(w)
	for _, a := range d.Approvals {
		line := fmt.Sprintf("  %-12s %s", a.UserID, approvalBadge(a.Status))
		if a.Comment != "" {
			line += mutedStyle.Render("  " + a.Comment)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func init() {
	planCmd.PersistentFlags().StringVar(&planFamily, "family", "", "Family id")
	planCmd.PersistentFlags().StringVar(&planWeek, "week", "", "Any date in the week (default: current week)")
	planCmd.PersistentFlags().StringVar(&planActor, "user", "", "Acting family member")
	planGenerateCmd.Flags().StringVar(&planProposals, "proposals", "", "Read proposals from a JSON file instead of the AI provider")
	planApproveCmd.Flags().StringVar(&planComment, "comment", "", "Comment stored with the decision")
	planRejectCmd.Flags().StringVar(&planComment, "comment", "", "Comment stored with the decision")

	planCmd.AddCommand(planGenerateCmd, planShowCmd, planListCmd, planSubmitCmd, planApproveCmd,
		planRejectCmd, planExpireCmd, planDeleteCmd, planSweepCmd)
	RootCmd.AddCommand(planCmd)
}
