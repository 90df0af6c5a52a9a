package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
)

var (
	reportFamily string
	reportWeeks  int
	reportWeek   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Conflict and fairness reports",
}

var reportConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show which tasks were moved most over recent weeks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportFamily == "" {
			return NewCLIError("--family is required", "", nil)
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			report, err := s.Analytics.ConflictReport(cmd.Context(), reportFamily, reportWeeks)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			rows := make([]table.Row, 0, len(report))
			for _, tc := range report {
				rows = append(rows, table.Row{tc.TaskID, strconv.Itoa(tc.TotalMoves), byType(tc.ByType), byWeek(tc.ByWeek)})
			}
			renderTable(cmd.OutOrStdout(), []table.Column{
				{Title: "Task", Width: 36},
				{Title: "Moves", Width: 5},
				{Title: "Kinds", Width: 34},
				{Title: "Weeks", Width: 30},
			}, rows)
			return nil
		})
	},
}

func byType(m map[analytics.ResolutionType]int) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s %d", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func byWeek(weeks []analytics.WeekCount) string {
	parts := make([]string, 0, len(weeks))
	for _, w := range weeks {
		parts = append(parts, fmt.Sprintf("%s:%d", w.WeekStart.String()[5:], w.Moves))
	}
	return strings.Join(parts, " ")
}

var reportFairnessCmd = &cobra.Command{
	Use:   "fairness",
	Short: "Show each member's load for a week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportFamily == "" {
			return NewCLIError("--family is required", "", nil)
		}
		week, err := parseWeek(reportWeek)
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			report, err := s.Analytics.WeekReport(cmd.Context(), reportFamily, week)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  fairness %.2f\n\n", titleStyle.Render("Week of "+report.WeekStart.String()), report.Fairness)
			rows := make([]table.Row, 0, len(report.Members))
			for _, m := range report.Members {
				rows = append(rows, table.Row{m.UserID, strconv.Itoa(m.TaskCount), hours(m.TotalMinutes), string(m.Burnout)})
			}
			renderTable(out, []table.Column{
				{Title: "Member", Width: 16},
				{Title: "Tasks", Width: 5},
				{Title: "Hours", Width: 6},
				{Title: "Burnout", Width: 8},
			}, rows)
			return nil
		})
	},
}

func hours(minutes int) string {
	return strconv.FormatFloat(float64(minutes)/60, 'f', 1, 64)
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportFamily, "family", "", "Family id")
	reportConflictsCmd.Flags().IntVar(&reportWeeks, "weeks", 0, "Trailing weeks to include (default: config planning.conflict_weeks)")
	reportFairnessCmd.Flags().StringVar(&reportWeek, "week", "", "Any date in the week (default: current week)")
	reportCmd.AddCommand(reportConflictsCmd, reportFairnessCmd)
	RootCmd.AddCommand(reportCmd)
}
