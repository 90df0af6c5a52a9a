package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

var (
	occFamily string
	occWeek   string
	occActor  string
	occDate   string
	occStart  string
	occEnd    string
)

var occurrenceCmd = &cobra.Command{
	Use:     "occurrence",
	Aliases: []string{"occ"},
	Short:   "Track the scheduled occurrences of approved plans",
}

var occurrenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a family's occurrences for a week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if occFamily == "" {
			return NewCLIError("--family is required", "", nil)
		}
		week, err := parseWeek(occWeek)
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			monday := currentWeek(s)
			if week != nil {
				monday = *week
			}
			occs, err := s.Occurrences.ListWeek(cmd.Context(), occFamily, monday)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), occs)
			}
			rows := make([]table.Row, 0, len(occs))
			for _, o := range occs {
				moved := ""
				if o.ManuallyMoved {
					moved = "moved"
				}
				rows = append(rows, table.Row{
					o.ID, o.Date.String(), o.Start.String() + "-" + o.End.String(),
					o.TaskID, o.AssignedUserID, string(o.Status), moved,
				})
			}
			renderTable(cmd.OutOrStdout(), []table.Column{
				{Title: "ID", Width: 36},
				{Title: "Date", Width: 10},
				{Title: "Time", Width: 11},
				{Title: "Task", Width: 36},
				{Title: "Who", Width: 12},
				{Title: "Status", Width: 9},
				{Title: "", Width: 5},
			}, rows)
			return nil
		})
	},
}

func occurrenceAction(use, short string, run func(*application.OccurrenceService, context.Context, string, string) (*scheduling.ScheduledOccurrence, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <occurrence-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
				occ, err := run(s.Occurrences, cmd.Context(), args[0], occActor)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), occ)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Occurrence %s is %s\n", okStyle.Render("✓"), occ.ID, occ.Status)
				return nil
			})
		},
	}
}

var occurrenceCompleteCmd = occurrenceAction("complete", "Mark an occurrence done", (*application.OccurrenceService).Complete)

var occurrenceSkipCmd = occurrenceAction("skip", "Mark an occurrence skipped", (*application.OccurrenceService).Skip)

var occurrenceMoveCmd = &cobra.Command{
	Use:   "move <occurrence-id>",
	Short: "Move a pending occurrence and record any overlaps it causes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := scheduling.ParseDate(occDate)
		if err != nil {
			return NewCLIError(fmt.Sprintf("invalid --date %q", occDate), "Use YYYY-MM-DD", err)
		}
		start, err := parseTime("start", occStart)
		if err != nil {
			return err
		}
		if start == nil {
			return NewCLIError("--start is required", "", nil)
		}
		end, err := parseTime("end", occEnd)
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			occ, conflicts, err := s.Occurrences.Move(cmd.Context(), application.MoveRequest{
				OccurrenceID: args[0],
				Date:         date,
				Start:        *start,
				End:          end,
				ActorID:      occActor,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"occurrence": occ, "conflicts": conflicts})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Moved to %s %s-%s\n", okStyle.Render("✓"), occ.Date, occ.Start, occ.End)
			for _, c := range conflicts {
				fmt.Fprintf(out, "%s overlaps %s (%s)\n", warnStyle.Render("  !"), c.DisplacedTaskID, c.ResolutionType)
			}
			return nil
		})
	},
}

func init() {
	occurrenceCmd.PersistentFlags().StringVar(&occActor, "by", "", "Acting family member")
	occurrenceListCmd.Flags().StringVar(&occFamily, "family", "", "Family id")
	occurrenceListCmd.Flags().StringVar(&occWeek, "week", "", "Any date in the week (default: current week)")
	occurrenceMoveCmd.Flags().StringVar(&occDate, "date", "", "New date YYYY-MM-DD")
	occurrenceMoveCmd.Flags().StringVar(&occStart, "start", "", "New start time HH:MM")
	occurrenceMoveCmd.Flags().StringVar(&occEnd, "end", "", "New end time HH:MM (default: keep the duration)")

	occurrenceCmd.AddCommand(occurrenceListCmd, occurrenceCompleteCmd, occurrenceSkipCmd, occurrenceMoveCmd)
	RootCmd.AddCommand(occurrenceCmd)
}
