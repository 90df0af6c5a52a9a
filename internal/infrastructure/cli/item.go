package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

var (
	itemVersion int
	itemEditor  string
	itemAssign  string
	itemDate    string
	itemStart   string
	itemReason  string
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Edit items of a draft or pending plan",
	Long: `Edit items of a draft or pending plan. Every edit names the --version
you last saw; if someone else changed the item since, the edit is refused
with exit code 3. An applied edit returns the plan to draft and clears all
approvals.`,
}

var itemEditCmd = &cobra.Command{
	Use:   "edit <item-id>",
	Short: "Reassign or move a plan item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes, err := itemChanges(cmd)
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			res, err := s.Items.EditItem(cmd.Context(), application.EditRequest{
				ItemID:          args[0],
				Changes:         changes,
				ExpectedVersion: itemVersion,
				EditorID:        itemEditor,
			})
			if err != nil {
				return err
			}
			return reportEdit(cmd.OutOrStdout(), res, false)
		})
	},
}

func itemChanges(cmd *cobra.Command) (planning.ItemChanges, error) {
	var c planning.ItemChanges
	flags := cmd.Flags()
	if flags.Changed("assign") {
		c.AssignedUserID = &itemAssign
	}
	if flags.Changed("reason") {
		c.Reasoning = &itemReason
	}
	if flags.Changed("date") {
		d, err := scheduling.ParseDate(itemDate)
		if err != nil {
			return c, NewCLIError(fmt.Sprintf("invalid --date %q", itemDate), "Use YYYY-MM-DD", err)
		}
		c.Date = &d
	}
	if flags.Changed("start") {
		t, err := parseTime("start", itemStart)
		if err != nil {
			return c, err
		}
		c.Start = t
	}
	if c.IsEmpty() {
		return c, NewCLIError("nothing to change", "Pass at least one of --assign, --date, --start or --reason", nil)
	}
	return c, nil
}

var itemDeleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Remove an item from its plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			res, err := s.Items.DeleteItem(cmd.Context(), args[0], itemVersion, itemEditor)
			if err != nil {
				return err
			}
			return reportEdit(cmd.OutOrStdout(), res, true)
		})
	},
}

func reportEdit(w io.Writer, res *application.EditResult, deleted bool) error {
	if jsonOutput {
		if err := printJSON(w, res); err != nil {
			return err
		}
	}
	switch res.Outcome {
	case application.OutcomeConflict:
		e := NewCLIError("edit rejected: "+res.Conflict.String(), "Run 'resolution plan show' and retry with the current --version", planning.ErrVersionConflict)
		e.ExitCode = exitConflict
		return e
	case application.OutcomeNoop:
		if !jsonOutput {
			fmt.Fprintln(w, mutedStyle.Render("No change; the item already has those values"))
		}
		return nil
	}
	if jsonOutput {
		return nil
	}
	if deleted {
		fmt.Fprintf(w, "%s Item deleted; plan %s is back to %s\n", okStyle.Render("✓"), res.Plan.ID, statusBadge(res.Plan.Status))
		return nil
	}
	fmt.Fprintf(w, "%s Item %s is now at version %d\n", okStyle.Render("✓"), res.Item.ID, res.Item.Version)
	for _, ch := range res.Changes {
		fmt.Fprintf(w, "  %s: %s → %s\n", ch.Field, ch.From, ch.To)
	}
	for _, c := range res.Conflicts {
		fmt.Fprintf(w, "%s %s now overlaps %s (%s)\n", warnStyle.Render("  !"), c.MovedTaskID, c.DisplacedTaskID, c.ResolutionType)
	}
	fmt.Fprintln(w, hintStyle.Render("The plan needs approval again"))
	return nil
}

func init() {
	itemCmd.PersistentFlags().IntVar(&itemVersion, "version", 0, "Item version you last saw (required)")
	itemCmd.PersistentFlags().StringVar(&itemEditor, "by", "", "Editing family member (required)")
	_ = itemCmd.MarkPersistentFlagRequired("version")
	_ = itemCmd.MarkPersistentFlagRequired("by")

	itemEditCmd.Flags().StringVar(&itemAssign, "assign", "", "New assignee user id")
	itemEditCmd.Flags().StringVar(&itemDate, "date", "", "New date YYYY-MM-DD")
	itemEditCmd.Flags().StringVar(&itemStart, "start", "", "New start time HH:MM")
	itemEditCmd.Flags().StringVar(&itemReason, "reason", "", "New reasoning note")

	itemCmd.AddCommand(itemEditCmd, itemDeleteCmd)
	RootCmd.AddCommand(itemCmd)
}
