package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
)

var (
	auditFamily string
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained event log",
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent events, newest last",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			history, err := s.Audit.History(auditFamily)
			if err != nil {
				return err
			}
			if auditLimit > 0 && len(history) > auditLimit {
				history = history[len(history)-auditLimit:]
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), history)
			}
			rows := make([]table.Row, 0, len(history))
			for _, e := range history {
				rows = append(rows, table.Row{formatTS(&e.Timestamp), e.Type, e.Actor, e.String()})
			}
			renderTable(cmd.OutOrStdout(), []table.Column{
				{Title: "When", Width: 16},
				{Title: "Event", Width: 24},
				{Title: "Actor", Width: 12},
				{Title: "Description", Width: 44},
			}, rows)
			return nil
		})
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that no logged event was altered or removed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			n, err := s.Audit.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d events verified\n", okStyle.Render("✓"), n)
			return nil
		})
	},
}

func init() {
	auditLogCmd.Flags().StringVar(&auditFamily, "family", "", "Only events of this family")
	auditLogCmd.Flags().IntVar(&auditLimit, "limit", 50, "Show at most this many events (0 for all)")
	auditCmd.AddCommand(auditLogCmd, auditVerifyCmd)
	RootCmd.AddCommand(auditCmd)
}
