package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
)

var (
	familyUser     string
	familyUserName string
	familyTimezone string
	memberRole     string
	memberName     string
	memberActor    string
)

var familyCmd = &cobra.Command{
	Use:   "family",
	Short: "Manage families and their members",
}

var familyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a family with you as its admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if familyUser == "" {
			return NewCLIError("--user is required", "The creator becomes the family admin", nil)
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			f, err := s.Families.CreateFamily(cmd.Context(), args[0], familyTimezone, familyUser, familyUserName)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created family %s (%s)\n", okStyle.Render("✓"), f.Name, f.ID)
			return nil
		})
	},
}

var familyAddMemberCmd = &cobra.Command{
	Use:   "add-member <family-id> <user-id>",
	Short: "Add a member or change their role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := family.ParseRole(memberRole)
		if err != nil {
			return NewCLIError(err.Error(), "Roles are admin, member and viewer", nil)
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			m := family.Member{FamilyID: args[0], UserID: args[1], DisplayName: memberName, Role: role}
			if err := s.Families.AddMember(cmd.Context(), args[0], memberActor, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s of %s\n", okStyle.Render("✓"), m.Name(), role, args[0])
			return nil
		})
	},
}

var familyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List families",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			families, err := s.Families.ListFamilies(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), families)
			}
			rows := make([]table.Row, 0, len(families))
			for _, f := range families {
				auto := "off"
				if f.AutoGenerate {
					auto = "on"
				}
				rows = append(rows, table.Row{f.ID, f.Name, f.Timezone, auto})
			}
			renderTable(cmd.OutOrStdout(), []table.Column{
				{Title: "ID", Width: 36},
				{Title: "Name", Width: 20},
				{Title: "Timezone", Width: 18},
				{Title: "Auto", Width: 5},
			}, rows)
			return nil
		})
	},
}

var familyShowCmd = &cobra.Command{
	Use:   "show <family-id>",
	Short: "Show a family and its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			f, members, err := s.Families.GetFamily(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"family": f, "members": members})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(f.Name))
			fmt.Fprintln(out, mutedStyle.Render(f.ID))
			fmt.Fprintln(out)
			rows := make([]table.Row, 0, len(members))
			for _, m := range members {
				rows = append(rows, table.Row{m.UserID, m.Name(), string(m.Role)})
			}
			renderTable(out, []table.Column{
				{Title: "User", Width: 20},
				{Title: "Name", Width: 20},
				{Title: "Role", Width: 8},
			}, rows)
			return nil
		})
	},
}

var familyAutoGenerateCmd = &cobra.Command{
	Use:       "auto-generate <family-id> <on|off>",
	Short:     "Toggle weekly plan generation by the serve scheduler",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch strings.ToLower(args[1]) {
		case "on", "true", "yes":
			enabled = true
		case "off", "false", "no":
		default:
			return NewCLIError(fmt.Sprintf("expected on or off, got %q", args[1]), "", nil)
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			if err := s.Families.SetAutoGenerate(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Auto-generation %s for %s\n", okStyle.Render("✓"), strings.ToLower(args[1]), args[0])
			return nil
		})
	},
}

func init() {
	familyCreateCmd.Flags().StringVar(&familyUser, "user", "", "Your user id; you become the admin")
	familyCreateCmd.Flags().StringVar(&familyUserName, "name", "", "Your display name")
	familyCreateCmd.Flags().StringVar(&familyTimezone, "tz", "", "Family timezone (default: workspace timezone)")

	familyAddMemberCmd.Flags().StringVar(&memberRole, "role", string(family.RoleMember), "Role: admin, member or viewer")
	familyAddMemberCmd.Flags().StringVar(&memberName, "name", "", "Display name")
	familyAddMemberCmd.Flags().StringVar(&memberActor, "by", "", "Admin performing the change")

	familyCmd.AddCommand(familyCreateCmd, familyAddMemberCmd, familyListCmd, familyShowCmd, familyAutoGenerateCmd)
	RootCmd.AddCommand(familyCmd)
}
