package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/config"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Store API keys and tokens in the OS keyring",
	Long: `Store API keys and tokens in the OS keyring. Config values of the form
"secret:<name>" and adapter secrets resolve against it. The environment
variable RESOLUTION_SECRET_<NAME> takes precedence when set.`,
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a secret; reads the value from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return NewCLIError("no value given", "Pass the value as an argument or pipe it on stdin", err)
			}
			value = strings.TrimRight(line, "\r\n")
		}
		if err := config.NewSecretResolver().Set(name, value); err != nil {
			return MapError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Stored %s (env override: %s)\n", okStyle.Render("✓"), name, config.EnvName(name))
		return nil
	},
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a secret from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.NewSecretResolver().Delete(args[0]); err != nil {
			return MapError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", okStyle.Render("✓"), args[0])
		return nil
	},
}

func init() {
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd)
	RootCmd.AddCommand(secretsCmd)
}
