package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/config"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

var (
	initTimezone string
	initDBDriver string
	initDBDSN    string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace in the current directory",
	Long: `Create .resolution/ with a default config.yaml and an empty database.
An existing config is left untouched, so init is safe to re-run after an
upgrade to apply database migrations.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		ws := storage.NewWorkspace(root)
		if err := ws.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize workspace: %w", err)
		}

		created := false
		if _, err := os.Stat(ws.ConfigPath()); os.IsNotExist(err) {
			cfg := config.Default()
			if initTimezone != "" {
				if _, err := time.LoadLocation(initTimezone); err != nil {
					return NewCLIError(fmt.Sprintf("unknown timezone %q", initTimezone), "Use an IANA name such as Europe/Berlin", err)
				}
				cfg.Timezone = initTimezone
			}
			if initDBDriver != "" {
				cfg.Database.Driver = initDBDriver
				cfg.Database.DSN = initDBDSN
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(ws, cfg); err != nil {
				return err
			}
			created = true
		}

		// Building the services opens the database and runs migrations.
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "%s Initialized workspace in %s\n", okStyle.Render("✓"), ws.Dir())
			} else {
				fmt.Fprintf(out, "%s Workspace already initialized; config kept, migrations applied\n", okStyle.Render("✓"))
			}
			fmt.Fprintf(out, "  database: %s\n", s.Config.Database.Driver)
			fmt.Fprintf(out, "  ai:       %s/%s\n", s.Config.AI.Provider, s.Config.AI.Model)
			fmt.Fprintln(out, hintStyle.Render("Next: resolution family create <name> --user <id>"))
			return nil
		})
	},
}

func init() {
	initCmd.Flags().StringVar(&initTimezone, "tz", "", "IANA timezone for week boundaries (default: local time)")
	initCmd.Flags().StringVar(&initDBDriver, "db-driver", "", "Database driver: sqlite or postgres")
	initCmd.Flags().StringVar(&initDBDSN, "db-dsn", "", "Database DSN (file path for sqlite)")
	RootCmd.AddCommand(initCmd)
}
