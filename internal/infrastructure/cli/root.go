package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	projectPath string
	debugMode   bool
	jsonOutput  bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "resolution",
	Version: Version,
	Short:   "Fair weekly plans for families",
	Long: `Resolution plans a family's week. It asks a model for a schedule of
recurring household tasks and personal resolutions, keeps only the
placements that respect every task's constraints, and runs the result
through member approval. Plans can be edited concurrently; every edit is
version checked and sends the plan back for approval.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints the error with its hint.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

// ExitCode is the process exit status for err.
func ExitCode(err error) int {
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.ExitCode > 0 {
		return cliErr.ExitCode
	}
	if err != nil {
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		_, _ = fmt.Fprintln(w, errorStyle.Render("Error: ")+cliErr.Message)
		if cliErr.Hint != "" {
			_, _ = fmt.Fprintln(w, hintStyle.Render("Hint: "+cliErr.Hint))
		}
		return
	}
	_, _ = fmt.Fprintln(w, errorStyle.Render("Error: ")+err.Error())
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectPath, "dir", "C", "", "Workspace root (default: current directory)")
	RootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log at debug level and mirror logs to stderr")
	RootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	RootCmd.SetVersionTemplate(fmt.Sprintf("resolution %s (commit %s, built %s)\n", Version, Commit, Date))
}
