package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

var (
	taskFamily        string
	taskOwner         string
	taskType          string
	taskMode          string
	taskDuration      int
	taskMinDuration   int
	taskMaxDuration   int
	taskPriority      int
	taskFixedDays     string
	taskFixedTime     string
	taskFrequency     int
	taskPeriod        string
	taskRequiredDays  string
	taskPreferredDays string
	taskWindow        string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage recurring task definitions",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Define a recurring task",
	Long: `Define a recurring task.

Fixed tasks happen on --days at --time. Flexible tasks happen --frequency
times per --period, always on --required-days and preferably on
--preferred-days inside --window.`,
	Example: `  resolution task add "Morning run" --owner alice --type resolution --mode fixed --days mon,wed,fri --time 07:00 --duration 30
  resolution task add Dishes --family f1 --owner bob --mode flexible --frequency 3 --period week --window 18:00-21:00`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := taskFromFlags(args[0])
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			if err := s.Tasks.AddTask(cmd.Context(), t); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added task %s (%s)\n", okStyle.Render("✓"), t.Name, t.ID)
			return nil
		})
	},
}

func taskFromFlags(name string) (*scheduling.TaskDefinition, error) {
	t := &scheduling.TaskDefinition{
		Name:            name,
		OwnerID:         taskOwner,
		FamilyID:        taskFamily,
		Type:            scheduling.TaskType(taskType),
		Mode:            scheduling.SchedulingMode(taskMode),
		DurationMin:     taskDuration,
		MinDurationMin:  taskMinDuration,
		MaxDurationMin:  taskMaxDuration,
		Priority:        taskPriority,
		Frequency:       taskFrequency,
		FrequencyPeriod: scheduling.FrequencyPeriod(taskPeriod),
	}
	var err error
	if t.FixedDays, err = parseDays("days", taskFixedDays); err != nil {
		return nil, err
	}
	if t.RequiredDays, err = parseDays("required-days", taskRequiredDays); err != nil {
		return nil, err
	}
	if t.PreferredDays, err = parseDays("preferred-days", taskPreferredDays); err != nil {
		return nil, err
	}
	if t.FixedTime, err = parseTime("time", taskFixedTime); err != nil {
		return nil, err
	}
	if t.PreferredWindow, err = parseWindow(taskWindow); err != nil {
		return nil, err
	}
	if t.Mode == scheduling.ModeFixed {
		t.Frequency, t.FrequencyPeriod = 0, ""
	}
	return t, nil
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			tasks, err := s.Tasks.ListTasks(cmd.Context(), taskFamily)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			rows := make([]table.Row, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, table.Row{
					t.ID, t.Name, string(t.Type), t.OwnerID,
					strconv.Itoa(t.DurationMin) + "m", strconv.Itoa(t.Priority), cadence(t),
				})
			}
			renderTable(cmd.OutOrStdout(), []table.Column{
				{Title: "ID", Width: 36},
				{Title: "Name", Width: 20},
				{Title: "Type", Width: 10},
				{Title: "Owner", Width: 12},
				{Title: "Len", Width: 5},
				{Title: "Pri", Width: 3},
				{Title: "When", Width: 28},
			}, rows)
			return nil
		})
	},
}

func cadence(t *scheduling.TaskDefinition) string {
	if t.Mode == scheduling.ModeFixed {
		when := t.FixedDays.String()
		if t.FixedTime != nil {
			when += " at " + t.FixedTime.String()
		}
		return when
	}
	when := fmt.Sprintf("%dx per %s", t.Frequency, t.FrequencyPeriod)
	if t.PreferredWindow != nil {
		when += fmt.Sprintf(" %s-%s", t.PreferredWindow.Start, t.PreferredWindow.End)
	}
	return when
}

var taskImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update tasks from a YAML file",
	Long: `Create or update tasks from a YAML file with a top-level "tasks" list.
Tasks with a known id are updated; the rest are created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			created, updated, err := s.Tasks.ImportTasks(cmd.Context(), data, taskFamily)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]int{"created": created, "updated": updated})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d new and %d updated tasks\n", okStyle.Render("✓"), created, updated)
			return nil
		})
	},
}

func init() {
	f := taskAddCmd.Flags()
	f.StringVar(&taskOwner, "owner", "", "User who owns the task")
	f.StringVar(&taskType, "type", string(scheduling.TaskTypeHousehold), "Task type: resolution or household")
	f.StringVar(&taskMode, "mode", string(scheduling.ModeFlexible), "Scheduling mode: fixed or flexible")
	f.IntVar(&taskDuration, "duration", 30, "Duration in minutes")
	f.IntVar(&taskMinDuration, "min-duration", 0, "Shortest acceptable duration in minutes")
	f.IntVar(&taskMaxDuration, "max-duration", 0, "Longest acceptable duration in minutes")
	f.IntVar(&taskPriority, "priority", 0, "Priority from 1 (highest) to 4 (lowest, default)")
	f.StringVar(&taskFixedDays, "days", "", "Fixed days, e.g. mon,wed,fri")
	f.StringVar(&taskFixedTime, "time", "", "Fixed start time HH:MM")
	f.IntVar(&taskFrequency, "frequency", 1, "Occurrences per period for flexible tasks")
	f.StringVar(&taskPeriod, "period", string(scheduling.PeriodWeek), "Frequency period: day or week")
	f.StringVar(&taskRequiredDays, "required-days", "", "Days a flexible task must occur on")
	f.StringVar(&taskPreferredDays, "preferred-days", "", "Days a flexible task should occur on")
	f.StringVar(&taskWindow, "window", "", "Preferred time window HH:MM-HH:MM")

	taskCmd.PersistentFlags().StringVar(&taskFamily, "family", "", "Family id")
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskImportCmd)
	RootCmd.AddCommand(taskCmd)
}
