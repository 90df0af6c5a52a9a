package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI for this week's plans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), wiring.Options{}, func(s *wiring.AppServices) error {
			views, err := loadFamilyViews(cmd.Context(), s, currentWeek(s))
			if err != nil {
				return err
			}
			if os.Getenv("RESOLUTION_SKIP_DASHBOARD_RUN") == "true" {
				return nil
			}
			p := tea.NewProgram(newDashboardModel(views, generations(s)))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("dashboard run failed: %w", err)
			}
			return nil
		})
	},
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
}

var dashboardFrame = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

var dashboardHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

// familyView is one family's week as shown on a dashboard page.
type familyView struct {
	Name   string
	Week   scheduling.Date
	Status planning.PlanStatus // empty when the week has no plan
	Rows   []table.Row
	Report *analytics.WeekReport
}

func loadFamilyViews(ctx context.Context, s *wiring.AppServices, week scheduling.Date) ([]familyView, error) {
	families, err := s.Families.ListFamilies(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]familyView, 0, len(families))
	for _, f := range families {
		v := familyView{Name: f.Name, Week: week}

		names := make(map[string]string)
		tasks, err := s.Tasks.ListTasks(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			names[t.ID] = t.Name
		}

		detail, err := s.Plans.FindWeek(ctx, f.ID, week)
		switch {
		case errors.Is(err, planning.ErrPlanNotFound):
		case err != nil:
			return nil, err
		default:
			v.Status = detail.Plan.Status
			for _, it := range detail.Items {
				v.Rows = append(v.Rows, table.Row{
					it.Date.Weekday().Short(), it.Start.String() + "-" + it.End.String(),
					names[it.TaskID], it.AssignedUserID,
				})
			}
		}

		if v.Report, err = s.Analytics.WeekReport(ctx, f.ID, &week); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func generations(s *wiring.AppServices) int {
	stats, err := s.Usage.GetUsage()
	if err != nil || stats == nil {
		return 0
	}
	return stats.Generations
}

type dashboardModel struct {
	views       []familyView
	current     int
	table       table.Model
	generations int
}

func newDashboardModel(views []familyView, generations int) dashboardModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Day", Width: 4},
			{Title: "Time", Width: 11},
			{Title: "Task", Width: 28},
			{Title: "Who", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.Foreground(lipgloss.Color("229"))
	t.SetStyles(s)

	m := dashboardModel{views: views, table: t, generations: generations}
	m.show(0)
	return m
}

func (m *dashboardModel) show(i int) {
	if len(m.views) == 0 {
		return
	}
	m.current = (i + len(m.views)) % len(m.views)
	m.table.SetRows(m.views[m.current].Rows)
	m.table.SetCursor(0)
}

func (m dashboardModel) Init() tea.Cmd { return nil }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			m.show(m.current + 1)
			return m, nil
		case "shift+tab", "left", "h":
			m.show(m.current - 1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	if len(m.views) == 0 {
		return "No families yet. Run 'resolution family create' first.\nPress q to quit.\n"
	}
	v := m.views[m.current]

	header := dashboardHeader.Render(fmt.Sprintf("%s · week of %s", v.Name, v.Week))
	status := mutedStyle.Render("no plan for this week")
	if v.Status != "" {
		status = "Plan: " + statusBadge(v.Status)
	}

	var load strings.Builder
	if v.Report != nil {
		fmt.Fprintf(&load, "Fairness %.2f\n", v.Report.Fairness)
		for _, ml := range v.Report.Members {
			fmt.Fprintf(&load, "  %-14s %2d tasks %5sh  %s\n", ml.UserID, ml.TaskCount, hours(ml.TotalMinutes), burnoutBadge(ml.Burnout))
		}
	}

	footer := mutedStyle.Render(fmt.Sprintf("%d/%d · %d generations · tab next family · q quit",
		m.current+1, len(m.views), m.generations))

	return dashboardFrame.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			status,
			"",
			m.table.View(),
			"",
			load.String(),
			footer,
		),
	) + "\n"
}
