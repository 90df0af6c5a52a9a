package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

func statusBadge(status planning.PlanStatus) string {
	label := strings.ToUpper(string(status))
	switch status {
	case planning.StatusApproved:
		return okStyle.Render(label)
	case planning.StatusRejected:
		return errorStyle.Render(label)
	case planning.StatusPendingApproval:
		return pendingStyle.Render(label)
	case planning.StatusExpired:
		return mutedStyle.Render(label)
	default:
		return warnStyle.Render(label)
	}
}

func approvalBadge(status planning.ApprovalStatus) string {
	switch status {
	case planning.ApprovalApproved:
		return okStyle.Render(string(status))
	case planning.ApprovalRejected:
		return errorStyle.Render(string(status))
	default:
		return mutedStyle.Render(string(status))
	}
}

func burnoutBadge(level analytics.BurnoutLevel) string {
	switch level {
	case analytics.BurnoutHigh:
		return errorStyle.Render(string(level))
	case analytics.BurnoutMedium:
		return warnStyle.Render(string(level))
	default:
		return okStyle.Render(string(level))
	}
}

// newTable builds a non-interactive table sized to its rows.
func newTable(columns []table.Column, rows []table.Row) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t
}

func renderTable(w io.Writer, columns []table.Column, rows []table.Row) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("  (none)"))
		return
	}
	_, _ = fmt.Fprintln(w, newTable(columns, rows).View())
}
