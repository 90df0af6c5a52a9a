package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// parseWeek returns the Monday of the week containing value, or nil for
// the current week.
func parseWeek(value string) (*scheduling.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := scheduling.ParseDate(value)
	if err != nil {
		return nil, NewCLIError(fmt.Sprintf("invalid week %q", value), "Use a date such as 2025-03-10", err)
	}
	monday := d.Monday()
	return &monday, nil
}

func parseTime(flag, value string) (*scheduling.TimeOfDay, error) {
	if value == "" {
		return nil, nil
	}
	t, err := scheduling.ParseTimeOfDay(value)
	if err != nil {
		return nil, NewCLIError(fmt.Sprintf("invalid --%s %q", flag, value), "Use 24h HH:MM", err)
	}
	return &t, nil
}

// parseWindow reads "HH:MM-HH:MM".
func parseWindow(value string) (*scheduling.TimeWindow, error) {
	if value == "" {
		return nil, nil
	}
	from, to, ok := strings.Cut(value, "-")
	if !ok {
		return nil, NewCLIError(fmt.Sprintf("invalid window %q", value), "Use HH:MM-HH:MM, e.g. 18:00-21:00", nil)
	}
	start, err := parseTime("window", strings.TrimSpace(from))
	if err != nil {
		return nil, err
	}
	end, err := parseTime("window", strings.TrimSpace(to))
	if err != nil {
		return nil, err
	}
	w := scheduling.TimeWindow{Start: *start, End: *end}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

func parseDays(flag, value string) (scheduling.Weekdays, error) {
	days, err := scheduling.ParseWeekdayList(value)
	if err != nil {
		return nil, NewCLIError(fmt.Sprintf("invalid --%s %q", flag, value), "Use a list such as mon,wed,fri", err)
	}
	return days, nil
}

// currentWeek is the Monday of today in the workspace timezone.
func currentWeek(s *wiring.AppServices) scheduling.Date {
	loc := time.Local
	if l, err := s.Config.Location(); err == nil && l != nil {
		loc = l
	}
	return scheduling.DateOf(time.Now(), loc).Monday()
}

func formatTS(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
