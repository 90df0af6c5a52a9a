package analytics

import (
	"math"
	"testing"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

func occurrences(user string, n, minutes int, status scheduling.OccurrenceStatus) []scheduling.ScheduledOccurrence {
	out := make([]scheduling.ScheduledOccurrence, 0, n)
	for i := 0; i < n; i++ {
		start := scheduling.MustTimeOfDay(8+i, 0)
		out = append(out, scheduling.ScheduledOccurrence{
			AssignedUserID: user,
			Date:           scheduling.MustParseDate("2025-06-10"),
			Start:          start,
			End:            start.Add(minutes),
			Status:         status,
		})
	}
	return out
}

func TestFairness_Scenario(t *testing.T) {
	occ := append(occurrences("a", 5, 20, scheduling.OccurrencePending), occurrences("b", 1, 20, scheduling.OccurrencePending)...)
	loads := WeekLoad(occ, []string{"a", "b"})
	if loads[0].TaskCount != 5 || loads[0].TotalMinutes != 100 || loads[1].TaskCount != 1 {
		t.Fatalf("unexpected loads %+v", loads)
	}
	got := Fairness(loads)
	if math.Abs(got-1.0/3.0) > 0.005 {
		t.Errorf("expected fairness about 0.33, got %.4f", got)
	}
}

func TestFairness_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   float64
	}{
		{"empty", nil, 1},
		{"all zero", []int{0, 0, 0}, 1},
		{"even", []int{4, 4, 4}, 1},
		{"one member does everything", []int{10, 0}, 0},
		{"alone", []int{7}, 1},
		{"small counts", []int{1, 0}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var loads []MemberLoad
			for _, c := range tt.counts {
				loads = append(loads, MemberLoad{TaskCount: c})
			}
			got := Fairness(loads)
			if got < 0 || got > 1 {
				t.Fatalf("fairness %.3f out of bounds", got)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Fairness(%v) = %.3f, want %.3f", tt.counts, got, tt.want)
			}
		})
	}
}

func TestWeekLoad_IncludesIdleMembersAndSkipsSkipped(t *testing.T) {
	occ := append(occurrences("bob", 2, 30, scheduling.OccurrenceSkipped), occurrences("zed", 1, 60, scheduling.OccurrenceCompleted)...)
	loads := WeekLoad(occ, []string{"alice", "bob"})
	if len(loads) != 3 {
		t.Fatalf("expected 3 loads, got %+v", loads)
	}
	if loads[0].UserID != "alice" || loads[0].TaskCount != 0 {
		t.Errorf("idle member missing: %+v", loads[0])
	}
	if loads[1].TaskCount != 0 {
		t.Errorf("skipped occurrences counted: %+v", loads[1])
	}
	if loads[2].UserID != "zed" || loads[2].TotalMinutes != 60 {
		t.Errorf("unexpected non-member load: %+v", loads[2])
	}
}

func TestBurnoutRisk(t *testing.T) {
	tests := []struct {
		minutes int
		want    BurnoutLevel
	}{
		{0, BurnoutLow},
		{12 * 60, BurnoutLow},
		{12*60 + 1, BurnoutMedium},
		{20 * 60, BurnoutMedium},
		{20*60 + 1, BurnoutHigh},
	}
	for _, tt := range tests {
		if got := BurnoutRisk(tt.minutes); got != tt.want {
			t.Errorf("BurnoutRisk(%d) = %s, want %s", tt.minutes, got, tt.want)
		}
	}
}

func TestConflictReport(t *testing.T) {
	today := scheduling.MustParseDate("2025-06-12")
	w := func(s string) scheduling.Date { return scheduling.MustParseDate(s) }
	conflicts := []ScheduleConflict{
		{MovedTaskID: "dishes", WeekStart: w("2025-06-09"), ResolutionType: ResolutionOverlapping},
		{MovedTaskID: "run", WeekStart: w("2025-06-02"), ResolutionType: ResolutionDisplaced},
		{MovedTaskID: "laundry", WeekStart: w("2025-05-26"), ResolutionType: ResolutionShortened},
		{MovedTaskID: "run", WeekStart: w("2025-06-09"), ResolutionType: ResolutionDisplaced},
		{MovedTaskID: "dishes", WeekStart: w("2025-05-19"), ResolutionType: ResolutionOverlapping},
		{MovedTaskID: "old", WeekStart: w("2025-05-12"), ResolutionType: ResolutionDisplaced},
		{MovedTaskID: "run", WeekStart: w("2025-06-02"), ResolutionType: ResolutionShortened},
		{MovedTaskID: "laundry", WeekStart: w("2025-06-09"), ResolutionType: ResolutionDisplaced},
	}

	report := ConflictReport(conflicts, today, 0)
	if len(report) != 3 {
		t.Fatalf("expected 3 tasks in window, got %+v", report)
	}
	if report[0].TaskID != "run" || report[0].TotalMoves != 3 {
		t.Errorf("expected run first with 3 moves, got %+v", report[0])
	}
	if report[1].TaskID != "dishes" || report[2].TaskID != "laundry" {
		t.Errorf("ties should keep first-seen order, got %s, %s", report[1].TaskID, report[2].TaskID)
	}
	run := report[0]
	if len(run.ByWeek) != 2 || run.ByWeek[0].WeekStart != w("2025-06-02") || run.ByWeek[0].Moves != 2 {
		t.Errorf("unexpected weekly breakdown %+v", run.ByWeek)
	}
	if run.ByType[ResolutionDisplaced] != 2 || run.ByType[ResolutionShortened] != 1 {
		t.Errorf("unexpected type breakdown %+v", run.ByType)
	}

	if got := ConflictWindowStart(today, 1); got != w("2025-06-09") {
		t.Errorf("one-week window should start this Monday, got %s", got)
	}
}
