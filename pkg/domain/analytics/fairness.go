package analytics

import (
	"math"
	"sort"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// BurnoutLevel is a coarse label for weekly scheduled hours.
type BurnoutLevel string

const (
	BurnoutLow    BurnoutLevel = "low"
	BurnoutMedium BurnoutLevel = "medium"
	BurnoutHigh   BurnoutLevel = "high"
)

// Thresholds in minutes; both are exclusive.
const (
	burnoutHighMinutes   = 20 * 60
	burnoutMediumMinutes = 12 * 60
)

// BurnoutRisk labels a member's total weekly scheduled minutes.
func BurnoutRisk(totalMinutes int) BurnoutLevel {
	switch {
	case totalMinutes > burnoutHighMinutes:
		return BurnoutHigh
	case totalMinutes > burnoutMediumMinutes:
		return BurnoutMedium
	default:
		return BurnoutLow
	}
}

// MemberLoad is one member's scheduled work in a week.
type MemberLoad struct {
	UserID       string       `json:"user_id"`
	TaskCount    int          `json:"task_count"`
	TotalMinutes int          `json:"total_minutes"`
	Burnout      BurnoutLevel `json:"burnout_risk"`
}

// Fairness scores how evenly task counts are spread: 1 is perfectly even,
// 0 is maximally skewed. An empty roster is perfectly fair.
func Fairness(loads []MemberLoad) float64 {
	if len(loads) == 0 {
		return 1
	}
	total := 0
	for _, l := range loads {
		total += l.TaskCount
	}
	avg := float64(total) / float64(len(loads))

	maxDev := 0.0
	for _, l := range loads {
		maxDev = math.Max(maxDev, math.Abs(float64(l.TaskCount)-avg))
	}
	return math.Max(0, 1-maxDev/math.Max(avg, 1))
}

// WeekLoad computes per-member load from a week's occurrences. Every member
// in memberIDs is present, with zero load when nothing is assigned; skipped
// occurrences are ignored. Output is ordered by memberIDs, then by any
// other assignees alphabetically.
func WeekLoad(occurrences []scheduling.ScheduledOccurrence, memberIDs []string) []MemberLoad {
	byUser := make(map[string]*MemberLoad)
	var order []string
	touch := func(id string) *MemberLoad {
		if l, ok := byUser[id]; ok {
			return l
		}
		l := &MemberLoad{UserID: id}
		byUser[id] = l
		order = append(order, id)
		return l
	}
	for _, id := range memberIDs {
		touch(id)
	}
	known := len(order)

	for _, o := range occurrences {
		if o.Status == scheduling.OccurrenceSkipped {
			continue
		}
		l := touch(o.AssignedUserID)
		l.TaskCount++
		l.TotalMinutes += o.DurationMin()
	}

	sort.Strings(order[known:])

	out := make([]MemberLoad, 0, len(order))
	for _, id := range order {
		l := byUser[id]
		l.Burnout = BurnoutRisk(l.TotalMinutes)
		out = append(out, *l)
	}
	return out
}

// WeekReport is the fairness summary for one family week.
type WeekReport struct {
	WeekStart scheduling.Date `json:"week_start"`
	Members   []MemberLoad    `json:"members"`
	Fairness  float64         `json:"fairness"`
}

// NewWeekReport builds the fairness summary for a week.
func NewWeekReport(weekStart scheduling.Date, occurrences []scheduling.ScheduledOccurrence, memberIDs []string) WeekReport {
	loads := WeekLoad(occurrences, memberIDs)
	return WeekReport{
		WeekStart: weekStart,
		Members:   loads,
		Fairness:  Fairness(loads),
	}
}
