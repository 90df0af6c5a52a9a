package scheduling

import (
	"context"
	"fmt"
)

// OccurrenceReader is the storage view the aggregator needs.
type OccurrenceReader interface {
	ListOccurrences(ctx context.Context, taskIDs []string, from, to Date) ([]ScheduledOccurrence, error)
}

// Fulfillment summarizes the placements a task already has in a range.
type Fulfillment struct {
	Count int
	Dates DateSet
}

// Summary describes partial fulfillment for the proposal generator,
// e.g. "3 of 5 placements already exist".
func (f Fulfillment) Summary(task TaskDefinition) string {
	return fmt.Sprintf("%d of %d placements already exist", f.Count, task.WeeklyTarget())
}

// Remaining is how many placements the task still wants this week.
func (f Fulfillment) Remaining(task TaskDefinition) int {
	if r := task.WeeklyTarget() - f.Count; r > 0 {
		return r
	}
	return 0
}

// Aggregator counts already-scheduled occurrences per task. It is read-only.
type Aggregator struct {
	reader OccurrenceReader
}

func NewAggregator(reader OccurrenceReader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Aggregate returns one entry per requested task for the inclusive range
// [from, to]. Skipped occurrences do not count.
func (a *Aggregator) Aggregate(ctx context.Context, taskIDs []string, from, to Date) (map[string]Fulfillment, error) {
	result := make(map[string]Fulfillment, len(taskIDs))
	for _, id := range taskIDs {
		result[id] = Fulfillment{Dates: DateSet{}}
	}
	if len(taskIDs) == 0 {
		return result, nil
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to, from)
	}

	occurrences, err := a.reader.ListOccurrences(ctx, taskIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}

	for _, occ := range occurrences {
		f, ok := result[occ.TaskID]
		if !ok || !occ.Status.CountsTowardFrequency() || !occ.Date.Between(from, to) {
			continue
		}
		f.Count++
		f.Dates.Add(occ.Date)
		result[occ.TaskID] = f
	}
	return result, nil
}
