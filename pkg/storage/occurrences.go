package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// ErrOccurrenceNotFound indicates the occurrence does not exist.
var ErrOccurrenceNotFound = errors.New("occurrence not found")

const occurrenceColumns = `id, task_id, family_id, assigned_user_id, date, start_min, end_min, status, manually_moved, plan_item_id, created_at, updated_at`

// CreateOccurrences inserts occurrences; familyID scopes them for family queries.
func (s *SQLStore) CreateOccurrences(ctx context.Context, occurrences []scheduling.ScheduledOccurrence) error {
	for _, o := range occurrences {
		_, err := s.exec(ctx,
			`INSERT INTO occurrences (`+occurrenceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.TaskID, o.FamilyID, o.AssignedUserID, o.Date.String(), o.Start.Minutes(), o.End.Minutes(),
			string(o.Status), boolToInt(o.ManuallyMoved), o.PlanItemID, formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to create occurrence %s: %w", o.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) GetOccurrence(ctx context.Context, id string) (*scheduling.ScheduledOccurrence, error) {
	row := s.queryRow(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE id = ?`, id)
	o, err := scanOccurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOccurrenceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOccurrence writes the mutable fields: status and time placement.
func (s *SQLStore) UpdateOccurrence(ctx context.Context, o *scheduling.ScheduledOccurrence) error {
	res, err := s.exec(ctx,
		`UPDATE occurrences SET date = ?, start_min = ?, end_min = ?, status = ?, manually_moved = ?, updated_at = ? WHERE id = ?`,
		o.Date.String(), o.Start.Minutes(), o.End.Minutes(), string(o.Status), boolToInt(o.ManuallyMoved), formatTime(o.UpdatedAt), o.ID)
	if err != nil {
		return fmt.Errorf("failed to update occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrOccurrenceNotFound, o.ID)
	}
	return nil
}

// ListOccurrences returns occurrences of the given tasks dated within
// [from, to], regardless of status.
func (s *SQLStore) ListOccurrences(ctx context.Context, taskIDs []string, from, to scheduling.Date) ([]scheduling.ScheduledOccurrence, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(taskIDs)+2)
	for _, id := range taskIDs {
		args = append(args, id)
	}
	args = append(args, from.String(), to.String())
	return s.listOccurrences(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences
		 WHERE task_id IN (`+placeholders(len(taskIDs))+`) AND date >= ? AND date <= ?
		 ORDER BY date, start_min, id`, args...)
}

// ListFamilyOccurrences returns the family's occurrences dated within [from, to].
func (s *SQLStore) ListFamilyOccurrences(ctx context.Context, familyID string, from, to scheduling.Date) ([]scheduling.ScheduledOccurrence, error) {
	return s.listOccurrences(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences
		 WHERE family_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, start_min, id`, familyID, from.String(), to.String())
}

func (s *SQLStore) listOccurrences(ctx context.Context, q string, args ...any) ([]scheduling.ScheduledOccurrence, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []scheduling.ScheduledOccurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOccurrence(sc scanner) (scheduling.ScheduledOccurrence, error) {
	var (
		o                scheduling.ScheduledOccurrence
		date, status     string
		start, end       int
		moved            int
		created, updated string
	)
	if err := sc.Scan(&o.ID, &o.TaskID, &o.FamilyID, &o.AssignedUserID, &date, &start, &end, &status, &moved, &o.PlanItemID, &created, &updated); err != nil {
		return o, err
	}
	var err error
	if o.Date, err = scheduling.ParseDate(date); err != nil {
		return o, fmt.Errorf("invalid occurrence date: %w", err)
	}
	o.Start = scheduling.TimeOfDay(start)
	o.End = scheduling.TimeOfDay(end)
	o.Status = scheduling.OccurrenceStatus(status)
	o.ManuallyMoved = moved != 0
	if o.CreatedAt, err = parseTime(created); err != nil {
		return o, err
	}
	if o.UpdatedAt, err = parseTime(updated); err != nil {
		return o, err
	}
	return o, nil
}
