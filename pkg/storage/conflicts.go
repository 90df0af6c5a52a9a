package storage

import (
	"context"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// AppendConflict records a reschedule conflict. Conflicts are never updated.
func (s *SQLStore) AppendConflict(ctx context.Context, c analytics.ScheduleConflict) error {
	_, err := s.exec(ctx,
		`INSERT INTO schedule_conflicts (id, family_id, moved_task_id, displaced_task_id, week_start, resolution_type, recorded_by, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FamilyID, c.MovedTaskID, c.DisplacedTaskID, c.WeekStart.String(), string(c.ResolutionType), c.RecordedBy, formatTime(c.RecordedAt))
	if err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}
	return nil
}

// ListConflicts returns the family's conflicts for weeks starting on or after since.
func (s *SQLStore) ListConflicts(ctx context.Context, familyID string, since scheduling.Date) ([]analytics.ScheduleConflict, error) {
	rows, err := s.query(ctx,
		`SELECT id, family_id, moved_task_id, displaced_task_id, week_start, resolution_type, recorded_by, recorded_at
		 FROM schedule_conflicts WHERE family_id = ? AND week_start >= ? ORDER BY recorded_at, id`,
		familyID, since.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []analytics.ScheduleConflict
	for rows.Next() {
		var (
			c                          analytics.ScheduleConflict
			week, resolution, recorded string
		)
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.MovedTaskID, &c.DisplacedTaskID, &week, &resolution, &c.RecordedBy, &recorded); err != nil {
			return nil, err
		}
		if c.WeekStart, err = scheduling.ParseDate(week); err != nil {
			return nil, fmt.Errorf("invalid conflict week: %w", err)
		}
		if c.ResolutionType, err = analytics.ParseResolutionType(resolution); err != nil {
			return nil, err
		}
		if c.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
