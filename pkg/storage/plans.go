package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

const planColumns = `id, family_id, week_start, week_end, status, reasoning, expires_at, created_by, created_at, updated_at, submitted_at, decided_at`

// CreatePlan inserts a plan. A second plan for the same family week fails
// with planning.ErrPlanExists.
func (s *SQLStore) CreatePlan(ctx context.Context, p *planning.WeeklyPlan) error {
	_, err := s.exec(ctx,
		`INSERT INTO weekly_plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FamilyID, p.WeekStart.String(), p.WeekEnd.String(), string(p.Status), p.Reasoning,
		formatTime(p.ExpiresAt), p.CreatedBy, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		formatOptionalTime(p.SubmittedAt), formatOptionalTime(p.DecidedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: family %s week %s", planning.ErrPlanExists, p.FamilyID, p.WeekStart)
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPlan(ctx context.Context, id string) (*planning.WeeklyPlan, error) {
	row := s.queryRow(ctx, `SELECT `+planColumns+` FROM weekly_plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", planning.ErrPlanNotFound, id)
	}
	return p, err
}

// FindPlanByWeek returns the family's plan for the week starting at weekStart.
func (s *SQLStore) FindPlanByWeek(ctx context.Context, familyID string, weekStart scheduling.Date) (*planning.WeeklyPlan, error) {
	row := s.queryRow(ctx, `SELECT `+planColumns+` FROM weekly_plans WHERE family_id = ? AND week_start = ?`, familyID, weekStart.String())
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: family %s week %s", planning.ErrPlanNotFound, familyID, weekStart)
	}
	return p, err
}

// ListPlans returns the family's plans, newest week first.
func (s *SQLStore) ListPlans(ctx context.Context, familyID string) ([]*planning.WeeklyPlan, error) {
	return s.listPlans(ctx, `SELECT `+planColumns+` FROM weekly_plans WHERE family_id = ? ORDER BY week_start DESC`, familyID)
}

// ListExpirable returns non-terminal plans whose expiry is before now.
func (s *SQLStore) ListExpirable(ctx context.Context, now time.Time) ([]*planning.WeeklyPlan, error) {
	return s.listPlans(ctx,
		`SELECT `+planColumns+` FROM weekly_plans WHERE status IN (?, ?) AND expires_at < ? ORDER BY expires_at, id`,
		string(planning.StatusDraft), string(planning.StatusPendingApproval), formatTime(now))
}

func (s *SQLStore) UpdatePlan(ctx context.Context, p *planning.WeeklyPlan) error {
	res, err := s.exec(ctx,
		`UPDATE weekly_plans SET status = ?, reasoning = ?, expires_at = ?, updated_at = ?, submitted_at = ?, decided_at = ? WHERE id = ?`,
		string(p.Status), p.Reasoning, formatTime(p.ExpiresAt), formatTime(p.UpdatedAt),
		formatOptionalTime(p.SubmittedAt), formatOptionalTime(p.DecidedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", planning.ErrPlanNotFound, p.ID)
	}
	return nil
}

// DeletePlan removes the plan with its items and approvals.
func (s *SQLStore) DeletePlan(ctx context.Context, id string) error {
	return s.InTx(ctx, func(tx *SQLStore) error {
		if _, err := tx.exec(ctx, `DELETE FROM plan_items WHERE plan_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete plan items: %w", err)
		}
		if _, err := tx.exec(ctx, `DELETE FROM plan_approvals WHERE plan_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete plan approvals: %w", err)
		}
		res, err := tx.exec(ctx, `DELETE FROM weekly_plans WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", planning.ErrPlanNotFound, id)
		}
		return nil
	})
}

func (s *SQLStore) listPlans(ctx context.Context, q string, args ...any) ([]*planning.WeeklyPlan, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*planning.WeeklyPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(sc scanner) (*planning.WeeklyPlan, error) {
	var (
		p                          planning.WeeklyPlan
		weekStart, weekEnd, status string
		expires, created, updated  string
		submitted, decided         sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.FamilyID, &weekStart, &weekEnd, &status, &p.Reasoning,
		&expires, &p.CreatedBy, &created, &updated, &submitted, &decided); err != nil {
		return nil, err
	}
	var err error
	if p.WeekStart, err = scheduling.ParseDate(weekStart); err != nil {
		return nil, fmt.Errorf("invalid week_start: %w", err)
	}
	if p.WeekEnd, err = scheduling.ParseDate(weekEnd); err != nil {
		return nil, fmt.Errorf("invalid week_end: %w", err)
	}
	if p.Status, err = planning.ParsePlanStatus(status); err != nil {
		return nil, err
	}
	if p.ExpiresAt, err = parseTime(expires); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if p.SubmittedAt, err = parseOptionalTime(submitted); err != nil {
		return nil, err
	}
	if p.DecidedAt, err = parseOptionalTime(decided); err != nil {
		return nil, err
	}
	return &p, nil
}

const itemColumns = `id, plan_id, task_id, assigned_user_id, date, start_min, end_min, reasoning, version, last_edited_by, last_edited_at, edit_history, created_at`

func (s *SQLStore) CreateItems(ctx context.Context, items []*planning.WeeklyPlanItem) error {
	for _, it := range items {
		history, err := encodeHistory(it.EditHistory)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx,
			`INSERT INTO plan_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.PlanID, it.TaskID, it.AssignedUserID, it.Date.String(), it.Start.Minutes(), it.End.Minutes(),
			it.Reasoning, it.Version, it.LastEditedBy, formatOptionalTime(it.LastEditedAt), history, formatTime(it.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to create plan item %s: %w", it.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (*planning.WeeklyPlanItem, error) {
	row := s.queryRow(ctx, `SELECT `+itemColumns+` FROM plan_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", planning.ErrItemNotFound, id)
	}
	return it, err
}

// ListItems returns the plan's items in calendar order.
func (s *SQLStore) ListItems(ctx context.Context, planID string) ([]*planning.WeeklyPlanItem, error) {
	rows, err := s.query(ctx, `SELECT `+itemColumns+` FROM plan_items WHERE plan_id = ? ORDER BY date, start_min, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan items: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*planning.WeeklyPlanItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateItem writes the item only if the stored version still equals
// expectedVersion. A mismatch returns planning.ErrVersionConflict.
func (s *SQLStore) UpdateItem(ctx context.Context, it *planning.WeeklyPlanItem, expectedVersion int) error {
	history, err := encodeHistory(it.EditHistory)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx,
		`UPDATE plan_items SET assigned_user_id = ?, date = ?, start_min = ?, end_min = ?, reasoning = ?,
		 version = ?, last_edited_by = ?, last_edited_at = ?, edit_history = ?
		 WHERE id = ? AND version = ?`,
		it.AssignedUserID, it.Date.String(), it.Start.Minutes(), it.End.Minutes(), it.Reasoning,
		it.Version, it.LastEditedBy, formatOptionalTime(it.LastEditedAt), history,
		it.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update plan item: %w", err)
	}
	return s.checkVersioned(ctx, res, it.ID, expectedVersion)
}

// DeleteItem removes the item only if the stored version equals expectedVersion.
func (s *SQLStore) DeleteItem(ctx context.Context, id string, expectedVersion int) error {
	res, err := s.exec(ctx, `DELETE FROM plan_items WHERE id = ? AND version = ?`, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to delete plan item: %w", err)
	}
	return s.checkVersioned(ctx, res, id, expectedVersion)
}

func (s *SQLStore) checkVersioned(ctx context.Context, res sql.Result, id string, expectedVersion int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var current int
	err = s.queryRow(ctx, `SELECT version FROM plan_items WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", planning.ErrItemNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read item version: %w", err)
	}
	return fmt.Errorf("%w: item %s is at version %d, expected %d", planning.ErrVersionConflict, id, current, expectedVersion)
}

func scanItem(sc scanner) (*planning.WeeklyPlanItem, error) {
	var (
		it               planning.WeeklyPlanItem
		date             string
		start, end       int
		editedAt         sql.NullString
		history, created string
	)
	if err := sc.Scan(&it.ID, &it.PlanID, &it.TaskID, &it.AssignedUserID, &date, &start, &end,
		&it.Reasoning, &it.Version, &it.LastEditedBy, &editedAt, &history, &created); err != nil {
		return nil, err
	}
	var err error
	if it.Date, err = scheduling.ParseDate(date); err != nil {
		return nil, fmt.Errorf("invalid item date: %w", err)
	}
	it.Start = scheduling.TimeOfDay(start)
	it.End = scheduling.TimeOfDay(end)
	if it.LastEditedAt, err = parseOptionalTime(editedAt); err != nil {
		return nil, err
	}
	if history != "" {
		if err := json.Unmarshal([]byte(history), &it.EditHistory); err != nil {
			return nil, fmt.Errorf("invalid edit history for item %s: %w", it.ID, err)
		}
	}
	if it.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &it, nil
}

func encodeHistory(h []planning.EditEntry) (string, error) {
	if len(h) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode edit history: %w", err)
	}
	return string(data), nil
}

// SaveApprovals upserts one row per (plan, member).
func (s *SQLStore) SaveApprovals(ctx context.Context, approvals []*planning.WeeklyPlanApproval) error {
	for _, a := range approvals {
		_, err := s.exec(ctx,
			`INSERT INTO plan_approvals (plan_id, user_id, status, comment, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (plan_id, user_id) DO UPDATE SET status = excluded.status, comment = excluded.comment, updated_at = excluded.updated_at`,
			a.PlanID, a.UserID, string(a.Status), a.Comment, formatTime(a.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save approval for %s: %w", a.UserID, err)
		}
	}
	return nil
}

func (s *SQLStore) ListApprovals(ctx context.Context, planID string) ([]*planning.WeeklyPlanApproval, error) {
	rows, err := s.query(ctx, `SELECT plan_id, user_id, status, comment, updated_at FROM plan_approvals WHERE plan_id = ? ORDER BY user_id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*planning.WeeklyPlanApproval
	for rows.Next() {
		var (
			a               planning.WeeklyPlanApproval
			status, updated string
		)
		if err := rows.Scan(&a.PlanID, &a.UserID, &status, &a.Comment, &updated); err != nil {
			return nil, err
		}
		if a.Status, err = planning.ParseApprovalStatus(status); err != nil {
			return nil, err
		}
		if a.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
