package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// Task definitions are stored as a JSON document next to the columns used
// for lookups.

func (s *SQLStore) CreateTask(ctx context.Context, t *scheduling.TaskDefinition) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO tasks (id, owner_id, family_id, name, type, definition, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.FamilyID, t.Name, string(t.Type), string(doc), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s already exists", t.ID)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateTask(ctx context.Context, t *scheduling.TaskDefinition) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	res, err := s.exec(ctx,
		`UPDATE tasks SET owner_id = ?, family_id = ?, name = ?, type = ?, definition = ?, updated_at = ? WHERE id = ?`,
		t.OwnerID, t.FamilyID, t.Name, string(t.Type), string(doc), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", scheduling.ErrTaskNotFound, t.ID)
	}
	return nil
}

func (s *SQLStore) GetTask(ctx context.Context, id string) (*scheduling.TaskDefinition, error) {
	var doc string
	err := s.queryRow(ctx, `SELECT definition FROM tasks WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", scheduling.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return decodeTask(doc)
}

// ListTasks returns the family's shared tasks plus the personal tasks of
// its members.
func (s *SQLStore) ListTasks(ctx context.Context, familyID string) ([]*scheduling.TaskDefinition, error) {
	rows, err := s.query(ctx,
		`SELECT definition FROM tasks
		 WHERE family_id = ?
		    OR (family_id = '' AND owner_id IN (SELECT user_id FROM members WHERE family_id = ?))
		 ORDER BY created_at, id`,
		familyID, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*scheduling.TaskDefinition
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		t, err := decodeTask(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func decodeTask(doc string) (*scheduling.TaskDefinition, error) {
	var t scheduling.TaskDefinition
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &t, nil
}
