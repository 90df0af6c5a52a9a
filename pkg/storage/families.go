package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
)

func (s *SQLStore) CreateFamily(ctx context.Context, f *family.Family) error {
	_, err := s.exec(ctx,
		`INSERT INTO families (id, name, timezone, auto_generate, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Timezone, boolToInt(f.AutoGenerate), formatTime(f.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("family %s already exists", f.ID)
		}
		return fmt.Errorf("failed to create family: %w", err)
	}
	return nil
}

func (s *SQLStore) GetFamily(ctx context.Context, id string) (*family.Family, error) {
	row := s.queryRow(ctx, `SELECT id, name, timezone, auto_generate, created_at FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", family.ErrFamilyNotFound, id)
	}
	return f, err
}

func (s *SQLStore) ListFamilies(ctx context.Context) ([]*family.Family, error) {
	rows, err := s.query(ctx, `SELECT id, name, timezone, auto_generate, created_at FROM families ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*family.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateFamily(ctx context.Context, f *family.Family) error {
	res, err := s.exec(ctx, `UPDATE families SET name = ?, timezone = ?, auto_generate = ? WHERE id = ?`,
		f.Name, f.Timezone, boolToInt(f.AutoGenerate), f.ID)
	if err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", family.ErrFamilyNotFound, f.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFamily(sc scanner) (*family.Family, error) {
	var (
		f       family.Family
		auto    int
		created string
	)
	if err := sc.Scan(&f.ID, &f.Name, &f.Timezone, &auto, &created); err != nil {
		return nil, err
	}
	f.AutoGenerate = auto != 0
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("invalid family timestamp: %w", err)
	}
	f.CreatedAt = t
	return &f, nil
}

func (s *SQLStore) AddMember(ctx context.Context, m family.Member) error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", m.Role)
	}
	_, err := s.exec(ctx,
		`INSERT INTO members (family_id, user_id, display_name, role, joined_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (family_id, user_id) DO UPDATE SET display_name = excluded.display_name, role = excluded.role`,
		m.FamilyID, m.UserID, m.DisplayName, string(m.Role), formatTime(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (s *SQLStore) ListMembers(ctx context.Context, familyID string) (family.Members, error) {
	rows, err := s.query(ctx,
		`SELECT family_id, user_id, display_name, role, joined_at FROM members WHERE family_id = ? ORDER BY joined_at, user_id`,
		familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out family.Members
	for rows.Next() {
		var (
			m      family.Member
			role   string
			joined string
		)
		if err := rows.Scan(&m.FamilyID, &m.UserID, &m.DisplayName, &role, &joined); err != nil {
			return nil, err
		}
		m.Role = family.Role(role)
		if m.JoinedAt, err = parseTime(joined); err != nil {
			return nil, fmt.Errorf("invalid member timestamp: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
