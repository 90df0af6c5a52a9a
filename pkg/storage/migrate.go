package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one numbered schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// readMigrations parses NNN_name.sql files, sorted by version.
func readMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(file.Name(), "_", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", file.Name())
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil || version < 1 {
			return nil, fmt.Errorf("invalid version number in filename %s", file.Name())
		}
		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}
	return migrations, nil
}

// splitStatements breaks a migration into single statements; lib/pq runs
// multi-statement strings but the sqlite driver stops at the first.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func (s *SQLStore) SchemaVersion(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return 0, fmt.Errorf("failed to ensure schema_version table: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// Migrate applies pending migrations, each in its own transaction, and
// returns how many ran.
func (s *SQLStore) Migrate(ctx context.Context) (int, error) {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to access migrations: %w", err)
	}
	migrations, err := readMigrations(sub)
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	latest := migrations[len(migrations)-1].Version
	if current > latest {
		return 0, fmt.Errorf("database schema version (%d) is newer than supported version (%d) - please upgrade the application", current, latest)
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		s.logger.Info("applying migration", "version", m.Version, "name", m.Name)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
		}
		for _, stmt := range splitStatements(m.SQL) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return applied, fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("failed to clear version in migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO schema_version (version) VALUES (?)"), m.Version); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("failed to set version in migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
		applied++
	}
	return applied, nil
}
