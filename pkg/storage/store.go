// Package storage persists families, tasks, occurrences, weekly plans and
// conflict records in SQLite (default) or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timestampLayout is fixed-width so stored instants sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
	Logger *slog.Logger
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements every repository interface of the domain packages.
// A store returned inside InTx runs all queries in that transaction.
type SQLStore struct {
	db     *sql.DB
	q      querier
	driver string
	logger *slog.Logger
	inTx   bool
	retry  retry.Config
}

// Open connects, applies pending migrations and returns the store.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := opts.DSN
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLStore{
		db:     db,
		q:      db,
		driver: driver,
		logger: opts.Logger,
		retry: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  20 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
	if _, err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + strings.TrimPrefix(path, "file:") + "?" + pragmas
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string { return s.driver }

func (s *SQLStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a transaction with a store bound to it. The
// transaction commits when fn returns nil. A transient lock error retries
// the whole unit; any other error rolls back and is returned as is. Nested
// calls reuse the outer transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx *SQLStore) error) error {
	if s.inTx {
		return fn(s)
	}

	r := retry.New[error](s.retry)
	permanent, err := r.Do(ctx, func(ctx context.Context) (error, error) {
		err := s.runTx(ctx, fn)
		if err != nil && isBusy(err) {
			s.logger.Debug("database busy, retrying transaction", "error", err)
			return nil, err
		}
		return err, nil
	})
	if err != nil {
		return err
	}
	return permanent
}

func (s *SQLStore) runTx(ctx context.Context, fn func(tx *SQLStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStore := *s
	txStore.q = tx
	txStore.inTx = true

	if err := fn(&txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Queries never carry
// literal question marks.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func formatOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseOptionalTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
