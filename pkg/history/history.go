// Package history keeps past run outcomes in a SQLite database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/devicelab-dev/flowdriver/pkg/core"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunExists is returned when a run id is recorded twice.
var ErrRunExists = errors.New("history: run already recorded")

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Run identifies one invocation of the runner.
type Run struct {
	ID        string
	StartTime time.Time
	Duration  time.Duration
	Driver    string
}

// RunSummary is a stored run with its counts.
type RunSummary struct {
	Run
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ScenarioRecord is one stored scenario outcome.
type ScenarioRecord struct {
	RunID      string
	Name       string
	File       string
	Status     string
	FailedStep int
	ErrorType  string
	Error      string
	StartTime  time.Time
	Duration   time.Duration
}

// Stats aggregates the stored outcomes of one scenario.
type Stats struct {
	Name   string
	Runs   int
	Passed int
	Failed int
}

// PassRate returns the fraction of recorded runs that passed.
func (s Stats) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Runs)
}

// Open opens (creating if needed) the history database at path.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run and its scenario results in one transaction.
// The write is retried while SQLite reports the database as busy.
func (s *Store) Record(ctx context.Context, run Run, results []*core.ScenarioResult) error {
	op := func() error {
		err := s.record(ctx, run, results)
		if err != nil && !isBusyError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(op, b)
}

func (s *Store) record(ctx context.Context, run Run, results []*core.ScenarioResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var passed, failed, skipped int
	for _, r := range results {
		switch r.Status {
		case core.ScenarioPassed:
			passed++
		case core.ScenarioFailed:
			failed++
		default:
			skipped++
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, driver, total, passed, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartTime.UnixMilli(), run.Duration.Milliseconds(), run.Driver,
		len(results), passed, failed, skipped,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrRunExists, run.ID)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scenario_results
		 (run_id, name, file, status, failed_step, error_type, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		errType := ""
		if r.Status == core.ScenarioFailed {
			errType = core.CategoryOf(r.Cause).String()
		}
		var started interface{}
		if !r.StartTime.IsZero() {
			started = r.StartTime.UnixMilli()
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, r.Name, r.FilePath, statusName(r.Status), r.FailedStep,
			errType, r.Error, started, r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert scenario %s: %w", r.Name, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, driver, total, passed, failed, skipped
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started, ms int64
		if err := rows.Scan(&rs.ID, &started, &ms, &rs.Driver,
			&rs.Total, &rs.Passed, &rs.Failed, &rs.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.StartTime = time.UnixMilli(started)
		rs.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ScenarioHistory returns the recorded outcomes of a scenario, newest first.
func (s *Store) ScenarioHistory(ctx context.Context, name string, limit int) ([]ScenarioRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sr.run_id, sr.name, sr.file, sr.status, sr.failed_step, sr.error_type,
		        sr.error, COALESCE(sr.started_at, r.started_at), sr.duration_ms
		 FROM scenario_results sr JOIN runs r ON r.id = sr.run_id
		 WHERE sr.name = ?
		 ORDER BY r.started_at DESC, sr.id DESC LIMIT ?`, name, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("query scenario history: %w", err)
	}
	defer rows.Close()

	var out []ScenarioRecord
	for rows.Next() {
		var rec ScenarioRecord
		var started, ms int64
		if err := rows.Scan(&rec.RunID, &rec.Name, &rec.File, &rec.Status, &rec.FailedStep,
			&rec.ErrorType, &rec.Error, &started, &ms); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		rec.StartTime = time.UnixMilli(started)
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats returns pass/fail counts per scenario over all recorded runs.
// Scenarios that never started are not counted.
func (s *Store) Stats(ctx context.Context) ([]Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name,
		        COUNT(*),
		        SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END)
		 FROM scenario_results
		 WHERE status IN ('passed', 'failed')
		 GROUP BY name ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []Stats
	for rows.Next() {
		var st Stats
		if err := rows.Scan(&st.Name, &st.Runs, &st.Passed, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func statusName(s core.ScenarioStatus) string {
	switch s {
	case core.ScenarioPassed, core.ScenarioFailed:
		return s.String()
	default:
		return "skipped"
	}
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
