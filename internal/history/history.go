// SPDX-License-Identifier: MIT

// Package history persists one row per backup run, giving the API and the
// readiness probe a durable view of what the daemon has done.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/persistence/sqlite"
)

const schemaVersion = 1

// Run outcomes.
const (
	OutcomeRunning  = "running"
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// Run is one backup run, in progress or finished.
type Run struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is still going
	Outcome    string
	Files      int
	Copied     int
	Failed     int
	Bytes      int64
	Duration   time.Duration
	Error      string
}

// NewRun seeds the record Begin stores; the caller keeps the ID for Finish.
func NewRun(trigger string, startedAt time.Time) Run {
	return Run{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: startedAt,
		Outcome:   OutcomeRunning,
	}
}

// Store keeps runs in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the history database and applies migrations.
func New(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trigger_kind TEXT NOT NULL,
		started_at_ms INTEGER NOT NULL,
		finished_at_ms INTEGER,
		outcome TEXT NOT NULL,
		files INTEGER NOT NULL DEFAULT 0,
		copied INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Begin records a run in the running state.
func (s *Store) Begin(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, trigger_kind, started_at_ms, outcome) VALUES (?, ?, ?, ?)`,
		run.ID, run.Trigger, run.StartedAt.UnixMilli(), OutcomeRunning)
	if err != nil {
		return fmt.Errorf("history: begin run: %w", err)
	}
	return nil
}

// Finish closes a run record with its outcome and counters.
func (s *Store) Finish(ctx context.Context, id, outcome string, res backup.Result, errMsg string) error {
	out, err := s.db.ExecContext(ctx, `
	UPDATE runs
	SET finished_at_ms = ?, outcome = ?, files = ?, copied = ?, failed = ?, bytes = ?, duration_ms = ?, error = ?
	WHERE id = ?`,
		time.Now().UnixMilli(), outcome,
		res.Files, res.Copied, res.Failed, res.Bytes, res.Duration.Milliseconds(),
		errMsg, id)
	if err != nil {
		return fmt.Errorf("history: finish run: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("history: finish run: unknown run %s", id)
	}
	return nil
}

const runColumns = `id, trigger_kind, started_at_ms, finished_at_ms, outcome,
	files, copied, failed, bytes, duration_ms, error`

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at_ms DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: recent runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent runs: %w", err)
	}
	return runs, nil
}

// LastSuccess returns the newest successful run, or nil when there has never
// been one.
func (s *Store) LastSuccess(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE outcome = ? ORDER BY started_at_ms DESC LIMIT 1`,
		OutcomeSuccess)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: last success: %w", err)
	}
	return &r, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
		durMS    int64
	)
	err := sc.Scan(&r.ID, &r.Trigger, &started, &finished, &r.Outcome,
		&r.Files, &r.Copied, &r.Failed, &r.Bytes, &durMS, &r.Error)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
	}
	r.Duration = time.Duration(durMS) * time.Millisecond
	return r, nil
}
