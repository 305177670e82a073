// Package journal persists an audit trail of shutdown runs and per-file
// actions. Writes are best-effort: the shutdown sequence must complete even
// when the journal is unavailable, so callers treat every error here as
// report-and-continue.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded shutdown run.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	ProducersStopped int
	FilesFinalized   int
	FilesRelocated   int
	Outcome          string
}

// FileEvent is one per-file action within a run.
type FileEvent struct {
	RunID     string
	Stream    int
	Name      string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Open initializes or connects to the journal database and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			producers_stopped INTEGER NOT NULL DEFAULT 0,
			files_finalized INTEGER NOT NULL DEFAULT 0,
			files_relocated INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS file_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			stream INTEGER NOT NULL,
			name TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_run ON file_events(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a shutdown run.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the final counters and outcome of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, producers_stopped = ?,
			files_finalized = ?, files_relocated = ?, outcome = ?
		 WHERE id = ?`,
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.ProducersStopped,
		run.FilesFinalized,
		run.FilesRelocated,
		run.Outcome,
		run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFileEvent appends one per-file action for the run.
func (s *Store) RecordFileEvent(ctx context.Context, event FileEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_events (run_id, stream, name, action, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Stream, event.Name, event.Action, event.Detail,
		createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert file event: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, producers_stopped,
			files_finalized, files_relocated, outcome
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt,
			&run.ProducersStopped, &run.FilesFinalized, &run.FilesRelocated,
			&run.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FileEvents returns the per-file actions recorded for one run, oldest first.
func (s *Store) FileEvents(ctx context.Context, runID string) ([]FileEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stream, name, action, detail, created_at
		 FROM file_events WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file events: %w", err)
	}
	defer rows.Close()

	var events []FileEvent
	for rows.Next() {
		var event FileEvent
		var createdAt string
		if err := rows.Scan(&event.RunID, &event.Stream, &event.Name,
			&event.Action, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan file event: %w", err)
		}
		event.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}
