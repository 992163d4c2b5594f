// Package history keeps a local SQLite index of past staging invocations.
//
// The index is strictly observational: the workflow never reads it to decide
// anything (runs are disposable and recreated from scratch), and a failure to
// record is logged and ignored by the caller rather than failing the run.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the run-history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Record is one staging invocation.
type Record struct {
	RunID      string
	State      string // final state machine state reached
	ExitCode   int
	LogPath    string
	ErrLogPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		state TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		log_path TEXT,
		err_log_path TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one invocation to the index.
func (s *Store) Record(rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, state, exit_code, log_path, err_log_path, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.State, rec.ExitCode, rec.LogPath, rec.ErrLogPath,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.RunID, err)
	}
	return nil
}

// Latest returns the most recent invocation for runID, or sql.ErrNoRows.
func (s *Store) Latest(runID string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT run_id, state, exit_code, log_path, err_log_path, started_at, finished_at
		 FROM runs WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID)
	return scanRecord(row)
}

// List returns the most recent invocations, newest first.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, state, exit_code, log_path, err_log_path, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RunID, &rec.State, &rec.ExitCode,
			&rec.LogPath, &rec.ErrLogPath, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.RunID, &rec.State, &rec.ExitCode,
		&rec.LogPath, &rec.ErrLogPath, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
