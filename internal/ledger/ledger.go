package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/seqsim/gridrunner/internal/fsutil"

	_ "modernc.org/sqlite"
)

// timeLayout is RFC3339 with a fixed-width fraction. RFC3339Nano trims
// trailing zeros, which breaks the lexicographic ordering the attempt
// queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Outcome classifies how a run attempt ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Attempt is one row of the ledger.
type Attempt struct {
	ID         string
	RunID      string
	Outcome    Outcome
	ExitCode   int
	Artifact   string
	LeaseID    string
	Attempts   uint
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger wraps the SQLite attempt store.
type Ledger struct {
	db *sql.DB
}

// Open initializes the database at the given path, creating the schema and
// any missing parent directories.
func Open(path string) (*Ledger, error) {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// initialize creates the required tables.
func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		artifact TEXT NOT NULL,
		lease_id TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 1,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts one attempt. A missing ID is generated.
func (l *Ledger) Record(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO attempts
			(id, run_id, outcome, exit_code, artifact, lease_id, attempts, duration_ms, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, string(a.Outcome), a.ExitCode, a.Artifact, a.LeaseID,
		a.Attempts, a.Duration.Milliseconds(),
		a.StartedAt.UTC().Format(timeLayout),
		a.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt for %s: %w", a.RunID, err)
	}
	return nil
}

// History returns a run's attempts, oldest first.
func (l *Ledger) History(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, outcome, exit_code, artifact, lease_id, attempts, duration_ms, started_at, finished_at
		FROM attempts WHERE run_id = ? ORDER BY finished_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", runID, err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// Latest returns the most recent attempt per run id.
func (l *Ledger) Latest(ctx context.Context) (map[string]Attempt, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, outcome, exit_code, artifact, lease_id, attempts, duration_ms, started_at, finished_at
		FROM attempts ORDER BY finished_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest attempts: %w", err)
	}
	defer rows.Close()

	all, err := scanAttempts(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]Attempt, len(all))
	for _, a := range all {
		latest[a.RunID] = a
	}
	return latest, nil
}

// Totals counts attempts per outcome.
func (l *Ledger) Totals(ctx context.Context) (map[Outcome]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan totals row: %w", err)
		}
		totals[Outcome(outcome)] = count
	}
	return totals, rows.Err()
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var outcome string
		var durationMs int64
		var startedAt, finished string
		if err := rows.Scan(&a.ID, &a.RunID, &outcome, &a.ExitCode, &a.Artifact,
			&a.LeaseID, &a.Attempts, &durationMs, &startedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}

		a.Outcome = Outcome(outcome)
		a.Duration = time.Duration(durationMs) * time.Millisecond

		var err error
		if a.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at %q: %w", startedAt, err)
		}
		if a.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at %q: %w", finished, err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
