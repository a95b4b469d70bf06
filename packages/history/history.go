// Package history stores scenario reports in a SQLite database so runs can
// be compared over time.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	suite       TEXT    NOT NULL,
	scenario    TEXT    NOT NULL,
	verdict     TEXT    NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	executed    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	p50_us      INTEGER NOT NULL,
	p95_us      INTEGER NOT NULL,
	p99_us      INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_scenario ON runs (suite, scenario, started_at);
CREATE TABLE IF NOT EXISTS row_results (
	run_id      INTEGER NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	name        TEXT    NOT NULL,
	state       TEXT    NOT NULL,
	duration_us INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, idx)
);
`

// Run is one stored scenario report.
type Run struct {
	ID        int64
	Suite     string
	Scenario  string
	Verdict   string
	Passed    int
	Failed    int
	Executed  int
	Duration  time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	StartedAt time.Time
}

// Store is a history database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores report under suite and returns the new run's id.
func (s *Store) Record(ctx context.Context, suite string, report *runner.Report, startedAt time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	passed, failed := report.Counts()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (suite, scenario, verdict, passed, failed, executed, duration_ms, p50_us, p95_us, p99_us, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		suite, report.Scenario, report.Verdict().String(), passed, failed, report.RowsExecuted(),
		report.Duration.Milliseconds(), report.Latency.P50.Microseconds(),
		report.Latency.P95.Microseconds(), report.Latency.P99.Microseconds(), startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO row_results (run_id, idx, name, state, duration_us, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range report.Outcomes {
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx, id, o.Index, o.Name, o.State.String(), o.Duration.Microseconds(), msg); err != nil {
			return 0, fmt.Errorf("failed to insert row %s: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs of a scenario, newest first.
func (s *Store) Recent(ctx context.Context, suite, scenario string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, scenario, verdict, passed, failed, executed, duration_ms, p50_us, p95_us, p99_us, started_at
		FROM runs WHERE suite = ? AND scenario = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`, suite, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durMs, p50, p95, p99 int64
		if err := rows.Scan(&r.ID, &r.Suite, &r.Scenario, &r.Verdict, &r.Passed, &r.Failed, &r.Executed,
			&durMs, &p50, &p95, &p99, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.P50 = time.Duration(p50) * time.Microsecond
		r.P95 = time.Duration(p95) * time.Microsecond
		r.P99 = time.Duration(p99) * time.Microsecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Flaky returns the names of rows that both passed and failed within the
// last n runs of a scenario, sorted by name.
func (s *Store) Flaky(ctx context.Context, suite, scenario string, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name FROM row_results r
		JOIN (SELECT id FROM runs WHERE suite = ? AND scenario = ? ORDER BY started_at DESC, id DESC LIMIT ?) recent
		ON r.run_id = recent.id
		GROUP BY r.name
		HAVING SUM(r.state = 'passed') > 0 AND SUM(r.state = 'failed') > 0
		ORDER BY r.name`, suite, scenario, n)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}
