// Package recorder keeps an audit log of export runs.
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run records to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logger.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs
// migrations. The logger may be nil.
func NewSQLiteRecorder(path string, log *logger.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while runs are being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if log != nil {
		log.Info("run recorder opened", logger.String("path", path))
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			mode        TEXT NOT NULL,
			patterns    TEXT NOT NULL,
			signals     INTEGER NOT NULL,
			points      INTEGER NOT NULL,
			failures    INTEGER NOT NULL,
			output      TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:24], err)
		}
	}
	return nil
}

// Record appends one run and fills in its assigned ID. Timestamps are
// stored as millisecond epoch so short runs keep a measurable duration.
func (r *SQLiteRecorder) Record(ctx context.Context, rec *models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `INSERT INTO runs
		(mode, patterns, signals, points, failures, output, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.Mode, rec.Patterns, rec.Signals, rec.Points, rec.Failures,
		rec.Output, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `SELECT
		id, mode, patterns, signals, points, failures, output, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*models.RunRecord
	for rows.Next() {
		var rec models.RunRecord
		var startedMs, finishedMs int64
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Patterns, &rec.Signals,
			&rec.Points, &rec.Failures, &rec.Output, &startedMs, &finishedMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedMs)
		rec.FinishedAt = time.UnixMilli(finishedMs)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
