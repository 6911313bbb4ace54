// Package db provides the run-history store for RAD. It keeps recon runs,
// the web services they discovered, and dispatch outcomes in a local SQLite
// database so repeated runs against a target can be compared later.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/clivendon/RAD/internal/errors"
	"github.com/clivendon/RAD/internal/logging"
)

// Run statuses.
const (
	RunStatusRunning      = "running"
	RunStatusSuccess      = "success"
	RunStatusFailed       = "failed"
	RunStatusNoWebServers = "no_web_servers"
)

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `yaml:"path" json:"path"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{Path: "rad.db"}
}

// DB wraps sqlx.DB with RAD-specific queries.
type DB struct {
	*sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS recon_runs (
	id          TEXT PRIMARY KEY,
	target      TEXT NOT NULL,
	output_file TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	web_ports   INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS web_services (
	run_id  TEXT NOT NULL REFERENCES recon_runs(id),
	port    INTEGER NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, port)
);

CREATE TABLE IF NOT EXISTS dispatches (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES recon_runs(id),
	port        INTEGER NOT NULL,
	url         TEXT NOT NULL,
	output_file TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	finished_at TIMESTAMP NOT NULL
);
`

// Connect opens the database file and applies the schema.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	sqlxDB, err := sqlx.ConnectContext(ctx, "sqlite3", cfg.Path)
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	db := &DB{DB: sqlxDB}
	if err := db.migrate(ctx); err != nil {
		_ = sqlxDB.Close()
		return nil, err
	}

	logging.InfoDatabase("store ready", "path", cfg.Path)
	return db, nil
}

// NewFromSQLDB wraps an existing database handle; used by tests.
func NewFromSQLDB(sqlDB *sql.DB, driverName string) *DB {
	return &DB{DB: sqlx.NewDb(sqlDB, driverName)}
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "failed to apply schema", err)
	}
	return nil
}

// CreateRun records the start of a recon run and returns it.
func (db *DB) CreateRun(ctx context.Context, target, outputFile string) (*ReconRun, error) {
	run := &ReconRun{
		ID:         uuid.NewString(),
		Target:     target,
		OutputFile: outputFile,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	const query = `INSERT INTO recon_runs (id, target, output_file, status, web_ports, started_at)
		VALUES (?, ?, ?, ?, 0, ?)`
	if _, err := db.ExecContext(ctx, query,
		run.ID, run.Target, run.OutputFile, run.Status, run.StartedAt); err != nil {
		return nil, errors.ErrDatabaseQuery("create_run", err)
	}
	return run, nil
}

// CompleteRun marks a run finished with the given status and port count.
func (db *DB) CompleteRun(ctx context.Context, runID, status string, webPorts int) error {
	const query = `UPDATE recon_runs SET status = ?, web_ports = ?, finished_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, webPorts, time.Now().UTC(), runID)
	if err != nil {
		return errors.ErrDatabaseQuery("complete_run", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewDatabaseError(errors.CodeNotFound, "run not found")
	}
	return nil
}

// RecordWebService stores one discovered web service. Repeated discoveries
// of the same port within a run collapse onto one row; the dispatch table
// keeps the full invocation history.
func (db *DB) RecordWebService(ctx context.Context, runID string, port int, service string) error {
	const query = `INSERT OR IGNORE INTO web_services (run_id, port, service) VALUES (?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, runID, port, service); err != nil {
		return errors.ErrDatabaseQuery("record_web_service", err)
	}
	return nil
}

// RecordDispatch stores the outcome of one feroxbuster invocation.
func (db *DB) RecordDispatch(ctx context.Context, d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.FinishedAt.IsZero() {
		d.FinishedAt = time.Now().UTC()
	}

	const query = `INSERT INTO dispatches (id, run_id, port, url, output_file, exit_code, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query,
		d.ID, d.RunID, d.Port, d.URL, d.OutputFile, d.ExitCode, d.Error, d.FinishedAt); err != nil {
		return errors.ErrDatabaseQuery("record_dispatch", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]ReconRun, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `SELECT id, target, output_file, status, web_ports, started_at, finished_at
		FROM recon_runs ORDER BY started_at DESC LIMIT ?`
	var runs []ReconRun
	if err := db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, errors.ErrDatabaseQuery("list_runs", err)
	}
	return runs, nil
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(ctx context.Context, runID string) (*ReconRun, error) {
	const query = `SELECT id, target, output_file, status, web_ports, started_at, finished_at
		FROM recon_runs WHERE id = ?`
	var run ReconRun
	if err := db.GetContext(ctx, &run, query, runID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewDatabaseError(errors.CodeNotFound, "run not found")
		}
		return nil, errors.ErrDatabaseQuery("get_run", err)
	}
	return &run, nil
}

// ListDispatches returns the dispatch history for a run in insertion order.
func (db *DB) ListDispatches(ctx context.Context, runID string) ([]Dispatch, error) {
	const query = `SELECT id, run_id, port, url, output_file, exit_code, error, finished_at
		FROM dispatches WHERE run_id = ? ORDER BY finished_at ASC`
	var dispatches []Dispatch
	if err := db.SelectContext(ctx, &dispatches, query, runID); err != nil {
		return nil, errors.ErrDatabaseQuery("list_dispatches", err)
	}
	return dispatches, nil
}
