// Package store implements the Store (C2): all persistent state for the
// drift-certification pipeline, backed by SQLite in WAL mode with
// application-level retry on lock contention. Schema and table set are
// grounded on shared/db.py's get_db_connection/init_db, ported from
// mattn/go-sqlite3 (the teacher's driver, cgo-based) to modernc.org/sqlite
// (pure Go) so the pipeline never needs a C toolchain to build.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/retry"
)

// Store wraps a sql.DB configured for WAL-mode concurrent access, matching
// shared/db.py's connection contract (30s busy timeout, WAL journal).
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logging.Logger
}

// Open creates or attaches to the SQLite database at path, enabling WAL mode
// and a busy timeout, then ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY cascades under the
	// pure-Go driver; concurrent callers serialise through withRetry below,
	// the same effect shared/db.py gets from WAL plus its own retry loop.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logging.WithComponent("store")}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// withRetry runs fn under the Store's lock-contention retry policy,
// classifying SQLite "database is locked"/"database is busy" errors as
// retryable, mirroring get_db_connection's exponential-backoff retry loop.
func (s *Store) withRetry(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, retry.StoreLockPolicy(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy") || strings.Contains(msg, "sqlite_busy") {
			return &retry.LockError{Err: err}
		}
		return err
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id TEXT UNIQUE NOT NULL,
	service_name TEXT NOT NULL,
	repo_url TEXT NOT NULL,
	main_branch TEXT NOT NULL DEFAULT 'main',
	environments JSON NOT NULL,
	config_paths JSON,
	group_path TEXT,
	is_active BOOLEAN DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	description TEXT,
	metadata JSON
);
CREATE INDEX IF NOT EXISTS idx_services_active ON services(is_active);
CREATE INDEX IF NOT EXISTS idx_services_id ON services(service_id);

CREATE TABLE IF NOT EXISTS golden_branches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_name TEXT NOT NULL,
	environment TEXT NOT NULL,
	branch_name TEXT NOT NULL,
	branch_type TEXT NOT NULL,
	is_active BOOLEAN DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	certification_score INTEGER,
	metadata JSON,
	UNIQUE(service_name, environment, branch_name, branch_type)
);
CREATE INDEX IF NOT EXISTS idx_branches_active ON golden_branches(is_active);
-- Enforces the at-most-one-active-golden-per-service/env invariant at the
-- schema level: SQLite partial unique indexes support a WHERE clause, so
-- two concurrent inserts racing to activate a golden branch collide here
-- instead of silently leaving two active rows.
CREATE UNIQUE INDEX IF NOT EXISTS idx_branches_one_active
	ON golden_branches(service_name, environment)
	WHERE is_active = 1 AND branch_type = 'golden';

CREATE TABLE IF NOT EXISTS validation_runs (
	run_id TEXT PRIMARY KEY,
	service_name TEXT NOT NULL,
	environment TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	completed_at TIMESTAMP,
	execution_time_ms INTEGER,
	verdict TEXT,
	summary TEXT,
	repo_url TEXT,
	golden_branch TEXT,
	drift_branch TEXT,
	project_id TEXT,
	mr_iid TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_service_env ON validation_runs(service_name, environment);
CREATE INDEX IF NOT EXISTS idx_runs_created ON validation_runs(created_at);

CREATE TABLE IF NOT EXISTS context_bundles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	bundle_id TEXT UNIQUE NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	golden_branch TEXT,
	drift_branch TEXT,
	total_files INTEGER,
	files_with_drift INTEGER,
	total_deltas INTEGER,
	bundle_data JSON NOT NULL,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS config_deltas (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	delta_id TEXT UNIQUE NOT NULL,
	file_path TEXT NOT NULL,
	locator_type TEXT,
	locator_value TEXT,
	old_value TEXT,
	new_value TEXT,
	drift_category TEXT,
	risk_level TEXT,
	line_number_range TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id),
	FOREIGN KEY (bundle_id) REFERENCES context_bundles(bundle_id)
);
CREATE INDEX IF NOT EXISTS idx_deltas_run ON config_deltas(run_id);
CREATE INDEX IF NOT EXISTS idx_deltas_risk ON config_deltas(risk_level);

CREATE TABLE IF NOT EXISTS llm_outputs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	golden_ref TEXT,
	candidate_ref TEXT,
	total_files INTEGER,
	drifted_files INTEGER,
	total_deltas INTEGER,
	high_risk_count INTEGER,
	medium_risk_count INTEGER,
	low_risk_count INTEGER,
	allowed_count INTEGER,
	llm_data JSON NOT NULL,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS policy_validations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	pii_findings_count INTEGER,
	intent_violations_count INTEGER,
	policy_violations_count INTEGER,
	policy_warnings_count INTEGER,
	validation_data JSON NOT NULL,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS certifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	confidence_score INTEGER,
	decision TEXT,
	environment TEXT,
	violations_count INTEGER,
	high_risk_count INTEGER,
	certified_snapshot_branch TEXT,
	certification_data JSON NOT NULL,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS aggregated_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	service_name TEXT,
	environment TEXT,
	overall_status TEXT,
	files_analyzed INTEGER,
	total_deltas INTEGER,
	policy_violations INTEGER,
	confidence_score INTEGER,
	final_decision TEXT,
	aggregated_data JSON NOT NULL,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	report_type TEXT DEFAULT 'validation',
	report_content TEXT NOT NULL,
	report_path TEXT,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	log_level TEXT NOT NULL,
	logger_name TEXT NOT NULL,
	message TEXT NOT NULL,
	run_id TEXT,
	service_name TEXT,
	environment TEXT,
	metadata JSON,
	FOREIGN KEY (run_id) REFERENCES validation_runs(run_id)
);
CREATE INDEX IF NOT EXISTS idx_logs_created ON logs(created_at);
CREATE INDEX IF NOT EXISTS idx_logs_run ON logs(run_id);
`

func (s *Store) initSchema(ctx context.Context) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	})
}
