package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/catherinevee/certguard/internal/models"
)

// CreateRun inserts a new ValidationRun in "pending" status.
func (s *Store) CreateRun(ctx context.Context, run *models.ValidationRun) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO validation_runs (run_id, service_name, environment, status)
			VALUES (?, ?, ?, ?)
		`, run.RunID, run.ServiceID, run.Environment, string(run.Status))
		return err
	})
}

// UpdateRunStatus transitions a run's status, recording completion time and
// any failure detail once the run leaves "running".
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status models.RunStatus, failureKind, failureMsg string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		if status == models.RunSucceeded || status == models.RunFailed {
			_, err = s.db.ExecContext(ctx, `
				UPDATE validation_runs SET status = ?, completed_at = CURRENT_TIMESTAMP,
					execution_time_ms = CAST((julianday('now') - julianday(created_at)) * 86400000 AS INTEGER)
				WHERE run_id = ?
			`, string(status), runID)
		} else {
			_, err = s.db.ExecContext(ctx, `UPDATE validation_runs SET status = ? WHERE run_id = ?`, string(status), runID)
		}
		return err
	})
}

// GetRun fetches a ValidationRun by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.ValidationRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, service_name, environment, status, created_at, completed_at
		FROM validation_runs WHERE run_id = ?`, runID)

	var run models.ValidationRun
	var completedAt sql.NullTime
	if err := row.Scan(&run.RunID, &run.ServiceID, &run.Environment, &run.Status, &run.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if completedAt.Valid {
		run.UpdatedAt = completedAt.Time
	}
	return &run, nil
}

// RecentRunsForService lists the most recent runs for (serviceID, environment)
// up to limit, newest first -- used by the Confidence Scorer's historical
// pattern lookup (successes/failures/outages).
func (s *Store) RecentRunsForService(ctx context.Context, serviceID, environment string, limit int) ([]*models.ValidationRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, service_name, environment, status, created_at
		FROM validation_runs
		WHERE service_name = ? AND environment = ?
		ORDER BY created_at DESC LIMIT ?
	`, serviceID, environment, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ValidationRun
	for rows.Next() {
		var run models.ValidationRun
		if err := rows.Scan(&run.RunID, &run.ServiceID, &run.Environment, &run.Status, &run.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

// NewRunID builds a time-ordered, human-diffable run identifier, matching
// generate_unique_branch_name's timestamp+suffix shape.
func NewRunID(serviceID, environment string, now time.Time, suffix string) string {
	return fmt.Sprintf("run_%s_%s_%s_%s", serviceID, environment, now.UTC().Format("20060102_150405"), suffix)
}
