package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/catherinevee/certguard/internal/models"
)

// ErrNotFound is returned when a lookup by primary key finds nothing.
var ErrNotFound = errors.New("store: not found")

// UpsertService inserts or updates a Service row, matching the upsert shape
// manage_services.py's fleet sync relies on: service_id is the natural key.
func (s *Store) UpsertService(ctx context.Context, svc *models.Service) error {
	envJSON, err := json.Marshal(svc.Environments)
	if err != nil {
		return err
	}
	pathsJSON, err := json.Marshal(svc.ConfigPaths)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO services (service_id, service_name, repo_url, main_branch, environments, config_paths, group_path, is_active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(service_id) DO UPDATE SET
				service_name=excluded.service_name,
				repo_url=excluded.repo_url,
				main_branch=excluded.main_branch,
				environments=excluded.environments,
				config_paths=excluded.config_paths,
				group_path=excluded.group_path,
				is_active=excluded.is_active,
				updated_at=CURRENT_TIMESTAMP
		`, svc.ServiceID, svc.DisplayName, svc.RepoURL, svc.MainBranch, string(envJSON), string(pathsJSON), svc.Group, svc.Active)
		return err
	})
}

// GetService fetches a Service by its natural key.
func (s *Store) GetService(ctx context.Context, serviceID string) (*models.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT service_id, service_name, repo_url, main_branch, environments, config_paths, group_path, is_active, created_at, updated_at
		FROM services WHERE service_id = ?`, serviceID)
	return scanService(row)
}

// ListActiveServices returns every service Fleet Sync considers in scope.
func (s *Store) ListActiveServices(ctx context.Context) ([]*models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id, service_name, repo_url, main_branch, environments, config_paths, group_path, is_active, created_at, updated_at
		FROM services WHERE is_active = 1 ORDER BY service_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// ListAllServices returns every service regardless of active flag, used by
// Fleet Sync's orphan-group reconciliation pass to find services whose
// group has left the roster.
func (s *Store) ListAllServices(ctx context.Context) ([]*models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id, service_name, repo_url, main_branch, environments, config_paths, group_path, is_active, created_at, updated_at
		FROM services ORDER BY service_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// ReactivateService marks a previously soft-deleted service active again,
// mirroring sync_vsat_services' "VSAT added back to config" reactivation.
func (s *Store) ReactivateService(ctx context.Context, serviceID string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `UPDATE services SET is_active = 1, updated_at = CURRENT_TIMESTAMP WHERE service_id = ?`, serviceID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeactivateService marks a service inactive without deleting its history,
// grounded on cleanup_services_without_main.py's soft-delete behavior.
func (s *Store) DeactivateService(ctx context.Context, serviceID string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE service_id = ?`, serviceID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var svc models.Service
	var envJSON, pathsJSON, group sql.NullString
	if err := row.Scan(&svc.ServiceID, &svc.DisplayName, &svc.RepoURL, &svc.MainBranch,
		&envJSON, &pathsJSON, &group, &svc.Active, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}
	svc.Group = group.String
	if envJSON.Valid && envJSON.String != "" {
		if err := json.Unmarshal([]byte(envJSON.String), &svc.Environments); err != nil {
			return nil, fmt.Errorf("decode environments: %w", err)
		}
	}
	if pathsJSON.Valid && pathsJSON.String != "" {
		if err := json.Unmarshal([]byte(pathsJSON.String), &svc.ConfigPaths); err != nil {
			return nil, fmt.Errorf("decode config_paths: %w", err)
		}
	}
	return &svc, nil
}
