package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/catherinevee/certguard/internal/models"
)

// ActivateGoldenBranch atomically deactivates any existing active golden
// branch for (serviceID, environment) and inserts gb as the new active one,
// enforcing the "at most one active golden per service/env" invariant
// (spec.md §2 GoldenBranch invariant). The partial unique index in the
// schema is the backstop if two callers race past the deactivate step;
// one of the two INSERTs then fails and the transaction rolls back.
func (s *Store) ActivateGoldenBranch(ctx context.Context, gb *models.GoldenBranch) error {
	metaJSON, err := json.Marshal(gb.Metadata)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			UPDATE golden_branches SET is_active = 0
			WHERE service_name = ? AND environment = ? AND branch_type = ? AND is_active = 1
		`, gb.ServiceID, gb.Environment, string(gb.BranchType)); err != nil {
			return fmt.Errorf("deactivate prior golden: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO golden_branches (service_name, environment, branch_name, branch_type, is_active, certification_score, metadata)
			VALUES (?, ?, ?, ?, 1, ?, ?)
		`, gb.ServiceID, gb.Environment, gb.BranchName, string(gb.BranchType), gb.CertificationScore, string(metaJSON))
		if err != nil {
			return fmt.Errorf("insert new golden: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		gb.ID = id

		return tx.Commit()
	})
}

// GetActiveGoldenBranch returns the currently active golden branch for a
// (service, environment) pair, or ErrNotFound if none has been certified yet.
func (s *Store) GetActiveGoldenBranch(ctx context.Context, serviceID, environment string) (*models.GoldenBranch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, service_name, environment, branch_name, branch_type, is_active, certification_score, metadata, created_at
		FROM golden_branches
		WHERE service_name = ? AND environment = ? AND branch_type = 'golden' AND is_active = 1
	`, serviceID, environment)
	return scanGoldenBranch(row)
}

func scanGoldenBranch(row rowScanner) (*models.GoldenBranch, error) {
	var gb models.GoldenBranch
	var score sql.NullInt64
	var metaJSON sql.NullString
	var branchType string
	if err := row.Scan(&gb.ID, &gb.ServiceID, &gb.Environment, &gb.BranchName, &branchType,
		&gb.IsActive, &score, &metaJSON, &gb.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan golden branch: %w", err)
	}
	gb.BranchType = models.BranchType(branchType)
	if score.Valid {
		v := int(score.Int64)
		gb.CertificationScore = &v
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &gb.Metadata); err != nil {
			return nil, fmt.Errorf("decode golden metadata: %w", err)
		}
	}
	return &gb, nil
}
