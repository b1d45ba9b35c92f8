package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/catherinevee/certguard/internal/models"
)

// SaveContextBundle persists the Drift Engine's full output, assigning a
// bundle id if the caller has not already set one.
func (s *Store) SaveContextBundle(ctx context.Context, runID string, bundle *models.ContextBundle) (string, error) {
	bundleID := bundle.Meta.RunID + "_bundle_" + uuid.NewString()[:8]
	data, err := json.Marshal(bundle)
	if err != nil {
		return "", err
	}
	err = s.withRetry(ctx, func(ctx context.Context) error {
		filesWithDrift := bundle.Overview.AddedCount + bundle.Overview.RemovedCount + bundle.Overview.ModifiedCount
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO context_bundles (run_id, bundle_id, golden_branch, drift_branch, total_files, files_with_drift, total_deltas, bundle_data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, bundleID, "", "", bundle.Overview.TotalFilesGolden, filesWithDrift, len(bundle.Deltas), string(data))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("save context bundle: %w", err)
	}
	return bundleID, nil
}

// GetContextBundle loads a previously saved ContextBundle by its bundle id.
func (s *Store) GetContextBundle(ctx context.Context, bundleID string) (*models.ContextBundle, error) {
	var data string
	row := s.db.QueryRowContext(ctx, `SELECT bundle_data FROM context_bundles WHERE bundle_id = ?`, bundleID)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan context bundle: %w", err)
	}
	var bundle models.ContextBundle
	if err := json.Unmarshal([]byte(data), &bundle); err != nil {
		return nil, fmt.Errorf("decode context bundle: %w", err)
	}
	return &bundle, nil
}

// SaveDeltas writes the flattened Delta rows for a bundle, used for
// risk-level/category querying independent of the full bundle JSON blob.
func (s *Store) SaveDeltas(ctx context.Context, runID, bundleID string, deltas []models.Delta) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO config_deltas (run_id, bundle_id, delta_id, file_path, locator_type, locator_value, old_value, new_value, drift_category, risk_level)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(delta_id) DO UPDATE SET risk_level = excluded.risk_level
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, d := range deltas {
			if _, err := stmt.ExecContext(ctx, runID, bundleID, d.ID, d.File, string(d.Locator.Type),
				d.Locator.Value, d.StringOld(), d.StringNew(), string(d.Category), string(d.RiskLevel)); err != nil {
				return fmt.Errorf("insert delta %s: %w", d.ID, err)
			}
		}
		return tx.Commit()
	})
}

// UpdateContextBundleDeltas rewrites the bundle's deltas (post-Guardrail
// redaction/intent-scan/policy-tagging) back into the stored bundle JSON and
// the flattened config_deltas rows, the critical Guardrail -> Triage handoff
// spec.md §3/§5 describes: the Triage Engine must see redacted, tagged
// deltas, never the raw pre-guardrail ones.
func (s *Store) UpdateContextBundleDeltas(ctx context.Context, bundleID string, deltas []models.Delta) error {
	bundle, err := s.GetContextBundle(ctx, bundleID)
	if err != nil {
		return err
	}
	bundle.Deltas = deltas
	data, err := json.Marshal(bundle)
	if err != nil {
		return err
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `UPDATE context_bundles SET bundle_data = ? WHERE bundle_id = ?`, string(data), bundleID); err != nil {
			return fmt.Errorf("update bundle data: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			UPDATE config_deltas SET old_value = ?, new_value = ?, risk_level = ? WHERE delta_id = ? AND bundle_id = ?
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range deltas {
			if _, err := stmt.ExecContext(ctx, d.StringOld(), d.StringNew(), string(d.RiskLevel), d.ID, bundleID); err != nil {
				return fmt.Errorf("update delta %s: %w", d.ID, err)
			}
		}
		return tx.Commit()
	})
}

// SavePolicyValidation persists the Guardrail Engine's policy-pass output.
func (s *Store) SavePolicyValidation(ctx context.Context, runID string, pv *models.PolicyValidation) error {
	data, err := json.Marshal(pv)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO policy_validations (run_id, pii_findings_count, intent_violations_count, policy_violations_count, policy_warnings_count, validation_data)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, pv.PII.InstancesFound, pv.Intent.TotalFindings, pv.Totals.InvariantBreach+pv.Totals.Suspect, pv.Totals.AllowedVariance, string(data))
		return err
	})
}

// SaveLLMOutput persists the Triage Engine's output.
func (s *Store) SaveLLMOutput(ctx context.Context, runID string, out *models.LLMOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO llm_outputs (run_id, total_files, drifted_files, total_deltas, high_risk_count, medium_risk_count, low_risk_count, allowed_count, llm_data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, out.Summary.TotalConfigFiles, out.Summary.FilesWithDrift, out.Summary.TotalDrifts,
			len(out.High), len(out.Medium), len(out.Low), len(out.AllowedVariance), string(data))
		return err
	})
}

// SaveCertification persists the Confidence Scorer's decision. violationsCount
// and highRiskCount come from the PolicyValidation/LLMOutput that fed the
// scorer, since Certification itself only carries the derived score.
func (s *Store) SaveCertification(ctx context.Context, runID string, cert *models.Certification, violationsCount, highRiskCount int) error {
	data, err := json.Marshal(cert)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO certifications (run_id, confidence_score, decision, environment, violations_count, high_risk_count, certified_snapshot_branch, certification_data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, cert.ConfidenceScore, string(cert.Decision), cert.Environment, violationsCount,
			highRiskCount, cert.CertifiedSnapshotBranch, string(data))
		return err
	})
}

// SaveReport stores a rendered report (markdown or CLI table text) for a run.
func (s *Store) SaveReport(ctx context.Context, runID, reportType, content, path string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reports (run_id, report_type, report_content, report_path) VALUES (?, ?, ?, ?)
		`, runID, reportType, content, path)
		return err
	})
}

// AppendLog writes one structured log line into the logs table, used when
// the orchestrator wants a queryable audit trail alongside stdout logging.
func (s *Store) AppendLog(ctx context.Context, level, logger, message, runID, serviceID, environment string, metadata map[string]interface{}) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO logs (log_level, logger_name, message, run_id, service_name, environment, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, level, logger, message, runID, serviceID, environment, string(metaJSON))
		return err
	})
}
