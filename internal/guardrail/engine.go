package guardrail

import (
	"github.com/catherinevee/certguard/internal/drift"
	"github.com/catherinevee/certguard/internal/models"
)

// Validate runs the full Guardrail Engine (C6) over a ContextBundle's
// deltas, matching guardrails_policy_agent.py's process_task pipeline
// order: PII redaction first (so nothing downstream, including Triage's
// LLM, ever sees raw secrets), then intent-guard scanning, then policy
// re-validation. The bundle's Deltas are mutated in place; the returned
// PolicyValidation is what the Store persists for the Triage/Certification
// stages and the Confidence Scorer to consume.
func Validate(bundle *models.ContextBundle, policy drift.PolicyConfig, runID, environment string) models.PolicyValidation {
	if len(bundle.Deltas) == 0 {
		log.Warn("no deltas to process, saving empty policy validation", map[string]interface{}{"run_id": runID})
		return models.PolicyValidation{
			RunID:  runID,
			PII:    models.PIIReport{Types: []string{}},
			Intent: models.IntentReport{SuspiciousPatterns: []models.IntentFinding{}},
		}
	}

	piiReport := RedactDeltas(bundle.Deltas)
	intentReport := ScanDeltas(bundle.Deltas)
	_, totals, violations := ValidateDeltas(bundle.Deltas, policy, environment)

	return models.PolicyValidation{
		RunID:      runID,
		PII:        piiReport,
		Intent:     intentReport,
		Totals:     totals,
		Violations: violations,
	}
}
