package guardrail

import (
	"strings"

	"github.com/catherinevee/certguard/internal/drift"
	"github.com/catherinevee/certguard/internal/models"
)

// policyCheck is the per-delta result of checkPolicyRules, matching
// guardrails_policy_agent.py's _check_policy_rules return shape.
type policyCheck struct {
	violation bool
	rule      string
	severity  string
	reason    string
}

// checkPolicyRules re-evaluates a delta against policy.Invariants and
// policy.EnvAllowKeys under the given environment, matching
// _check_policy_rules. Unlike the drift engine's first-pass TagWithPolicy
// (which matches EnvAllowKeys against the locator value), this reapplication
// matches EnvAllowKeys against the delta's file path, and additionally
// checks RequireValues -- both are genuine differences between
// drift_v1.py's _tag_with_policy and guardrails_policy_agent.py's
// _check_policy_rules, preserved here rather than unified.
func checkPolicyRules(d models.Delta, policy drift.PolicyConfig) policyCheck {
	locVal := strings.ToLower(d.Locator.Value)
	file := strings.ToLower(d.File)
	newVal := strings.ToLower(d.StringNew())

	for _, inv := range policy.Invariants {
		lc := strings.ToLower(inv.LocatorContains)
		if lc != "" && !strings.Contains(locVal, lc) {
			continue
		}

		for _, forbidden := range inv.ForbidValues {
			if strings.Contains(newVal, strings.ToLower(forbidden)) {
				return policyCheck{
					violation: true,
					rule:      inv.Name,
					severity:  orDefault(inv.Severity, "critical"),
					reason:    "Forbidden value detected: " + forbidden,
				}
			}
		}
		for _, required := range inv.RequireValues {
			if !strings.Contains(newVal, strings.ToLower(required)) {
				return policyCheck{
					violation: true,
					rule:      inv.Name,
					severity:  orDefault(inv.Severity, "critical"),
					reason:    "Required value missing: " + required,
				}
			}
		}
	}

	for _, allow := range policy.EnvAllowKeys {
		if strings.Contains(file, strings.ToLower(allow)) {
			return policyCheck{violation: false, reason: "Environment-specific file, allowed variance"}
		}
	}

	return policyCheck{violation: false}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ValidateDeltas reapplies policy under environment to every delta,
// matching _validate_policies: an invariant violation always wins and sets
// invariant_breach; otherwise an existing allowed_variance tag from the
// drift engine's first pass is kept; an untagged delta is marked suspect
// ("requires AI analysis"); any other existing tag is left alone. Returns
// the deltas (mutated in place) plus aggregate PolicyTotals and the
// Violation list the Confidence Scorer consumes.
func ValidateDeltas(deltas []models.Delta, policy drift.PolicyConfig, environment string) ([]models.Delta, models.PolicyTotals, []models.PolicyBreach) {
	var totals models.PolicyTotals
	var violations []models.PolicyBreach

	for i := range deltas {
		d := &deltas[i]
		check := checkPolicyRules(*d, policy)

		switch {
		case check.violation:
			d.Policy = models.Policy{
				Tag:       models.PolicyInvariantBreach,
				Rule:      check.rule,
				Severity:  check.severity,
				Violation: "true",
				Reason:    check.reason,
			}
			violations = append(violations, models.PolicyBreach{
				Rule:     check.rule,
				Severity: check.severity,
				DeltaID:  d.ID,
				Reason:   check.reason,
			})
			countSeverity(&totals, check.severity)
		case d.Policy.Tag == models.PolicyAllowedVariance:
			totals.AllowedVariance++
		case d.Policy.Tag == "":
			d.Policy = models.Policy{Tag: models.PolicySuspect, Reason: "Requires AI analysis"}
			totals.Suspect++
		default:
			if d.Policy.Tag == models.PolicySuspect {
				totals.Suspect++
			}
		}
	}

	log.Info("policy validation complete", map[string]interface{}{
		"total_violations": len(violations),
		"critical":         totals.Critical,
		"high":             totals.High,
		"environment":      environment,
	})

	return deltas, totals, violations
}

func countSeverity(t *models.PolicyTotals, severity string) {
	t.InvariantBreach++
	switch severity {
	case "critical":
		t.Critical++
	case "high":
		t.High++
	case "medium":
		t.Medium++
	}
}
