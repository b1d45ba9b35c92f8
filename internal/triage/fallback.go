package triage

import (
	"fmt"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

var highRiskNewValueTokens = []string{"password", "secret", "key", "token"}
var mediumRiskNewValueTokens = []string{"port", "host", "url", "endpoint"}

// fallbackCategorize rule-categorizes a batch when the LLM call or its
// response validation fails, matching _fallback_llm_categorization exactly:
// invariant_breach or a credential-looking new value goes to high, an
// existing allowed_variance tag short-circuits to that bucket, a
// network/endpoint-looking new value goes to medium, everything else to
// low. The "why"/"remediation.snippet" placeholders mirror the original's
// placeholder text (suggesting a revert to the old value).
func fallbackCategorize(file string, deltas []models.Delta) llmFormat {
	out := llmFormat{}

	for _, d := range deltas {
		newVal := strings.ToLower(d.StringNew())
		oldVal := d.StringOld()

		switch {
		case d.Policy.Tag == models.PolicyInvariantBreach || containsAny(newVal, highRiskNewValueTokens):
			out.High = append(out.High, models.TriageItem{
				ID: d.ID, File: file, Locator: d.Locator,
				Why:         fmt.Sprintf("Configuration change from %s to %s", oldVal, d.StringNew()),
				Remediation: &models.Remediation{Snippet: oldVal},
			})
		case d.Policy.Tag == models.PolicyAllowedVariance:
			out.AllowedVariance = append(out.AllowedVariance, models.TriageItem{
				ID: d.ID, File: file, Locator: d.Locator,
				Old: d.Old, New: d.New,
				Rationale: "Environment-specific configuration difference",
			})
		case containsAny(newVal, mediumRiskNewValueTokens):
			out.Medium = append(out.Medium, models.TriageItem{
				ID: d.ID, File: file, Locator: d.Locator,
				Why:         fmt.Sprintf("Configuration change from %s to %s", oldVal, d.StringNew()),
				Remediation: &models.Remediation{Snippet: oldVal},
			})
		default:
			out.Low = append(out.Low, models.TriageItem{
				ID: d.ID, File: file, Locator: d.Locator,
				Why:         fmt.Sprintf("Configuration change from %s to %s", oldVal, d.StringNew()),
				Remediation: &models.Remediation{Snippet: oldVal},
			})
		}
	}

	return out
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
