// Package triage implements the Triage Engine (C7): batches a
// ContextBundle's deltas by file, asks the LLM Client to adjudicate each
// batch into risk buckets, and merges the results into a single LLMOutput.
package triage

import (
	"fmt"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

// BuildPrompt renders the delta-adjudication prompt for one batch, matching
// build_llm_format_prompt's structure and field requirements exactly
// (including the explicit DO-NOT-INCLUDE / CATEGORIZATION GUIDELINES
// sections, since the exact output schema depends on the model following
// them).
func BuildPrompt(file string, deltas []models.Delta, environment string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a configuration drift adjudicator analyzing file %q for environment %q.\n\n", file, environment)
	fmt.Fprintf(&b, "Your task is to categorize ALL %d configuration changes into risk buckets.\n\n", len(deltas))
	b.WriteString("## CHANGES TO ANALYZE\n\n")

	for i, d := range deltas {
		policyTag := string(d.Policy.Tag)
		if policyTag == "" {
			policyTag = "unknown"
		}
		fmt.Fprintf(&b, "### CHANGE #%d\n", i+1)
		fmt.Fprintf(&b, "- **ID**: `%s`\n", d.ID)
		fmt.Fprintf(&b, "- **Category**: %s\n", d.Category)
		fmt.Fprintf(&b, "- **Location**: %s: `%s`\n", d.Locator.Type, d.Locator.Value)
		fmt.Fprintf(&b, "- **Old Value**: `%s`\n", valueOrNull(d.Old))
		fmt.Fprintf(&b, "- **New Value**: `%s`\n", valueOrNull(d.New))
		fmt.Fprintf(&b, "- **Policy Tag**: %s\n\n", policyTag)
	}

	b.WriteString(outputFormatSpec(file))
	return b.String()
}

func valueOrNull(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

func outputFormatSpec(file string) string {
	return fmt.Sprintf(`
## OUTPUT FORMAT

Return ONLY valid JSON with this EXACT structure. Include ALL required fields.

{
  "high": [{"id": "delta_id", "file": %[1]q, "locator": {"type": "keypath", "value": "full.path"}, "old": "previous value", "new": "new value", "why": "what changed and its impact", "remediation": {"snippet": "corrected value"}, "ai_review_assistant": {"potential_risk": "2-3 sentence explanation", "suggested_action": "numbered steps"}}],
  "medium": [... same shape as high ...],
  "low": [... same shape as high ...],
  "allowed_variance": [{"id": "delta_id", "file": %[1]q, "locator": {"type": "keypath", "value": "full.path"}, "old": "previous value", "new": "new value", "rationale": "why this is acceptable"}]
}

## CRITICAL FIELD REQUIREMENTS

high/medium/low items require: id, file, locator (type + value), old, new,
why, remediation.snippet, ai_review_assistant.potential_risk,
ai_review_assistant.suggested_action.
allowed_variance items require: id, file, locator (type + value), old, new,
rationale.

## DO NOT INCLUDE

Do not add drift_category, risk_level, risk_reason, why_allowed (use
rationale instead), remediation.steps, or remediation.patch_hint unless a
full unified diff is attached.

## CATEGORIZATION GUIDELINES

high: database credentials, disabled security features, modified
production endpoints, authentication/authorization changes, invariant_breach.
medium: network configuration, dependency version changes, feature
behavior modifications, performance settings.
low: logging level changes, comment updates, minor tweaks.
allowed_variance: environment-specific configuration, test/CI settings,
policy tag already allowed_variance.

## ANALYSIS INSTRUCTIONS

Analyze each delta above, place it in exactly one bucket, reuse its exact
ID and locator, include old/new values, and return ONLY the JSON object
with no markdown fencing or commentary.
`, file)
}
