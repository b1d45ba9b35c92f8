package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/drift"
	"github.com/catherinevee/certguard/internal/models"
)

func TestValidateDeltasInvariantBreachTakesPrecedence(t *testing.T) {
	d := models.Delta{
		ID:      "d1",
		File:    "app.yml",
		Locator: models.Locator{Value: "app.yml.ssl.enabled"},
		New:     "false",
		Policy:  models.Policy{Tag: models.PolicyAllowedVariance},
	}
	policy := drift.PolicyConfig{
		Invariants: []drift.Invariant{{Name: "ssl-required", LocatorContains: "ssl.enabled", ForbidValues: []string{"false"}, Severity: "critical"}},
	}

	out, totals, violations := ValidateDeltas([]models.Delta{d}, policy, "production")

	assert.Equal(t, models.PolicyInvariantBreach, out[0].Policy.Tag)
	assert.Equal(t, 1, totals.InvariantBreach)
	assert.Equal(t, 1, totals.Critical)
	require.Len(t, violations, 1)
	assert.Equal(t, "ssl-required", violations[0].Rule)
}

func TestValidateDeltasRequireValuesMissing(t *testing.T) {
	d := models.Delta{
		ID:      "d2",
		Locator: models.Locator{Value: "app.yml.auth.mode"},
		New:     "basic",
	}
	policy := drift.PolicyConfig{
		Invariants: []drift.Invariant{{Name: "mfa-required", LocatorContains: "auth.mode", RequireValues: []string{"mfa"}, Severity: "high"}},
	}

	out, totals, _ := ValidateDeltas([]models.Delta{d}, policy, "production")

	assert.Equal(t, models.PolicyInvariantBreach, out[0].Policy.Tag)
	assert.Equal(t, 1, totals.High)
}

func TestValidateDeltasKeepsExistingAllowedVariance(t *testing.T) {
	d := models.Delta{ID: "d3", Policy: models.Policy{Tag: models.PolicyAllowedVariance, Rule: "env_allow_keys"}}
	out, totals, violations := ValidateDeltas([]models.Delta{d}, drift.PolicyConfig{}, "staging")

	assert.Equal(t, models.PolicyAllowedVariance, out[0].Policy.Tag)
	assert.Equal(t, "env_allow_keys", out[0].Policy.Rule)
	assert.Equal(t, 1, totals.AllowedVariance)
	assert.Empty(t, violations)
}

func TestValidateDeltasUntaggedBecomesSuspect(t *testing.T) {
	d := models.Delta{ID: "d4"}
	out, totals, _ := ValidateDeltas([]models.Delta{d}, drift.PolicyConfig{}, "staging")

	assert.Equal(t, models.PolicySuspect, out[0].Policy.Tag)
	assert.Equal(t, "Requires AI analysis", out[0].Policy.Reason)
	assert.Equal(t, 1, totals.Suspect)
}
