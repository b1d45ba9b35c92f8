package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/drift"
	"github.com/catherinevee/certguard/internal/models"
)

func TestValidateRedactsBeforeTagging(t *testing.T) {
	bundle := &models.ContextBundle{
		Deltas: []models.Delta{
			{ID: "d1", Locator: models.Locator{Value: "app.yml.admin.email"}, Old: "old@example.com", New: "new@example.com"},
		},
	}

	validation := Validate(bundle, drift.PolicyConfig{}, "run-1", "production")

	assert.True(t, validation.PII.Redacted)
	assert.Equal(t, "[REDACTED_EMAIL]", bundle.Deltas[0].New)
	assert.Equal(t, models.PolicySuspect, bundle.Deltas[0].Policy.Tag)
}

func TestValidateEmptyDeltasReturnsEmptyValidation(t *testing.T) {
	bundle := &models.ContextBundle{}
	validation := Validate(bundle, drift.PolicyConfig{}, "run-2", "production")

	require.Equal(t, "run-2", validation.RunID)
	assert.Equal(t, 0, validation.PII.InstancesFound)
	assert.Empty(t, validation.Violations)
}
