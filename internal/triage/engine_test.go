package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/llm"
	"github.com/catherinevee/certguard/internal/models"
)

const validLLMResponse = `{
  "high": [{"id": "d1", "file": "app.yml", "locator": {"type": "keypath", "value": "app.yml.db.password"}, "old": "a", "new": "b", "why": "secret changed", "remediation": {"snippet": "a"}, "ai_review_assistant": {"potential_risk": "risk", "suggested_action": "1. check"}}],
  "medium": [],
  "low": [],
  "allowed_variance": []
}`

func TestAnalyzeUsesLLMOutputWhenValid(t *testing.T) {
	client := &llm.MockClient{Response: validLLMResponse}
	bundle := &models.ContextBundle{
		Deltas: []models.Delta{
			{ID: "d1", File: "app.yml", Category: models.CategoryConfig, Locator: models.Locator{Value: "app.yml.db.password"}, Old: "a", New: "b"},
		},
	}

	out := Analyze(context.Background(), client, bundle, "run-1", "production")

	require.Len(t, out.High, 1)
	assert.Equal(t, "d1", out.High[0].ID)
	assert.Equal(t, 1, out.Summary.HighRisk)
}

func TestAnalyzeFallsBackOnLLMError(t *testing.T) {
	client := &llm.MockClient{Err: assert.AnError}
	bundle := &models.ContextBundle{
		Deltas: []models.Delta{
			{ID: "d1", File: "app.yml", Category: models.CategoryConfig, Locator: models.Locator{Value: "app.yml.db.password"}, Old: "a", New: "secretvalue"},
		},
	}

	out := Analyze(context.Background(), client, bundle, "run-2", "production")

	require.Len(t, out.High, 1)
	assert.Equal(t, "d1", out.High[0].ID)
	assert.NotEmpty(t, out.High[0].Why)
}

func TestAnalyzeEmptyDeltasReturnsEmptyOutput(t *testing.T) {
	client := &llm.MockClient{}
	out := Analyze(context.Background(), client, &models.ContextBundle{}, "run-3", "production")

	assert.Equal(t, "run-3", out.RunID)
	assert.Empty(t, out.High)
}
