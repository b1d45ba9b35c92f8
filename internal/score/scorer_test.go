package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/catherinevee/certguard/internal/models"
)

func TestCalculateCleanLowRiskAutoMerges(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel:   "low",
		LowCount:    3,
		Environment: "production",
	})

	assert.Equal(t, models.DecisionAutoMerge, cert.Decision)
	assert.Equal(t, models.ConfidenceHigh, cert.ConfidenceLevel)
	assert.Equal(t, 94, cert.ConfidenceScore)
}

func TestCalculateAnyMediumRiskAlwaysBlocks(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel:   "medium",
		MediumCount: 1,
		Environment: "production",
	})

	assert.Equal(t, models.DecisionBlockMerge, cert.Decision)
	assert.Less(t, cert.ConfidenceScore, 50)
}

func TestCalculateCriticalRiskLevelWithoutCountsStillBlocks(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel:   "critical",
		Environment: "production",
	})

	assert.Equal(t, models.DecisionBlockMerge, cert.Decision)
	assert.Equal(t, 20, cert.ConfidenceScore)
}

func TestCalculatePolicyViolationsDeductPoints(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel: "none",
		Violations: []models.PolicyBreach{
			{Severity: "critical"},
			{Severity: "high"},
		},
		Environment: "production",
	})

	assert.Equal(t, -45, cert.Components.PolicyDeductions)
}

func TestCalculateBlastRadiusPenaltyCapped(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel: "none",
		BlastRadius: &models.BlastRadius{
			FilesAffected:      10,
			CriticalFiles:      5,
			DownstreamServices: []string{"a", "b", "c", "d", "e", "f"},
			Scope:              "critical",
		},
		Environment: "production",
	})

	assert.Equal(t, -50, cert.Components.BlastRadiusPenalty)
}

func TestCalculateHistoryAdjustmentClampedByOutage(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel: "none",
		HistoryAnalysis: &models.HistoricalPattern{
			OutageHistory: true,
			TrustLevel:    0.9,
		},
		Environment: "production",
	})

	// outage: -20, trust > 0.8: +10 -> clamped adjustment = -10
	assert.Equal(t, -10, cert.Components.HistoryAdjustment)
}

func TestCalculateStagingThresholdsAreLooser(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel:   "none",
		Environment: "staging",
	})

	assert.Equal(t, models.DecisionAutoMerge, cert.Decision)
}

func TestCalculateDevelopmentRequiresFiftyForReview(t *testing.T) {
	cert := Calculate(Input{
		RiskLevel: "none",
		Violations: []models.PolicyBreach{
			{Severity: "critical"}, {Severity: "critical"},
		},
		Environment: "development",
	})

	assert.Equal(t, models.DecisionBlockMerge, cert.Decision)
}
