package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
)

func TestScanIntentTextFindsSQLInjection(t *testing.T) {
	findings := ScanIntentText("name = '; DROP TABLE users; --")
	require.NotEmpty(t, findings)
	assert.Equal(t, "sql_injection", findings[0].Category)
	assert.Equal(t, "critical", findings[0].Severity)
}

func TestScanIntentTextCleanReturnsNothing(t *testing.T) {
	findings := ScanIntentText("server.port: 8080")
	assert.Empty(t, findings)
}

func TestScanDeltaMarksSuspicious(t *testing.T) {
	d := models.Delta{New: "DEBUG_MODE = true"}
	ScanDelta(&d)

	assert.True(t, d.IntentGuard.Suspicious)
	assert.NotEmpty(t, d.IntentGuard.PatternsDetected)
}

func TestScanDeltaSafeMarksNotSuspicious(t *testing.T) {
	d := models.Delta{Old: "8080", New: "9090"}
	ScanDelta(&d)

	assert.False(t, d.IntentGuard.Suspicious)
	assert.Equal(t, "none", d.IntentGuard.Severity)
}

func TestMaxSeverityIsLexicographicNotRanked(t *testing.T) {
	// Reproduces the original's max(severities, default='low') quirk:
	// plain string comparison, not a risk-rank comparison, so "medium"
	// beats "critical" lexicographically ('m' > 'c').
	assert.Equal(t, "medium", maxSeverity([]string{"critical", "medium"}, "low"))
	assert.Equal(t, "low", maxSeverity(nil, "low"))
}

func TestScanDeltasAggregatesCriticalCount(t *testing.T) {
	deltas := []models.Delta{
		{New: "'; DROP TABLE users; --"},
		{New: "server.port: 8080"},
	}
	report := ScanDeltas(deltas)

	assert.False(t, report.Safe)
	assert.Equal(t, 1, report.CriticalFindings)
	assert.Equal(t, 1, report.TotalFindings)
}
