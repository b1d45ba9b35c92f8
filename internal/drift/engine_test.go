package drift

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestAnalyzeDetectsConfigKeyChange(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()

	writeFile(t, golden, "app.yml", "server:\n  port: 8080\n")
	writeFile(t, candidate, "app.yml", "server:\n  port: 9090\n")

	bundle, err := Analyze(golden, candidate, models.BundleMeta{RunID: "r1", ServiceID: "svc", Environment: "prod"}, PolicyConfig{})
	require.NoError(t, err)

	assert.Equal(t, 1, bundle.Overview.ModifiedCount)
	assert.NotEmpty(t, bundle.Deltas)

	var found bool
	for _, d := range bundle.Deltas {
		if d.Category == models.CategoryConfig && d.File == "app.yml" {
			found = true
			assert.Equal(t, "8080", d.StringOld())
			assert.Equal(t, "9090", d.StringNew())
		}
	}
	assert.True(t, found, "expected a config delta for app.yml server.port")
}

func TestAnalyzeDetectsAddedAndRemovedFiles(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()

	writeFile(t, golden, "removed.yml", "a: 1\n")
	writeFile(t, candidate, "added.yml", "b: 2\n")

	bundle, err := Analyze(golden, candidate, models.BundleMeta{}, PolicyConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"added.yml"}, bundle.FileChanges.Added)
	assert.Equal(t, []string{"removed.yml"}, bundle.FileChanges.Removed)
}

func TestTagWithPolicyAllowedVariance(t *testing.T) {
	d := models.Delta{Locator: models.Locator{Value: "app.yml.server.port"}}
	policy := PolicyConfig{EnvAllowKeys: []string{"server.port"}}

	TagWithPolicy(&d, policy)

	assert.Equal(t, models.PolicyAllowedVariance, d.Policy.Tag)
	assert.Equal(t, "env_allow_keys", d.Policy.Rule)
}

func TestTagWithPolicyInvariantBreach(t *testing.T) {
	d := models.Delta{Locator: models.Locator{Value: "app.yml.debug"}, New: "true"}
	policy := PolicyConfig{
		Invariants: []Invariant{{Name: "no-debug-in-prod", LocatorContains: "debug", ForbidValues: []string{"true"}, Severity: "high"}},
	}

	TagWithPolicy(&d, policy)

	assert.Equal(t, models.PolicyInvariantBreach, d.Policy.Tag)
	assert.Equal(t, "no-debug-in-prod", d.Policy.Rule)
	assert.Equal(t, "high", d.Policy.Severity)
}

func TestRiskLevelAndReasonCredential(t *testing.T) {
	d := models.Delta{Category: models.CategoryConfig, Locator: models.Locator{Value: "app.yml.db.password"}}
	level, _ := riskLevelAndReason(d)
	assert.Equal(t, models.RiskHigh, level)
}

func TestMergeDeltasDedupesAcrossDetectors(t *testing.T) {
	a := models.Delta{ID: "cfg~app.yml.server.port", Category: models.CategoryConfig, File: "app.yml", Locator: models.Locator{Value: "app.yml.server.port"}, Old: "8080", New: "9090"}
	b := models.Delta{ID: "spring~app.yml.server.port", Category: models.CategorySpringProfile, File: "app.yml", Locator: models.Locator{Value: "app.yml.server.port"}, Old: "8080", New: "9090"}

	out := MergeDeltas([]models.Delta{a, b})

	require.Len(t, out, 1)
	assert.Equal(t, models.CategorySpringProfile, out[0].Category)
	assert.Contains(t, out[0].DetectionSources, "config")
	assert.Contains(t, out[0].DetectionSources, "spring_profile")
}

func TestDependencyDiffMaven(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()
	writeFile(t, golden, "pom.xml", `<project><dependencies><dependency><groupId>com.x</groupId><artifactId>y</artifactId><version>1.0</version></dependency></dependencies></project>`)
	writeFile(t, candidate, "pom.xml", `<project><dependencies><dependency><groupId>com.x</groupId><artifactId>y</artifactId><version>2.0</version></dependency></dependencies></project>`)

	g := ExtractDependencies(golden)
	c := ExtractDependencies(candidate)
	diff := DependencyDiff(g, c)

	require.NotNil(t, diff.Maven)
	ch, ok := diff.Maven.Changed["com.x:y"]
	require.True(t, ok)
	assert.Equal(t, "1.0", ch.From)
	assert.Equal(t, "2.0", ch.To)
}
