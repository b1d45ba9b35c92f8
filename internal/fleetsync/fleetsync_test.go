package fleetsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/store"
)

func writeRoster(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRosterMergesDetailDefaults(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", `
vsats:
  - name: platform
    url: https://gitlab.example.com/platform
    enabled: true
  - name: data
    url: https://gitlab.example.com/data
    enabled: false
`)

	roster, err := LoadRoster(master, "")
	require.NoError(t, err)
	assert.Len(t, roster.Groups, 2)
	assert.Equal(t, "main", roster.Defaults.MainBranch)
	assert.True(t, roster.Sync.CreateGoldenBranches)
	assert.Equal(t, 50, roster.Sync.MaxDeletePercentage)
}

func TestLoadRosterAppliesDetailOverrides(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", `
vsats:
  - name: platform
    url: https://gitlab.example.com/platform
    enabled: true
`)
	detail := writeRoster(t, dir, "detail.yaml", `
defaults:
  main_branch: trunk
  environments: [dev, prod]
sync:
  max_branch_workers: 2
  max_delete_percentage: 10
vsat_overrides:
  platform:
    main_branch: release
`)

	roster, err := LoadRoster(master, detail)
	require.NoError(t, err)
	assert.Equal(t, "trunk", roster.Defaults.MainBranch)
	assert.Equal(t, 2, roster.Sync.MaxBranchWorkers)
	assert.Equal(t, 10, roster.Sync.MaxDeletePercentage)
	assert.Equal(t, "release", roster.Groups[0].ServiceConfig["main_branch"])
}

func TestLoadRosterRejectsDuplicateGroupNames(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", `
vsats:
  - name: platform
    url: https://gitlab.example.com/a
  - name: platform
    url: https://gitlab.example.com/b
`)

	_, err := LoadRoster(master, "")
	assert.Error(t, err)
}

func TestLoadRosterRejectsEmptyGroupList(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", "vsats: []\n")

	_, err := LoadRoster(master, "")
	assert.Error(t, err)
}

func TestLoadRosterMissingDetailFallsBackSilently(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", `
vsats:
  - name: platform
    url: https://gitlab.example.com/platform
`)

	roster, err := LoadRoster(master, filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "main", roster.Defaults.MainBranch)
}

func TestConfigHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", "vsats:\n  - name: a\n    url: x\n")

	h1, err := configHash(master, "")
	require.NoError(t, err)

	writeRoster(t, dir, "master.yaml", "vsats:\n  - name: b\n    url: y\n")
	h2, err := configHash(master, "")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestHasConfigChangedTrueWhenHashFileMissing(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", "vsats:\n  - name: a\n    url: x\n")

	changed, err := hasConfigChanged(filepath.Join(dir, "nope.hash"), master, "")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestSaveAndDetectConfigChange(t *testing.T) {
	dir := t.TempDir()
	master := writeRoster(t, dir, "master.yaml", "vsats:\n  - name: a\n    url: x\n")
	hashFile := filepath.Join(dir, "roster.hash")

	require.NoError(t, saveConfigHash(hashFile, master, ""))

	changed, err := hasConfigChanged(hashFile, master, "")
	require.NoError(t, err)
	assert.False(t, changed)

	writeRoster(t, dir, "master.yaml", "vsats:\n  - name: b\n    url: y\n")
	changed, err = hasConfigChanged(hashFile, master, "")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestApplyFiltersExcludeWinsOverInclude(t *testing.T) {
	names := []string{"payments-api", "payments-legacy", "billing-api"}
	kept := applyFilters(names, Filters{
		IncludePatterns: []string{"*-api"},
		ExcludePatterns: []string{"payments-*"},
	})
	assert.ElementsMatch(t, []string{"billing-api"}, kept)
}

func TestApplyFiltersNoPatternsKeepsAll(t *testing.T) {
	names := []string{"a", "b"}
	kept := applyFilters(names, Filters{})
	assert.Equal(t, names, kept)
}

func TestMatchesAnyPrefixAndSuffix(t *testing.T) {
	assert.True(t, matchesAny("payments-api", []string{"payments-*"}))
	assert.True(t, matchesAny("internal-tools", []string{"*-tools"}))
	assert.False(t, matchesAny("billing", []string{"payments-*"}))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCleanupOrphanedServicesDeactivatesMissingGroups(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.UpsertService(ctx, &models.Service{
		ServiceID: "platform_api", DisplayName: "api", Group: "platform",
		MainBranch: "main", Active: true,
	}))
	require.NoError(t, st.UpsertService(ctx, &models.Service{
		ServiceID: "data_etl", DisplayName: "etl", Group: "data",
		MainBranch: "main", Active: true,
	}))

	deactivated, reactivated, err := cleanupOrphanedServices(ctx, st, map[string]bool{"platform": true}, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, deactivated)
	assert.Equal(t, 0, reactivated)

	svc, err := st.GetService(ctx, "data_etl")
	require.NoError(t, err)
	assert.False(t, svc.Active)
}

func TestCleanupOrphanedServicesReactivatesReturningGroups(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.UpsertService(ctx, &models.Service{
		ServiceID: "data_etl", DisplayName: "etl", Group: "data",
		MainBranch: "main", Active: false,
	}))

	deactivated, reactivated, err := cleanupOrphanedServices(ctx, st, map[string]bool{"data": true}, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, deactivated)
	assert.Equal(t, 1, reactivated)

	svc, err := st.GetService(ctx, "data_etl")
	require.NoError(t, err)
	assert.True(t, svc.Active)
}

func TestCleanupOrphanedServicesRefusesToExceedMaxDeletePercentage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, st.UpsertService(ctx, &models.Service{
			ServiceID: id, DisplayName: id, Group: "gone",
			MainBranch: "main", Active: true,
		}))
	}

	// 4 of 4 active services would be deactivated, well past a 25% ceiling.
	deactivated, _, err := cleanupOrphanedServices(ctx, st, map[string]bool{}, 25)
	require.NoError(t, err)
	assert.Equal(t, 0, deactivated)

	svc, err := st.GetService(ctx, "a")
	require.NoError(t, err)
	assert.True(t, svc.Active)
}
