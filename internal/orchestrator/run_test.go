package orchestrator

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var branchNamePattern = regexp.MustCompile(`^(golden|drift)_[a-z]+_\d{8}_\d{6}_[0-9a-f]{6}$`)

func TestNewBranchNameMatchesNamingConvention(t *testing.T) {
	name := newBranchName("golden", "production")
	assert.Regexp(t, branchNamePattern, name)

	name = newBranchName("drift", "staging")
	assert.Regexp(t, branchNamePattern, name)
}

func TestNewBranchNameIsUniquePerCall(t *testing.T) {
	a := newBranchName("golden", "production")
	b := newBranchName("golden", "production")
	assert.NotEqual(t, a, b)
}

func TestEnsureGoldenReusesActiveBranch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.ActivateGoldenBranch(ctx, &models.GoldenBranch{
		ServiceID: "platform_api", Environment: "production",
		BranchName: "golden_production_20260101_000000_abcdef", BranchType: models.BranchGolden,
	}))

	svc := &models.Service{ServiceID: "platform_api", MainBranch: "main"}
	deps := Deps{Store: st}

	branch, err := ensureGolden(ctx, deps, nil, svc, "production")
	require.NoError(t, err)
	assert.Equal(t, "golden_production_20260101_000000_abcdef", branch)
}

func TestActivateSnapshotAsGoldenPersistsScore(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	svc := &models.Service{ServiceID: "platform_api", MainBranch: "main"}
	deps := Deps{Store: st}

	require.NoError(t, activateSnapshotAsGolden(ctx, deps, svc, "production", "drift_production_20260101_000000_abcdef", 92))

	gb, err := st.GetActiveGoldenBranch(ctx, "platform_api", "production")
	require.NoError(t, err)
	assert.Equal(t, "drift_production_20260101_000000_abcdef", gb.BranchName)
	require.NotNil(t, gb.CertificationScore)
	assert.Equal(t, 92, *gb.CertificationScore)
}

func TestActivateSnapshotAsGoldenSupersedesPriorActive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &models.Service{ServiceID: "platform_api"}
	deps := Deps{Store: st}

	require.NoError(t, activateSnapshotAsGolden(ctx, deps, svc, "production", "drift_a", 80))
	require.NoError(t, activateSnapshotAsGolden(ctx, deps, svc, "production", "drift_b", 95))

	gb, err := st.GetActiveGoldenBranch(ctx, "platform_api", "production")
	require.NoError(t, err)
	assert.Equal(t, "drift_b", gb.BranchName)
}

func TestRunFailsFastWhenServiceUnknown(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	deps := Deps{Store: st}

	_, err := Run(ctx, deps, "no_such_service", "production")
	assert.Error(t, err)
}
