package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectPathFromRepoURLStripsSchemeAndGitSuffix(t *testing.T) {
	path, err := ProjectPathFromRepoURL("https://gitlab.example.com/platform/payments-api.git")
	require.NoError(t, err)
	assert.Equal(t, "platform/payments-api", path)
}

func TestProjectPathFromRepoURLHandlesNestedGroups(t *testing.T) {
	path, err := ProjectPathFromRepoURL("https://gitlab.example.com/platform/sub-group/payments-api")
	require.NoError(t, err)
	assert.Equal(t, "platform/sub-group/payments-api", path)
}

func TestProjectPathFromRepoURLRejectsBareHost(t *testing.T) {
	_, err := ProjectPathFromRepoURL("https://gitlab.example.com")
	assert.Error(t, err)
}
