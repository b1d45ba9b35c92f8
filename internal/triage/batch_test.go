package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
)

func TestSelectForAnalysisCapsAndFilters(t *testing.T) {
	var deltas []models.Delta
	for i := 0; i < 35; i++ {
		deltas = append(deltas, models.Delta{ID: "c", Category: models.CategoryConfig})
	}
	for i := 0; i < 15; i++ {
		deltas = append(deltas, models.Delta{ID: "d", Category: models.CategoryDependency})
	}
	deltas = append(deltas, models.Delta{ID: "skip", Category: models.CategoryFile})

	selected := selectForAnalysis(deltas)
	assert.Len(t, selected, 40)
}

func TestDeduplicateDropsRepeatedTuple(t *testing.T) {
	deltas := []models.Delta{
		{File: "a.yml", Locator: models.Locator{Value: "a.yml.x"}, Old: "1", New: "2"},
		{File: "a.yml", Locator: models.Locator{Value: "a.yml.x"}, Old: "1", New: "2"},
		{File: "a.yml", Locator: models.Locator{Value: "a.yml.y"}, Old: "1", New: "2"},
	}
	out := deduplicate(deltas)
	assert.Len(t, out, 2)
}

func TestGroupIntoBatchesSplitsLargeFiles(t *testing.T) {
	var deltas []models.Delta
	for i := 0; i < 25; i++ {
		deltas = append(deltas, models.Delta{File: "big.yml"})
	}
	batches := groupIntoBatches(deltas)

	require.Len(t, batches, 3)
	assert.Equal(t, "big.yml_batch_1", batches[0].name)
	assert.Len(t, batches[0].deltas, 10)
	assert.Len(t, batches[2].deltas, 5)
}
