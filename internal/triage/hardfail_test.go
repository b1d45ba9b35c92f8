package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/catherinevee/certguard/internal/models"
)

func TestHardFailsCatchesInvariantBreach(t *testing.T) {
	deltas := []models.Delta{
		{ID: "a", Policy: models.Policy{Tag: models.PolicyInvariantBreach}},
		{ID: "b", New: "ssl=false"},
		{ID: "c", Old: "x", New: "y"},
	}
	out := HardFails(deltas)
	assert.Len(t, out, 2)
}
