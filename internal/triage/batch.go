package triage

import (
	"fmt"

	"github.com/catherinevee/certguard/internal/models"
)

const (
	maxConfigDeltas  = 30
	maxDepDeltas     = 10
	maxBatchSize     = 10
)

// selectForAnalysis filters and caps the deltas sent to the LLM, matching
// process_task's config_deltas[:30] + dep_deltas[:10] slice (code_hunk and
// file-presence deltas are never sent to the LLM; they ride through
// untouched in the caller's bookkeeping).
func selectForAnalysis(deltas []models.Delta) []models.Delta {
	var config, deps []models.Delta
	for _, d := range deltas {
		switch d.Category {
		case models.CategoryConfig, models.CategorySpringProfile:
			config = append(config, d)
		case models.CategoryDependency:
			deps = append(deps, d)
		}
	}
	if len(config) > maxConfigDeltas {
		config = config[:maxConfigDeltas]
	}
	if len(deps) > maxDepDeltas {
		deps = deps[:maxDepDeltas]
	}
	return append(config, deps...)
}

// deduplicate drops deltas whose (file, locator value, old, new) tuple has
// already been seen, matching the agent's seen_deltas unique_key dedup
// pass. Order of first occurrence is preserved.
func deduplicate(deltas []models.Delta) []models.Delta {
	seen := map[string]bool{}
	var out []models.Delta
	for _, d := range deltas {
		key := fmt.Sprintf("%s:%s:%v:%v", d.File, d.Locator.Value, d.Old, d.New)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// batch is one named group of deltas to send to the LLM in a single call.
type batch struct {
	name   string
	deltas []models.Delta
}

// groupIntoBatches groups deltas by file and splits any file with more than
// maxBatchSize deltas into numbered sub-batches, matching final_batches'
// construction exactly.
func groupIntoBatches(deltas []models.Delta) []batch {
	order := []string{}
	byFile := map[string][]models.Delta{}
	for _, d := range deltas {
		file := d.File
		if file == "" {
			file = "unknown"
		}
		if _, ok := byFile[file]; !ok {
			order = append(order, file)
		}
		byFile[file] = append(byFile[file], d)
	}

	var batches []batch
	for _, file := range order {
		fileDeltas := byFile[file]
		if len(fileDeltas) <= maxBatchSize {
			batches = append(batches, batch{name: file, deltas: fileDeltas})
			continue
		}
		for i := 0; i < len(fileDeltas); i += maxBatchSize {
			end := i + maxBatchSize
			if end > len(fileDeltas) {
				end = len(fileDeltas)
			}
			batches = append(batches, batch{
				name:   fmt.Sprintf("%s_batch_%d", file, i/maxBatchSize+1),
				deltas: fileDeltas[i:end],
			})
		}
	}
	return batches
}
