package drift

import (
	"fmt"
	"sort"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

// MergeDeltas merges duplicate deltas raised by different detection
// mechanisms for the same (file, config key, old, new) tuple into one, and
// attaches matching code-hunk snippets to the survivor, matching
// _merge_deltas.
func MergeDeltas(deltas []models.Delta) []models.Delta {
	var codeHunks []models.Delta
	hunksByFile := map[string][]models.Delta{}
	for _, d := range deltas {
		if d.Category == models.CategoryCodeHunk {
			codeHunks = append(codeHunks, d)
			hunksByFile[d.File] = append(hunksByFile[d.File], d)
		}
	}

	type entry struct {
		delta     models.Delta
		configKey string
	}
	merged := map[string]*entry{}
	var order []string

	for _, d := range deltas {
		if d.Category == models.CategoryCodeHunk {
			continue
		}
		normalizedFile := strings.TrimSuffix(strings.TrimSuffix(d.File, ".yml"), ".yaml")
		configKey := ""
		if parts := strings.SplitN(d.Locator.Value, ".", 2); len(parts) > 1 {
			configKey = parts[1]
		}
		mergeKey := fmt.Sprintf("%s::%s::%v::%v", normalizedFile, configKey, d.Old, d.New)

		if e, ok := merged[mergeKey]; ok {
			e.delta.DetectionSources = append(e.delta.DetectionSources, string(d.Category))
			if d.Category == models.CategorySpringProfile {
				e.delta.Category = models.CategorySpringProfile
				e.delta.Locator = d.Locator
				e.delta.ID = d.ID
				e.delta.File = d.File
			} else if d.Category == models.CategoryConfig && e.delta.Category != models.CategorySpringProfile {
				e.delta.Category = models.CategoryConfig
				e.delta.Locator = d.Locator
				e.delta.ID = d.ID
			}
		} else {
			dCopy := d
			dCopy.DetectionSources = []string{string(d.Category)}
			merged[mergeKey] = &entry{delta: dCopy, configKey: configKey}
			order = append(order, mergeKey)
		}
	}

	matchedSnippets := map[string]bool{}
	for _, key := range order {
		e := merged[key]
		hunks := hunksByFile[e.delta.File]
		for _, h := range hunks {
			if e.configKey == "" {
				continue
			}
			parts := strings.Split(e.configKey, ".")
			hit := false
			for _, p := range parts {
				if p != "" && strings.Contains(h.CodeSnippet, p) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
			e.delta.DetectionSources = append(e.delta.DetectionSources, string(models.CategoryCodeHunk))
			e.delta.CodeSnippet = h.CodeSnippet
			e.delta.HunkInfo = map[string]interface{}{
				"old_start":   h.Locator.OldStart,
				"old_lines":   h.Locator.OldLines,
				"new_start":   h.Locator.NewStart,
				"new_lines":   h.Locator.NewLines,
				"hunk_header": h.Locator.HunkHeader,
			}
			matchedSnippets[h.CodeSnippet] = true
			break
		}
	}

	out := make([]models.Delta, 0, len(order)+len(codeHunks))
	for _, key := range order {
		out = append(out, merged[key].delta)
	}
	for _, h := range codeHunks {
		if !matchedSnippets[h.CodeSnippet] {
			out = append(out, h)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].ID < out[j].ID
	})
	return out
}
