// Package drift implements the Drift Engine (C5): structural diff, semantic
// config diff, dependency diff, specialised detectors, code-hunk extraction,
// binary/archive diff, the merge pass, and pre-LLM risk/policy tagging.
// Grounded on shared/drift_analyzer/drift_v1.py end to end.
package drift

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/catherinevee/certguard/internal/classify"
	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/parse"
)

var log = logging.WithComponent("drift")

// SemanticConfigDiff parses and flattens every path in changed whose
// classify.FileKind is TypeConfig on both sides, and returns the union key
// diff, matching _semantic_config_diff.
func SemanticConfigDiff(goldenRoot, candidateRoot string, changed []string) (*models.SemanticDiff, error) {
	diff := models.NewSemanticDiff()
	for _, rel := range changed {
		if classify.FileKind(rel) != classify.TypeConfig {
			continue
		}
		gFlat, err := flattenConfigFile(goldenRoot, rel)
		if err != nil {
			return nil, err
		}
		cFlat, err := flattenConfigFile(candidateRoot, rel)
		if err != nil {
			return nil, err
		}
		for k, v := range cFlat {
			fullKey := rel + "." + k
			if gv, ok := gFlat[k]; !ok {
				diff.Added[fullKey] = v
			} else if !valuesEqual(gv, v) {
				diff.Changed[fullKey] = models.KeyChange{From: gv, To: v}
			}
		}
		for k, v := range gFlat {
			if _, ok := cFlat[k]; !ok {
				diff.Removed[rel+"."+k] = v
			}
		}
	}
	return diff, nil
}

// flattenConfigFile parses and flattens path relative to root, returning an
// empty map (not an error) if the file does not exist on that side.
func flattenConfigFile(root, rel string) (map[string]interface{}, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	v, err := parse.ParseFile(full)
	if err != nil {
		log.Warn("failed to parse config file for semantic diff", map[string]interface{}{
			"path": full, "error": err.Error(),
		})
		return map[string]interface{}{}, nil
	}
	if v == nil {
		return map[string]interface{}{}, nil
	}
	return parse.Flatten(v, ""), nil
}

func valuesEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// keySplit splits "file.path.key.tail" style flattened ids back into
// (filename, tail), matching the inline split drift_v1.py does at several
// call sites ("." in k else (k, "")).
func keySplit(full string) (file, tail string) {
	for i := 0; i < len(full); i++ {
		if full[i] == '.' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}

func sortedKeys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedChangeKeys(m map[string]models.KeyChange) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
