package fleetsync

import "strings"

// applyFilters drops projects matching any exclude pattern, then (if any
// include patterns are set) keeps only projects matching one, mirroring
// apply_filters' prefix/suffix glob semantics (a leading/trailing `*` is
// stripped and the remainder matched as a prefix or suffix, case-insensitive).
func applyFilters(names []string, filters Filters) []string {
	out := names
	if len(filters.ExcludePatterns) > 0 {
		out = filterOut(out, filters.ExcludePatterns)
	}
	if len(filters.IncludePatterns) > 0 {
		out = filterIn(out, filters.IncludePatterns)
	}
	return out
}

func filterOut(names []string, patterns []string) []string {
	var kept []string
	for _, n := range names {
		if !matchesAny(n, patterns) {
			kept = append(kept, n)
		}
	}
	return kept
}

func filterIn(names []string, patterns []string) []string {
	var kept []string
	for _, n := range names {
		if matchesAny(n, patterns) {
			kept = append(kept, n)
		}
	}
	return kept
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		bare := strings.ToLower(strings.ReplaceAll(p, "*", ""))
		if strings.HasSuffix(lower, bare) || strings.HasPrefix(lower, bare) {
			return true
		}
	}
	return false
}
