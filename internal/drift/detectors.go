package drift

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/parse"
)

// DetectSpringProfiles union-flattens every application*.{yml,yaml,properties}
// under each root and emits one delta per changed key, matching
// detector_spring_profiles. Runs only when the caller has already confirmed
// at least one such file exists on either side.
func DetectSpringProfiles(goldenRoot, candidateRoot string) []models.Delta {
	g := collectSpringFiles(goldenRoot)
	c := collectSpringFiles(candidateRoot)

	var out []models.Delta
	for _, rel := range unionSortedFileKeys(g, c) {
		gf := flattenOrEmpty(g[rel])
		cf := flattenOrEmpty(c[rel])

		for _, k := range sortedKeys(cf) {
			if _, ok := gf[k]; !ok {
				out = append(out, newDelta("spring+"+rel+"."+k, models.CategorySpringProfile, rel, parse.KeyLocator(rel, k), nil, cf[k]))
			}
		}
		for _, k := range sortedKeys(gf) {
			if _, ok := cf[k]; !ok {
				out = append(out, newDelta("spring-"+rel+"."+k, models.CategorySpringProfile, rel, parse.KeyLocator(rel, k), gf[k], nil))
			}
		}
		for _, k := range sortedKeys(gf) {
			cv, ok := cf[k]
			if ok && !valuesEqual(gf[k], cv) {
				out = append(out, newDelta("spring~"+rel+"."+k, models.CategorySpringProfile, rel, parse.KeyLocator(rel, k), gf[k], cv))
			}
		}
	}

	for i := range out {
		attachLineStart(&out[i], goldenRoot, candidateRoot)
	}
	return out
}

func collectSpringFiles(root string) map[string]interface{} {
	out := map[string]interface{}{}
	patterns := []string{"application*.yml", "application*.yaml", "application*.properties"}
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		for _, pat := range patterns {
			if ok, _ := filepath.Match(pat, base); ok {
				rel, relErr := filepath.Rel(root, path)
				if relErr != nil {
					return nil
				}
				rel = filepath.ToSlash(rel)
				v, parseErr := parse.ParseFile(path)
				if parseErr != nil {
					return nil
				}
				out[rel] = v
				return nil
			}
		}
		return nil
	})
	return out
}

func flattenOrEmpty(v interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return parse.Flatten(v, "")
}

func unionSortedFileKeys(a, b map[string]interface{}) []string {
	set := map[string]bool{}
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func attachLineStart(d *models.Delta, goldenRoot, candidateRoot string) {
	_, tail := keySplit(d.Locator.Value)
	if tail == "" {
		return
	}
	ls := parse.FirstLineForKey(filepath.Join(candidateRoot, filepath.FromSlash(d.File)), tail)
	if ls == 0 {
		ls = parse.FirstLineForKey(filepath.Join(goldenRoot, filepath.FromSlash(d.File)), tail)
	}
	if ls != 0 {
		d.Locator.LineStart = ls
	}
}

var (
	jenkinsAgentKindRe  = regexp.MustCompile(`agent\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	jenkinsAgentLabelRe = regexp.MustCompile(`label\s*[:=]\s*['"]([^'"]+)['"]`)
	jenkinsDockerImgRe  = regexp.MustCompile(`(?s)docker\s*\{\s*image\s+['"]([^'"]+)['"]`)
	jenkinsCredsRe      = regexp.MustCompile(`credentialsId\s*[:=]\s*['"]([^'"]+)['"]`)
	jenkinsLibRe        = regexp.MustCompile(`@Library\(['"]([^'"]+)['"]\)`)
	jenkinsStageRe      = regexp.MustCompile(`stage\s*\(\s*['"]([^'"]+)['"]\s*\)`)
)

// summarizeJenkinsfile extracts the fixed field set a Jenkinsfile declares,
// matching _summarize_jenkinsfile.
func summarizeJenkinsfile(path string) map[string]interface{} {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	txt := string(data)
	out := map[string]interface{}{}
	if m := jenkinsAgentKindRe.FindStringSubmatch(txt); m != nil {
		out["agent.kind"] = m[1]
	}
	if m := jenkinsAgentLabelRe.FindStringSubmatch(txt); m != nil {
		out["agent.label"] = m[1]
	}
	if m := jenkinsDockerImgRe.FindStringSubmatch(txt); m != nil {
		out["agent.docker.image"] = m[1]
	}
	if creds := dedupeMatches(jenkinsCredsRe.FindAllStringSubmatch(txt, -1)); len(creds) > 0 {
		out["credentials.ids"] = creds
	}
	if libs := dedupeMatches(jenkinsLibRe.FindAllStringSubmatch(txt, -1)); len(libs) > 0 {
		out["libraries"] = libs
	}
	if stages := dedupeMatches(jenkinsStageRe.FindAllStringSubmatch(txt, -1)); len(stages) > 0 {
		out["stages"] = stages
	}
	return out
}

func dedupeMatches(matches [][]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// DetectJenkinsfiles diffs every Jenkinsfile* present on either side,
// matching detector_jenkinsfiles.
func DetectJenkinsfiles(goldenRoot, candidateRoot string) []models.Delta {
	names := sortedUnionStrings(findJenkinsfiles(goldenRoot), findJenkinsfiles(candidateRoot))

	var out []models.Delta
	for _, rel := range names {
		g := summarizeJenkinsfile(filepath.Join(goldenRoot, filepath.FromSlash(rel)))
		c := summarizeJenkinsfile(filepath.Join(candidateRoot, filepath.FromSlash(rel)))
		for _, k := range sortedUnionStringKeysAny(g, c) {
			gv, cv := g[k], c[k]
			if valuesEqual(gv, cv) {
				continue
			}
			loc := parse.KeyLocator(rel, k)
			loc.Type = models.LocatorKeypath
			_, tail := keySplit(k)
			if tail == "" {
				tail = k
			}
			ls := parse.FirstLineForKey(filepath.Join(candidateRoot, filepath.FromSlash(rel)), tail)
			if ls != 0 {
				loc.LineStart = ls
			}
			out = append(out, newDelta("jenkins~"+rel+"."+k, models.CategoryJenkins, rel, loc, gv, cv))
		}
	}
	return out
}

func findJenkinsfiles(root string) []string {
	var out []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if strings.HasPrefix(strings.ToLower(filepath.Base(path)), "jenkinsfile") {
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				out = append(out, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	return out
}

func sortedUnionStrings(a, b []string) []string {
	set := map[string]bool{}
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedUnionStringKeysAny(a, b map[string]interface{}) []string {
	set := map[string]bool{}
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DetectDockerfiles diffs the ordered FROM directive list of every
// Dockerfile* present on either side, matching detector_dockerfiles.
func DetectDockerfiles(goldenRoot, candidateRoot string) []models.Delta {
	g := collectDockerfileBases(goldenRoot)
	c := collectDockerfileBases(candidateRoot)

	var out []models.Delta
	for _, rel := range sortedUnionStrings(mapStringSliceKeys(g), mapStringSliceKeys(c)) {
		gb, cb := g[rel], c[rel]
		n := len(gb)
		if len(cb) > n {
			n = len(cb)
		}
		for i := 0; i < n; i++ {
			var old, new interface{}
			if i < len(gb) {
				old = gb[i]
			}
			if i < len(cb) {
				new = cb[i]
			}
			if valuesEqual(old, new) {
				continue
			}
			loc := models.Locator{Type: models.LocatorKeypath, Value: rel + ".FROM[" + itoa(i) + "]"}
			out = append(out, newDelta("docker~"+rel+"#"+itoa(i), models.CategoryContainer, rel, loc, old, new))
		}
	}
	return out
}

func collectDockerfileBases(root string) map[string][]string {
	out := map[string][]string{}
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if !strings.HasPrefix(filepath.Base(path), "Dockerfile") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		var bases []string
		for _, line := range strings.Split(string(data), "\n") {
			s := strings.TrimSpace(line)
			if strings.HasPrefix(strings.ToUpper(s), "FROM ") {
				fields := strings.Fields(s)
				if len(fields) > 1 {
					bases = append(bases, strings.Join(fields[1:], " "))
				}
			}
		}
		out[rel] = bases
		return nil
	})
	return out
}

func mapStringSliceKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func newDelta(id string, cat models.DeltaCategory, file string, loc models.Locator, old, new interface{}) models.Delta {
	d := models.Delta{ID: id, Category: cat, File: file, Locator: loc, Old: old, New: new}
	d.RiskLevel, d.RiskReason = riskLevelAndReason(d)
	return d
}
