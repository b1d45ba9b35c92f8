package drift

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/catherinevee/certguard/internal/classify"
	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/parse"
)

// Analyze runs the full Drift Engine (C5) over two materialised trees and
// produces a ContextBundle, matching drift_v1.py's main() end to end:
// tree enumeration, structural diff, semantic config diff, dependency diff,
// specialised detectors, code hunks, binary/archive diff, the merge pass,
// and policy/risk tagging.
func Analyze(goldenRoot, candidateRoot string, meta models.BundleMeta, policy PolicyConfig) (*models.ContextBundle, error) {
	gPaths, err := classify.Walk(goldenRoot)
	if err != nil {
		return nil, err
	}
	cPaths, err := classify.Walk(candidateRoot)
	if err != nil {
		return nil, err
	}
	gFiles, err := classify.Classify(goldenRoot, gPaths)
	if err != nil {
		return nil, err
	}
	cFiles, err := classify.Classify(candidateRoot, cPaths)
	if err != nil {
		return nil, err
	}

	structural := classify.Structural(gFiles, cFiles)
	changed := unionSortedStrings(structural.Modified, structural.Added)

	confDiff, err := SemanticConfigDiff(goldenRoot, candidateRoot, changed)
	if err != nil {
		return nil, err
	}

	gDeps := ExtractDependencies(goldenRoot)
	cDeps := ExtractDependencies(candidateRoot)
	depDiff := DependencyDiff(gDeps, cDeps)
	mavenProps := MavenPropertiesDiff(gDeps, cDeps)

	var extra []models.Delta

	if hasAny(gPaths, cPaths, "application") {
		extra = append(extra, DetectSpringProfiles(goldenRoot, candidateRoot)...)
	}
	if hasPrefixAny(gPaths, cPaths, "jenkinsfile") {
		extra = append(extra, DetectJenkinsfiles(goldenRoot, candidateRoot)...)
	}
	if hasPrefixAny(gPaths, cPaths, "dockerfile") {
		extra = append(extra, DetectDockerfiles(goldenRoot, candidateRoot)...)
	}
	if hasSuffixAny(gPaths, cPaths, ".tf") || hasSuffixAny(gPaths, cPaths, ".tfvars") {
		extra = append(extra, DetectTerraform(goldenRoot, candidateRoot)...)
	}

	gitPatches := map[string]string{}
	for _, rel := range structural.Modified {
		gp := filepath.Join(goldenRoot, filepath.FromSlash(rel))
		cp := filepath.Join(candidateRoot, filepath.FromSlash(rel))
		if !IsText(cp) {
			continue
		}
		hunks, patch, err := HunksForFile(gp, cp, rel)
		if err != nil {
			return nil, err
		}
		extra = append(extra, hunks...)
		if patch != "" {
			gitPatches[rel] = patch
		}
	}

	extra = append(extra, BinaryDeltas(goldenRoot, candidateRoot, structural.Modified)...)

	all := buildConfigDeltas(confDiff, goldenRoot, candidateRoot)
	all = append(all, buildDepDeltas(depDiff, mavenProps)...)
	all = append(all, buildFilePresenceDeltas(structural)...)
	all = append(all, extra...)

	deltas := MergeDeltas(all)
	for i := range deltas {
		TagWithPolicy(&deltas[i], policy)
	}

	overview := models.Overview{
		TotalFilesGolden: len(gFiles),
		TotalFilesDrift:  len(cFiles),
		AddedCount:       len(structural.Added),
		RemovedCount:     len(structural.Removed),
		ModifiedCount:    len(structural.Modified),
		RenamedCount:     len(structural.Renamed),
		DeltaCount:       len(deltas),
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}

	return &models.ContextBundle{
		Meta:         meta,
		Overview:     overview,
		FileChanges:  structural,
		Dependencies: depDiff,
		ConfigsDiff:  confDiff,
		Deltas:       deltas,
		GitPatches:   gitPatches,
	}, nil
}

// buildConfigDeltas expands a SemanticDiff's added/removed/changed maps into
// individual config-category deltas with resolved source lines, matching
// _build_config_deltas.
func buildConfigDeltas(diff *models.SemanticDiff, goldenRoot, candidateRoot string) []models.Delta {
	var out []models.Delta
	for _, k := range sortedKeys(diff.Added) {
		out = append(out, configDelta("cfg+"+k, k, nil, diff.Added[k], goldenRoot, candidateRoot))
	}
	for _, k := range sortedKeys(diff.Removed) {
		out = append(out, configDelta("cfg-"+k, k, diff.Removed[k], nil, goldenRoot, candidateRoot))
	}
	for _, k := range sortedChangeKeys(diff.Changed) {
		ch := diff.Changed[k]
		out = append(out, configDelta("cfg~"+k, k, ch.From, ch.To, goldenRoot, candidateRoot))
	}
	return out
}

func configDelta(id, fullKey string, old, new interface{}, goldenRoot, candidateRoot string) models.Delta {
	fn, tail := keySplit(fullKey)
	loc := parse.KeyLocator(fn, tail)
	if tail != "" {
		ls := firstLineAnySide(candidateRoot, goldenRoot, fn, tail)
		if ls != 0 {
			loc.LineStart = ls
		}
	}
	return newDelta(id, models.CategoryConfig, fn, loc, old, new)
}

func buildDepDeltas(dd models.DependencyDiffs, mavenProps *models.SemanticDiff) []models.Delta {
	var out []models.Delta
	if mavenProps != nil {
		out = append(out, semanticToBuildConfigDeltas(mavenProps, "pom.xml")...)
	}
	out = append(out, semanticToDependencyDeltas(dd.Maven, "maven")...)
	out = append(out, semanticToDependencyDeltas(dd.NPM, "npm")...)
	out = append(out, semanticToDependencyDeltas(dd.Pip, "pip")...)
	return out
}

func semanticToBuildConfigDeltas(diff *models.SemanticDiff, file string) []models.Delta {
	var out []models.Delta
	for _, k := range sortedKeys(diff.Added) {
		loc := models.Locator{Type: models.LocatorKeypath, Value: file + ".properties." + k}
		out = append(out, newDelta("mvnprop+"+k, models.CategoryBuildConfig, file, loc, nil, diff.Added[k]))
	}
	for _, k := range sortedKeys(diff.Removed) {
		loc := models.Locator{Type: models.LocatorKeypath, Value: file + ".properties." + k}
		out = append(out, newDelta("mvnprop-"+k, models.CategoryBuildConfig, file, loc, diff.Removed[k], nil))
	}
	for _, k := range sortedChangeKeys(diff.Changed) {
		ch := diff.Changed[k]
		loc := models.Locator{Type: models.LocatorKeypath, Value: file + ".properties." + k}
		out = append(out, newDelta("mvnprop~"+k, models.CategoryBuildConfig, file, loc, ch.From, ch.To))
	}
	return out
}

func semanticToDependencyDeltas(diff *models.SemanticDiff, eco string) []models.Delta {
	if diff == nil {
		return nil
	}
	var out []models.Delta
	for _, k := range sortedKeys(diff.Added) {
		loc := models.Locator{Type: models.LocatorCoord, Value: eco + ":" + k}
		out = append(out, newDelta("dep+"+eco+":"+k, models.CategoryDependency, eco, loc, nil, diff.Added[k]))
	}
	for _, k := range sortedKeys(diff.Removed) {
		loc := models.Locator{Type: models.LocatorCoord, Value: eco + ":" + k}
		out = append(out, newDelta("dep-"+eco+":"+k, models.CategoryDependency, eco, loc, diff.Removed[k], nil))
	}
	for _, k := range sortedChangeKeys(diff.Changed) {
		ch := diff.Changed[k]
		loc := models.Locator{Type: models.LocatorCoord, Value: eco + ":" + k}
		out = append(out, newDelta("dep~"+eco+":"+k, models.CategoryDependency, eco, loc, ch.From, ch.To))
	}
	return out
}

func buildFilePresenceDeltas(sd models.StructuralDiff) []models.Delta {
	var out []models.Delta
	for _, rel := range sd.Added {
		loc := models.Locator{Type: models.LocatorPath, Value: rel}
		out = append(out, newDelta("file+"+rel, models.CategoryFile, rel, loc, nil, "present"))
	}
	for _, rel := range sd.Removed {
		loc := models.Locator{Type: models.LocatorPath, Value: rel}
		out = append(out, newDelta("file-"+rel, models.CategoryFile, rel, loc, "present", nil))
	}
	for _, rn := range sd.Renamed {
		loc := models.Locator{Type: models.LocatorPath, Value: rn.To}
		out = append(out, newDelta("file~"+rn.From+"->"+rn.To, models.CategoryFile, rn.To, loc, rn.From, rn.To))
	}
	return out
}

func unionSortedStrings(a, b []string) []string {
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

func hasAny(a, b []string, substr string) bool {
	for _, p := range a {
		if strings.Contains(strings.ToLower(p), substr) {
			return true
		}
	}
	for _, p := range b {
		if strings.Contains(strings.ToLower(p), substr) {
			return true
		}
	}
	return false
}

func hasPrefixAny(a, b []string, prefix string) bool {
	for _, p := range a {
		if strings.HasPrefix(strings.ToLower(filepath.Base(p)), prefix) {
			return true
		}
	}
	for _, p := range b {
		if strings.HasPrefix(strings.ToLower(filepath.Base(p)), prefix) {
			return true
		}
	}
	return false
}

func hasSuffixAny(a, b []string, suffix string) bool {
	for _, p := range a {
		if strings.HasSuffix(strings.ToLower(p), suffix) {
			return true
		}
	}
	for _, p := range b {
		if strings.HasSuffix(strings.ToLower(p), suffix) {
			return true
		}
	}
	return false
}

func firstLineAnySide(firstRoot, secondRoot, fn, tail string) int {
	ls := parse.FirstLineForKey(filepath.Join(firstRoot, filepath.FromSlash(fn)), tail)
	if ls == 0 {
		ls = parse.FirstLineForKey(filepath.Join(secondRoot, filepath.FromSlash(fn)), tail)
	}
	return ls
}
