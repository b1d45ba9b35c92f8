// Package classify implements the Config Classifier (C3): file-type
// classification, environment tagging, repo tree enumeration, and the
// structural (added/removed/modified/renamed) diff stage of the Drift
// Engine. Grounded on shared/drift_analyzer/drift_v1.py's _file_type,
// _env_tag, _tree, _classify, and _structural helpers.
package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

// FileType is the coarse classification drift_v1.py calls file_type.
type FileType string

const (
	TypeCI     FileType = "ci"
	TypeBuild  FileType = "build"
	TypeConfig FileType = "config"
	TypeInfra  FileType = "infra"
	TypeSchema FileType = "schema"
	TypeCode   FileType = "code"
	TypeOther  FileType = "other"
)

var buildFilenames = map[string]bool{
	"pom.xml": true, "build.gradle": true, "build.gradle.kts": true,
	"settings.gradle": true, "settings.gradle.kts": true,
	"requirements.txt": true, "pyproject.toml": true, "go.mod": true,
}

var configExts = extSet(".yml", ".yaml", ".toml", ".ini", ".cfg", ".conf", ".properties", ".config", ".xml")
var infraExts = extSet(".tf", ".tfvars")
var schemaExts = extSet(".sql", ".db", ".ddl")
var codeExts = extSet(".java", ".py", ".go", ".ts", ".js", ".json", ".cs", ".groovy", ".kts", ".gradle",
	".sh", ".bat", ".ps1", ".rb", ".php", ".c", ".cpp", ".h", ".hpp", ".html", ".css", ".md", ".txt", ".csv", ".tsv")

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// FileKind classifies a repo-relative path into a FileType, mirroring
// drift_v1.py's _file_type (including its explicit exclusion of .json from
// "config" so JSON payloads are diffed as code, not config, unless a
// specialised detector claims them).
func FileKind(relPath string) FileType {
	name := strings.ToLower(filepath.Base(relPath))
	ext := strings.ToLower(filepath.Ext(relPath))
	parts := strings.Split(strings.ToLower(filepath.ToSlash(relPath)), "/")

	if strings.HasPrefix(name, "jenkinsfile") {
		return TypeCI
	}
	if buildFilenames[name] {
		return TypeBuild
	}
	if configExts[ext] {
		return TypeConfig
	}
	if infraExts[ext] || containsPart(parts, "terraform") {
		return TypeInfra
	}
	if schemaExts[ext] {
		return TypeSchema
	}
	if codeExts[ext] {
		return TypeCode
	}
	return TypeOther
}

func containsPart(parts []string, target string) bool {
	for _, p := range parts {
		if p == target {
			return true
		}
	}
	return false
}

var envTags = []string{"dev", "qa", "staging", "stage", "prod", "production", "vbg", "vcg", "vbgalpha", "sit", "uat"}

// EnvTag extracts a coarse deployment-environment tag from a path (e.g.
// ".../staging/app.yml" -> "staging"), used only for FileChange annotation
// and display, not for golden-branch filtering (see package envfilter for
// that — a materially stricter rule to prevent cross-env leakage).
func EnvTag(relPath string) string {
	s := strings.ToLower(filepath.ToSlash(relPath))
	for _, tag := range envTags {
		if strings.Contains(s, "/"+tag+"/") || strings.Contains(s, "-"+tag) ||
			strings.Contains(s, "_"+tag+".") || strings.HasSuffix(s, "-"+tag) || strings.Contains(s, "/"+tag+"-") {
			switch tag {
			case "stage":
				return "staging"
			case "production":
				return "prod"
			default:
				return tag
			}
		}
	}
	return ""
}

// Walk enumerates every regular file under root as a sorted list of
// forward-slash repo-relative paths, skipping .git and dotfiles, matching
// drift_v1.py's _tree.
func Walk(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, ".git/") || strings.HasPrefix(rel, ".") {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Classify stats and hashes every path under root, attaching FileType and
// EnvTag, matching drift_v1.py's _classify.
func Classify(root string, relPaths []string) ([]models.FileChange, error) {
	out := make([]models.FileChange, 0, len(relPaths))
	for _, rel := range relPaths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		sum, err := sha256File(full)
		if err != nil {
			return nil, err
		}
		out = append(out, models.FileChange{
			Path:     rel,
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
			SHA256:   sum,
			Category: string(FileKind(rel)),
			EnvTag:   EnvTag(rel),
		})
	}
	return out, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Structural computes the added/removed/modified/renamed sets between a
// golden and candidate file listing, matching drift_v1.py's _structural
// (equal-hash-different-path rename heuristic included).
func Structural(golden, candidate []models.FileChange) models.StructuralDiff {
	gMap := make(map[string]models.FileChange, len(golden))
	cMap := make(map[string]models.FileChange, len(candidate))
	for _, f := range golden {
		gMap[f.Path] = f
	}
	for _, f := range candidate {
		cMap[f.Path] = f
	}

	addedSet := map[string]bool{}
	removedSet := map[string]bool{}
	var modified []string

	for p := range cMap {
		if _, ok := gMap[p]; !ok {
			addedSet[p] = true
		}
	}
	for p := range gMap {
		if _, ok := cMap[p]; !ok {
			removedSet[p] = true
		}
	}
	for p, cf := range cMap {
		if gf, ok := gMap[p]; ok && gf.SHA256 != cf.SHA256 {
			modified = append(modified, p)
		}
	}

	byHashGolden := map[string][]string{}
	byHashCandidate := map[string][]string{}
	for _, f := range golden {
		byHashGolden[f.SHA256] = append(byHashGolden[f.SHA256], f.Path)
	}
	for _, f := range candidate {
		byHashCandidate[f.SHA256] = append(byHashCandidate[f.SHA256], f.Path)
	}

	var renamed []models.Renamed
	for hash, gPaths := range byHashGolden {
		for _, gp := range gPaths {
			if !removedSet[gp] {
				continue
			}
			for _, cp := range byHashCandidate[hash] {
				if gp != cp && addedSet[cp] {
					renamed = append(renamed, models.Renamed{From: gp, To: cp})
					delete(removedSet, gp)
					delete(addedSet, cp)
					break
				}
			}
		}
	}

	return models.StructuralDiff{
		Added:    toSortedSlice(addedSet),
		Removed:  toSortedSlice(removedSet),
		Modified: sortedCopy(modified),
		Renamed:  renamed,
	}
}

func toSortedSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
