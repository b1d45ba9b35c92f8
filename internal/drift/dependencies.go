package drift

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

// EcosystemDeps is one ecosystem's extracted dependency table, matching
// extract_dependencies's per-ecosystem shape.
type EcosystemDeps struct {
	All        map[string]string
	Properties map[string]string // maven only
}

// ExtractedDeps groups per-ecosystem dependency tables for one repo root.
type ExtractedDeps struct {
	Maven *EcosystemDeps
	NPM   *EcosystemDeps
	Pip   *EcosystemDeps
}

var (
	mavenPropsBlockRe = regexp.MustCompile(`(?s)<properties>(.*?)</properties>`)
	mavenPropEntryRe  = regexp.MustCompile(`(?s)<([a-zA-Z0-9.\-_]+)>(.*?)</[a-zA-Z0-9.\-_]+>`)
	mavenDepRe        = regexp.MustCompile(`(?s)<dependency>\s*<groupId>(.*?)</groupId>\s*<artifactId>(.*?)</artifactId>\s*(?:<version>(.*?)</version>)?`)
)

// mavenPropsAndDeps parses a pom.xml's <properties> block and <dependency>
// triples, substituting ${prop} version references, matching
// _maven_props_and_deps.
func mavenPropsAndDeps(pomText string) (properties map[string]string, deps map[string]string) {
	properties = map[string]string{}
	if m := mavenPropsBlockRe.FindStringSubmatch(pomText); m != nil {
		for _, pm := range mavenPropEntryRe.FindAllStringSubmatch(m[1], -1) {
			properties[pm[1]] = strings.TrimSpace(pm[2])
		}
	}
	deps = map[string]string{}
	for _, dm := range mavenDepRe.FindAllStringSubmatch(pomText, -1) {
		group, artifact, ver := dm[1], dm[2], strings.TrimSpace(dm[3])
		if strings.HasPrefix(ver, "${") && strings.HasSuffix(ver, "}") {
			if resolved, ok := properties[ver[2:len(ver)-1]]; ok {
				ver = resolved
			}
		}
		deps[group+":"+artifact] = ver
	}
	return properties, deps
}

// ExtractDependencies reads pom.xml, package.json, and requirements.txt at
// root (whichever are present), matching extract_dependencies.
func ExtractDependencies(root string) ExtractedDeps {
	var out ExtractedDeps

	if txt, err := os.ReadFile(filepath.Join(root, "pom.xml")); err == nil {
		props, deps := mavenPropsAndDeps(string(txt))
		out.Maven = &EcosystemDeps{All: deps, Properties: props}
	}

	if raw, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var pkg struct {
			Dependencies    map[string]string `json:"dependencies"`
			DevDependencies map[string]string `json:"devDependencies"`
		}
		if json.Unmarshal(raw, &pkg) == nil {
			merged := map[string]string{}
			for k, v := range pkg.Dependencies {
				merged[k] = v
			}
			for k, v := range pkg.DevDependencies {
				merged[k] = v
			}
			out.NPM = &EcosystemDeps{All: merged}
		}
	}

	if raw, err := os.ReadFile(filepath.Join(root, "requirements.txt")); err == nil {
		merged := map[string]string{}
		for _, line := range strings.Split(string(raw), "\n") {
			s := strings.TrimSpace(line)
			if s == "" || strings.HasPrefix(s, "#") {
				continue
			}
			if idx := strings.Index(s, "=="); idx >= 0 {
				merged[strings.TrimSpace(s[:idx])] = strings.TrimSpace(s[idx+2:])
			} else {
				merged[s] = ""
			}
		}
		out.Pip = &EcosystemDeps{All: merged}
	}

	return out
}

// DependencyDiff computes the added/removed/changed diff per ecosystem (plus
// a separate maven_properties diff), matching dependency_diff.
func DependencyDiff(golden, candidate ExtractedDeps) models.DependencyDiffs {
	var out models.DependencyDiffs
	out.Maven = diffEcosystem(golden.Maven, candidate.Maven)
	out.NPM = diffEcosystem(golden.NPM, candidate.NPM)
	out.Pip = diffEcosystem(golden.Pip, candidate.Pip)
	return out
}

// MavenPropertiesDiff computes the maven pom.xml <properties> diff
// separately from dependency coordinates, matching the "maven_properties"
// entry dependency_diff emits alongside "maven".
func MavenPropertiesDiff(golden, candidate ExtractedDeps) *models.SemanticDiff {
	var gp, cp map[string]string
	if golden.Maven != nil {
		gp = golden.Maven.Properties
	}
	if candidate.Maven != nil {
		cp = candidate.Maven.Properties
	}
	return diffStringMap(gp, cp)
}

func diffEcosystem(g, c *EcosystemDeps) *models.SemanticDiff {
	if g == nil && c == nil {
		return nil
	}
	var ga, ca map[string]string
	if g != nil {
		ga = g.All
	}
	if c != nil {
		ca = c.All
	}
	return diffStringMap(ga, ca)
}

func diffStringMap(g, c map[string]string) *models.SemanticDiff {
	diff := models.NewSemanticDiff()
	for k, v := range c {
		if gv, ok := g[k]; !ok {
			diff.Added[k] = v
		} else if gv != v {
			diff.Changed[k] = models.KeyChange{From: gv, To: v}
		}
	}
	for k, v := range g {
		if _, ok := c[k]; !ok {
			diff.Removed[k] = v
		}
	}
	return diff
}
