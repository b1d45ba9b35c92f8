package drift

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/catherinevee/certguard/internal/models"
)

var highRiskLocatorTokens = []string{
	"password", "secret", "token", "credentialsid", "db.password",
	"db.username", "jdbc.url", "posdb_",
}

var behavioralCategories = map[models.DeltaCategory]bool{
	models.CategoryCodeHunk:      true,
	models.CategoryDependency:    true,
	models.CategoryBuildConfig:   true,
	models.CategorySpringProfile: true,
	models.CategoryConfig:        true,
	models.CategoryTerraform:     true,
}

var lowRiskCategories = map[models.DeltaCategory]bool{
	models.CategoryFile:         true,
	models.CategoryBinaryMeta:   true,
	models.CategoryArchiveDelta: true,
	models.CategoryArchiveManif: true,
	models.CategoryOther:        true,
}

// riskLevelAndReason computes d's pre-LLM risk heuristic, matching
// _risk_level_and_reason exactly: credential/secret locator substrings and
// prod-scoped pipeline/container/Spring changes are high; behavioural
// categories are medium; presence/metadata-only changes are low.
func riskLevelAndReason(d models.Delta) (models.RiskLevel, string) {
	loc := strings.ToLower(d.Locator.Value)
	file := strings.ToLower(d.File)

	for _, tok := range highRiskLocatorTokens {
		if strings.Contains(loc, tok) {
			return models.RiskHigh, "Sensitive credential or connection parameter changed."
		}
	}
	if (d.Category == models.CategoryJenkins || d.Category == models.CategoryContainer) &&
		(strings.Contains(loc, "credentials") || strings.Contains(loc, "from[")) {
		return models.RiskHigh, "Pipeline credential or container base image changed."
	}
	if d.Category == models.CategorySpringProfile && (strings.Contains(file, "prod") || strings.Contains(file, ".production")) {
		return models.RiskHigh, "Production profile configuration changed."
	}
	if behavioralCategories[d.Category] {
		return models.RiskMed, "Behavioral or version/configuration change."
	}
	if lowRiskCategories[d.Category] {
		return models.RiskLow, "Non-behavioral or metadata/package change."
	}
	return models.RiskLow, "Default low risk."
}

// Invariant is one declarative rule from the policy file: a delta whose
// locator contains LocatorContains is tagged invariant_breach if its New
// value is in ForbidValues.
type Invariant struct {
	Name            string   `yaml:"name"`
	LocatorContains string   `yaml:"locator_contains"`
	ForbidValues    []string `yaml:"forbid_values"`
	// RequireValues is only consulted by the guardrail Policy Validator's
	// reapplication pass (internal/guardrail), matching
	// guardrails_policy_agent.py's _check_policy_rules. The drift engine's
	// own first-pass tagging never checks it.
	RequireValues []string `yaml:"require_values,omitempty"`
	Severity      string   `yaml:"severity"`
}

// PolicyConfig is the declarative policy file drift tagging and the
// guardrail policy validator both apply, matching policies.yaml's shape.
type PolicyConfig struct {
	EnvAllowKeys []string    `yaml:"env_allow_keys"`
	Invariants   []Invariant `yaml:"invariants"`
}

// LoadPolicyConfig reads a policies.yaml-shaped file from path. An empty
// path returns the zero-value PolicyConfig (everything suspect, nothing
// allowed or forbidden), matching the original's behavior when no policy
// file is configured.
func LoadPolicyConfig(path string) (PolicyConfig, error) {
	if path == "" {
		return PolicyConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("read policy config %s: %w", path, err)
	}
	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PolicyConfig{}, fmt.Errorf("parse policy config %s: %w", path, err)
	}
	return cfg, nil
}

// TagWithPolicy applies PolicyConfig to d in place, matching
// _tag_with_policy: suspect by default, allowed_variance on an
// env_allow_keys substring hit, invariant_breach on a forbid_values match
// (which takes precedence since it is checked last and unconditionally
// overwrites, exactly as the original does).
func TagWithPolicy(d *models.Delta, policy PolicyConfig) {
	locVal := strings.ToLower(d.Locator.Value)

	tag := models.PolicySuspect
	rule := ""

	for _, allow := range policy.EnvAllowKeys {
		if strings.Contains(locVal, strings.ToLower(allow)) {
			tag, rule = models.PolicyAllowedVariance, "env_allow_keys"
			break
		}
	}

	for _, inv := range policy.Invariants {
		lc := strings.ToLower(inv.LocatorContains)
		if lc == "" || !strings.Contains(locVal, lc) {
			continue
		}
		if containsForbidden(d.StringNew(), inv.ForbidValues) {
			tag = models.PolicyInvariantBreach
			rule = inv.Name
			if rule == "" {
				rule = "invariant"
			}
			d.Policy.Severity = inv.Severity
		}
	}

	d.Policy.Tag = tag
	d.Policy.Rule = rule
}

func containsForbidden(value string, forbidden []string) bool {
	for _, f := range forbidden {
		if value == f {
			return true
		}
	}
	return false
}
