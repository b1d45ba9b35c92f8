package classify

import (
	"strings"

	"github.com/catherinevee/certguard/internal/logging"
)

var envFilterLog = logging.WithComponent("classify.envfilter")

// CategorizeEnvironments determines which environments a config file
// belongs to, matching shared/env_filter.py's categorize_file_by_environment
// exactly: prod beats alpha beats beta1 beats beta2, and anything with no
// marker is global (belongs to every environment). This is deliberately
// stricter than EnvTag and is the rule golden-branch materialisation uses,
// since cross-environment config leakage in a certified baseline is a
// correctness bug, not a display nicety.
func CategorizeEnvironments(path string) []string {
	lower := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	filename := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		filename = lower[idx+1:]
	}

	if strings.Contains(lower, "prod") {
		return []string{"prod"}
	}
	if strings.Contains(lower, "alpha") {
		return []string{"alpha"}
	}
	if strings.Contains(lower, "beta1") || strings.HasSuffix(filename, "t1.yml") {
		return []string{"beta1"}
	}
	if strings.Contains(lower, "beta2") ||
		strings.HasSuffix(filename, "t2.yml") || strings.HasSuffix(filename, "t3.yml") ||
		strings.HasSuffix(filename, "t4.yml") || strings.HasSuffix(filename, "t5.yml") || strings.HasSuffix(filename, "t6.yml") {
		return []string{"beta2"}
	}
	return []string{"prod", "alpha", "beta1", "beta2"}
}

// FilterForEnvironment keeps only the paths that belong to environment,
// matching filter_files_for_environment.
func FilterForEnvironment(paths []string, environment string) []string {
	var out []string
	for _, p := range paths {
		for _, e := range CategorizeEnvironments(p) {
			if e == environment {
				out = append(out, p)
				break
			}
		}
	}
	envFilterLog.Debug("filtered files for environment", map[string]interface{}{
		"environment": environment, "matched": len(out), "total": len(paths),
	})
	return out
}

// EnvironmentFilter returns a forge.FileFilter-compatible predicate bound to
// a single environment, for passing straight into orphan-branch construction.
func EnvironmentFilter(environment string) func(path string) bool {
	return func(path string) bool {
		for _, e := range CategorizeEnvironments(path) {
			if e == environment {
				return true
			}
		}
		return false
	}
}

// DistributionReport summarises per-environment counts, matching
// log_environment_distribution.
type DistributionReport struct {
	ProdOnly  int
	AlphaOnly int
	Beta1Only int
	Beta2Only int
	Global    int
	Total     int
}

// LogDistribution computes and logs a DistributionReport for paths.
func LogDistribution(paths []string) DistributionReport {
	r := DistributionReport{Total: len(paths)}
	for _, p := range paths {
		envs := CategorizeEnvironments(p)
		switch {
		case len(envs) == 4:
			r.Global++
		case len(envs) == 1 && envs[0] == "prod":
			r.ProdOnly++
		case len(envs) == 1 && envs[0] == "alpha":
			r.AlphaOnly++
		case len(envs) == 1 && envs[0] == "beta1":
			r.Beta1Only++
		case len(envs) == 1 && envs[0] == "beta2":
			r.Beta2Only++
		}
	}
	envFilterLog.Info("environment distribution", map[string]interface{}{
		"prod_only": r.ProdOnly, "alpha_only": r.AlphaOnly, "beta1_only": r.Beta1Only,
		"beta2_only": r.Beta2Only, "global": r.Global, "total": r.Total,
	})
	return r
}
