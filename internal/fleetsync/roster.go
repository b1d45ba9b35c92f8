// Package fleetsync implements the Fleet Sync Engine (C9): it reconciles
// the Service registry against a declarative roster of forge groups
// ("VSATs"), discovering projects, adding/updating/deactivating/reactivating
// services, and materialising golden/snapshot branches for any service that
// lacks them, matching scripts/vsat_sync.py's run_sync end to end.
package fleetsync

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/catherinevee/certguard/internal/logging"
)

var log = logging.WithComponent("fleetsync")
var validate = validator.New()

// Group is one roster entry — a forge group or user namespace whose
// projects should be tracked as services, mirroring a `vsats[]` entry in
// vsat_master.yaml.
type Group struct {
	Name          string                 `yaml:"name" validate:"required"`
	URL           string                 `yaml:"url" validate:"required"`
	Enabled       bool                   `yaml:"enabled"`
	ServiceConfig map[string]interface{} `yaml:"service_config"`
}

// MasterRoster is the simple, human-edited roster file: just the list of
// groups to track.
type MasterRoster struct {
	Groups []Group `yaml:"vsats" validate:"required,min=1,dive"`
}

// Defaults are the fleet-wide fallbacks applied when a group's
// ServiceConfig doesn't override them.
type Defaults struct {
	MainBranch  string   `yaml:"main_branch"`
	Environments []string `yaml:"environments"`
	ConfigPaths []string `yaml:"config_paths"`
}

// SyncConfig tunes the reconciliation and branch-materialisation pass.
type SyncConfig struct {
	CreateGoldenBranches  bool `yaml:"create_golden_branches"`
	MaxBranchWorkers      int  `yaml:"max_branch_workers"`
	MinServicesThreshold  int  `yaml:"min_services_threshold"`
	MaxDeletePercentage   int  `yaml:"max_delete_percentage" validate:"gte=0,lte=100"`
}

// Filters controls which forge projects are considered in-scope per group.
type Filters struct {
	ExcludePatterns  []string `yaml:"exclude_patterns"`
	IncludePatterns  []string `yaml:"include_patterns"`
	RequireMainBranch bool    `yaml:"require_main_branch"`
}

// DetailConfig is the optional, more-verbose config layered over
// MasterRoster, mirroring vsat_config.yaml.
type DetailConfig struct {
	Defaults      Defaults                          `yaml:"defaults"`
	Sync          SyncConfig                        `yaml:"sync"`
	Filters       Filters                            `yaml:"filters"`
	GroupOverrides map[string]map[string]interface{} `yaml:"vsat_overrides"`
}

// Roster is the merged master+detail configuration Sync operates over.
type Roster struct {
	Groups   []Group
	Defaults Defaults
	Sync     SyncConfig
	Filters  Filters
}

func defaultDetailConfig() DetailConfig {
	return DetailConfig{
		Defaults: Defaults{
			MainBranch:   "main",
			Environments: []string{"prod"},
			ConfigPaths:  []string{"*.yml", "*.yaml", "*.properties"},
		},
		Sync: SyncConfig{
			CreateGoldenBranches: true,
			MaxBranchWorkers:     5,
			MinServicesThreshold: 1,
			MaxDeletePercentage:  50,
		},
		Filters: Filters{RequireMainBranch: true},
	}
}

// LoadRoster reads and merges the master roster file with the optional
// detail-override file, validates the result, and applies any per-group
// service_config overrides, matching load_vsat_config's merge-then-override
// sequence.
func LoadRoster(masterPath, detailPath string) (*Roster, error) {
	masterBytes, err := os.ReadFile(masterPath)
	if err != nil {
		return nil, fmt.Errorf("fleetsync: read master roster %s: %w", masterPath, err)
	}

	var master MasterRoster
	if err := yaml.Unmarshal(masterBytes, &master); err != nil {
		return nil, fmt.Errorf("fleetsync: parse master roster: %w", err)
	}
	if err := validate.Struct(master); err != nil {
		return nil, fmt.Errorf("fleetsync: invalid master roster: %w", err)
	}

	seen := map[string]bool{}
	var dupes []string
	for _, g := range master.Groups {
		if seen[g.Name] {
			dupes = append(dupes, g.Name)
		}
		seen[g.Name] = true
	}
	if len(dupes) > 0 {
		return nil, fmt.Errorf("fleetsync: duplicate group names in roster: %v", dupes)
	}

	detail := defaultDetailConfig()
	if detailPath != "" {
		if detailBytes, err := os.ReadFile(detailPath); err == nil {
			var loaded DetailConfig
			if err := yaml.Unmarshal(detailBytes, &loaded); err != nil {
				return nil, fmt.Errorf("fleetsync: parse detail config: %w", err)
			}
			detail = mergeDetailDefaults(loaded)
		} else {
			log.Warn("detail config not found, using minimal defaults", map[string]interface{}{"path": detailPath})
		}
	}

	if err := validate.Struct(detail.Sync); err != nil {
		return nil, fmt.Errorf("fleetsync: invalid sync config: %w", err)
	}

	for i, g := range master.Groups {
		if override, ok := detail.GroupOverrides[g.Name]; ok {
			if master.Groups[i].ServiceConfig == nil {
				master.Groups[i].ServiceConfig = map[string]interface{}{}
			}
			for k, v := range override {
				master.Groups[i].ServiceConfig[k] = v
			}
			log.Info("applied group override", map[string]interface{}{"group": g.Name})
		}
	}

	log.Info("loaded roster", map[string]interface{}{"groups": len(master.Groups)})

	return &Roster{
		Groups:   master.Groups,
		Defaults: detail.Defaults,
		Sync:     detail.Sync,
		Filters:  detail.Filters,
	}, nil
}

// mergeDetailDefaults fills any zero-valued field of loaded with the
// built-in default, since a detail file may only override one section.
func mergeDetailDefaults(loaded DetailConfig) DetailConfig {
	merged := defaultDetailConfig()
	if loaded.Defaults.MainBranch != "" {
		merged.Defaults.MainBranch = loaded.Defaults.MainBranch
	}
	if len(loaded.Defaults.Environments) > 0 {
		merged.Defaults.Environments = loaded.Defaults.Environments
	}
	if len(loaded.Defaults.ConfigPaths) > 0 {
		merged.Defaults.ConfigPaths = loaded.Defaults.ConfigPaths
	}
	if loaded.Sync.MaxBranchWorkers > 0 {
		merged.Sync.MaxBranchWorkers = loaded.Sync.MaxBranchWorkers
	}
	if loaded.Sync.MinServicesThreshold > 0 {
		merged.Sync.MinServicesThreshold = loaded.Sync.MinServicesThreshold
	}
	if loaded.Sync.MaxDeletePercentage > 0 {
		merged.Sync.MaxDeletePercentage = loaded.Sync.MaxDeletePercentage
	}
	merged.Sync.CreateGoldenBranches = loaded.Sync.CreateGoldenBranches || merged.Sync.CreateGoldenBranches
	merged.Filters = loaded.Filters
	merged.GroupOverrides = loaded.GroupOverrides
	return merged
}

// serviceConfigString reads a string key from a group's service_config
// override map, falling back to def.
func serviceConfigString(cfg map[string]interface{}, key, def string) string {
	if cfg == nil {
		return def
	}
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// serviceConfigStrings reads a []interface{} (YAML list) key as []string.
func serviceConfigStrings(cfg map[string]interface{}, key string, def []string) []string {
	if cfg == nil {
		return def
	}
	raw, ok := cfg[key].([]interface{})
	if !ok || len(raw) == 0 {
		return def
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
