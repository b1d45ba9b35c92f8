// Package appconfig centralises environment-driven configuration for the
// drift validation pipeline: forge credentials, LLM model IDs, Store path,
// temp-directory resolution, and fleet-sync tuning knobs. It mirrors
// shared/config.py's Config dataclass and the teacher's
// internal/config.Config JSON-tagged struct style.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the central configuration for the orchestrator and every stage
// it drives.
type Config struct {
	// Forge Client
	ForgeBaseURL  string `json:"forge_base_url"`
	ForgeToken    string `json:"-"`
	ForgeUser     string `json:"forge_user,omitempty"`
	ForgePassword string `json:"-"`
	ProbeWorkers  int    `json:"probe_workers"`

	// LLM Client
	LLMRegion     string `json:"llm_region"`
	LLMModelID    string `json:"llm_model_id"`
	LLMWorkerModelID string `json:"llm_worker_model_id"`
	LLMMaxTokens  int    `json:"llm_max_tokens"`

	// Store
	StorePath string `json:"store_path"`

	// Git committer identity used for orphan-branch commits
	GitCommitterName  string `json:"git_committer_name"`
	GitCommitterEmail string `json:"git_committer_email"`

	// Temp directory resolution
	TempDirOverride string `json:"temp_dir_override,omitempty"`

	// Fleet Sync tuning (spec.md §4.9, §6 "detail" roster file)
	MaxBranchWorkers     int     `json:"max_branch_workers"`
	MaxNestedBranchWorkers int   `json:"max_nested_branch_workers"`
	MinServicesThreshold int     `json:"min_services_threshold"`
	MaxDeletePercentage  float64 `json:"max_delete_percentage"`

	// Notification
	SlackWebhookURL string `json:"slack_webhook_url,omitempty"`
	TeamsWebhookURL string `json:"teams_webhook_url,omitempty"`

	// Logging
	LogLevel string `json:"log_level"`
}

// Load builds a Config from environment variables, applying the same
// defaults the original Python Config dataclass uses.
func Load() *Config {
	return &Config{
		ForgeBaseURL:  getenv("FORGE_BASE_URL", "https://gitlab.com"),
		ForgeToken:    os.Getenv("FORGE_TOKEN"),
		ForgeUser:     os.Getenv("FORGE_USER"),
		ForgePassword: os.Getenv("FORGE_PASSWORD"),
		ProbeWorkers:  getenvInt("FORGE_PROBE_WORKERS", 25),

		LLMRegion:        getenv("AWS_REGION", "us-east-1"),
		LLMModelID:       getenv("LLM_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0"),
		LLMWorkerModelID: getenv("LLM_WORKER_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		LLMMaxTokens:     getenvInt("LLM_MAX_TOKENS", 8000),

		StorePath: getenv("CERTGUARD_STORE_PATH", "./certguard.db"),

		GitCommitterName:  getenv("GIT_COMMITTER_NAME", "certguard-bot"),
		GitCommitterEmail: getenv("GIT_COMMITTER_EMAIL", "certguard-bot@localhost"),

		TempDirOverride: os.Getenv("CERTGUARD_TEMP_DIR"),

		MaxBranchWorkers:       getenvInt("MAX_BRANCH_WORKERS", 10),
		MaxNestedBranchWorkers: getenvInt("MAX_NESTED_BRANCH_WORKERS", 5),
		MinServicesThreshold:   getenvInt("MIN_SERVICES_THRESHOLD", 1),
		MaxDeletePercentage:    getenvFloat("MAX_DELETE_PERCENTAGE", 50.0),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		TeamsWebhookURL: os.Getenv("TEAMS_WEBHOOK_URL"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

// Validate fails fast on missing required configuration, matching
// shared/config.py:Config.validate.
func (c *Config) Validate() error {
	var missing []string
	if c.ForgeToken == "" && (c.ForgeUser == "" || c.ForgePassword == "") {
		missing = append(missing, "forge credentials (FORGE_TOKEN or FORGE_USER+FORGE_PASSWORD)")
	}
	if c.LLMModelID == "" {
		missing = append(missing, "llm_model_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TempBaseDir resolves the base temporary directory with the three-tier
// priority from shared/config.py:get_temp_base_dir — env override, then a
// project-relative ./temp directory, then the system temp directory.
func (c *Config) TempBaseDir() (string, error) {
	if c.TempDirOverride != "" {
		if err := os.MkdirAll(c.TempDirOverride, 0o755); err != nil {
			return "", fmt.Errorf("create override temp dir: %w", err)
		}
		return c.TempDirOverride, nil
	}

	projectTemp := filepath.Join(".", "temp")
	if err := os.MkdirAll(projectTemp, 0o755); err == nil {
		probe := filepath.Join(projectTemp, ".write_test")
		if f, werr := os.Create(probe); werr == nil {
			f.Close()
			os.Remove(probe)
			return projectTemp, nil
		}
	}

	return os.TempDir(), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}
