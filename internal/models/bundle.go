package models

import "time"

// StructuralDiff is the file-tree-level result of C5 step 2.
type StructuralDiff struct {
	Added    []string   `json:"added"`
	Removed  []string   `json:"removed"`
	Modified []string   `json:"modified"`
	Renamed  []Renamed  `json:"renamed"`
}

// Renamed records a detected rename (equal content hash, different path).
type Renamed struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// KeyChange records a changed scalar for the semantic/dependency diffs.
type KeyChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// SemanticDiff is a generic added/removed/changed key-level diff, used for
// config semantic diff, dependency ecosystems, Spring profiles, Jenkins, and
// Terraform variable diffs.
type SemanticDiff struct {
	Added   map[string]interface{} `json:"added"`
	Removed map[string]interface{} `json:"removed"`
	Changed map[string]KeyChange   `json:"changed"`
}

// NewSemanticDiff returns an initialized, empty SemanticDiff.
func NewSemanticDiff() *SemanticDiff {
	return &SemanticDiff{
		Added:   map[string]interface{}{},
		Removed: map[string]interface{}{},
		Changed: map[string]KeyChange{},
	}
}

// DependencyDiffs groups per-ecosystem dependency diffs.
type DependencyDiffs struct {
	Maven *SemanticDiff `json:"maven,omitempty"`
	NPM   *SemanticDiff `json:"npm,omitempty"`
	Pip   *SemanticDiff `json:"pip,omitempty"`
}

// FileChange is one entry of the classified tree enumeration (C5 step 1).
type FileChange struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime"`
	SHA256  string `json:"sha256"`
	Category string `json:"category"`
	EnvTag   string `json:"env_tag,omitempty"`
}

// Overview summarises counts for the ContextBundle.
type Overview struct {
	TotalFilesGolden int `json:"total_files_golden"`
	TotalFilesDrift  int `json:"total_files_drift"`
	AddedCount       int `json:"added_count"`
	RemovedCount     int `json:"removed_count"`
	ModifiedCount    int `json:"modified_count"`
	RenamedCount     int `json:"renamed_count"`
	DeltaCount       int `json:"delta_count"`
}

// BundleMeta carries run/service identity for a ContextBundle.
type BundleMeta struct {
	RunID       string    `json:"run_id"`
	ServiceID   string    `json:"service_id"`
	Environment string    `json:"environment"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ContextBundle is the full output of the Drift Engine (C5).
type ContextBundle struct {
	Meta         BundleMeta                `json:"meta"`
	Overview     Overview                  `json:"overview"`
	FileChanges  StructuralDiff            `json:"file_changes"`
	Dependencies DependencyDiffs           `json:"dependencies"`
	ConfigsDiff  *SemanticDiff             `json:"configs_diff"`
	SpringDiff   map[string]*SemanticDiff  `json:"spring_diff,omitempty"`
	JenkinsDiff  *SemanticDiff             `json:"jenkins_diff,omitempty"`
	DockerDiff   *SemanticDiff             `json:"docker_diff,omitempty"`
	TerraformDiff *SemanticDiff            `json:"terraform_diff,omitempty"`
	Deltas       []Delta                   `json:"deltas"`
	GitPatches   map[string]string         `json:"git_patches,omitempty"`
}

// PIIReport summarises PII redaction across a bundle.
type PIIReport struct {
	InstancesFound int      `json:"instances_found"`
	Types          []string `json:"types"`
	Redacted       bool     `json:"redacted"`
}

// IntentReport summarises intent-guard scanning across a bundle.
type IntentReport struct {
	SuspiciousPatterns []IntentFinding `json:"suspicious_patterns"`
	TotalFindings      int             `json:"total_findings"`
	CriticalFindings   int             `json:"critical_findings"`
	Safe               bool            `json:"safe"`
}

// PolicyTotals aggregates policy tag/severity counts for the Scorer.
type PolicyTotals struct {
	InvariantBreach int `json:"invariant_breach"`
	AllowedVariance int `json:"allowed_variance"`
	Suspect         int `json:"suspect"`
	Critical        int `json:"critical"`
	High            int `json:"high"`
	Medium          int `json:"medium"`
}

// PolicyValidation is the output of the Guardrail Engine's policy pass.
type PolicyValidation struct {
	RunID      string        `json:"run_id"`
	PII        PIIReport     `json:"pii"`
	Intent     IntentReport  `json:"intent"`
	Totals     PolicyTotals  `json:"totals"`
	Violations []PolicyBreach `json:"violations"`
}

// PolicyBreach is a single policy-rule hit, used by the Confidence Scorer's
// policy-deduction component. Named distinctly from the compliance-scan
// Violation type in discovery.go, which this has no relation to.
type PolicyBreach struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"` // critical, high, medium
	DeltaID  string `json:"delta_id"`
	Reason   string `json:"reason"`
}
