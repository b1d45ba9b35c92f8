package models

import "time"

// Service is a registered (service, forge project) pair tracked by Fleet
// Sync and validated by the orchestrator.
type Service struct {
	ServiceID     string    `json:"service_id"` // {group}_{project_path}
	DisplayName   string    `json:"display_name"`
	RepoURL       string    `json:"repo_url"`
	MainBranch    string    `json:"main_branch"`
	Environments  []string  `json:"environments"`
	ConfigPaths   []string  `json:"config_paths"`
	Group         string    `json:"group"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BranchType discriminates golden (certified baseline) from drift (snapshot)
// branches.
type BranchType string

const (
	BranchGolden BranchType = "golden"
	BranchDrift  BranchType = "drift"
)

// GoldenBranch records a materialised baseline or snapshot branch for a
// (service, environment) pair. At most one (ServiceID, Environment,
// Golden, IsActive=true) tuple may exist at any time.
type GoldenBranch struct {
	ID                  int64     `json:"id"`
	ServiceID           string    `json:"service_id"`
	Environment         string    `json:"environment"`
	BranchName          string    `json:"branch_name"`
	BranchType          BranchType `json:"branch_type"`
	IsActive            bool      `json:"is_active"`
	CertificationScore  *int      `json:"certification_score,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// RunStatus is the lifecycle state of a ValidationRun.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed  RunStatus = "failed"
)

// ValidationRun is one invocation of the Snapshot->Drift->Guardrail->Triage->
// Certify pipeline for a (service, environment) pair.
type ValidationRun struct {
	RunID       string    `json:"run_id"`
	ServiceID   string    `json:"service_id"`
	Environment string    `json:"environment"`
	Status      RunStatus `json:"status"`
	FailureKind string    `json:"failure_kind,omitempty"`
	FailureMsg  string    `json:"failure_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
