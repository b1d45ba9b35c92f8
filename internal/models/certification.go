package models

import "time"

// Decision is the final certification outcome.
type Decision string

const (
	DecisionAutoMerge    Decision = "AUTO_MERGE"
	DecisionHumanReview  Decision = "HUMAN_REVIEW"
	DecisionBlockMerge   Decision = "BLOCK_MERGE"
)

// ConfidenceLevel buckets the numeric score into a qualitative label.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// ScoreComponents is the breakdown of every additive/subtractive term the
// Confidence Scorer applied, keyed to match spec.md §4.8's table.
type ScoreComponents struct {
	BaseScore           int `json:"base_score"`
	PolicyDeductions    int `json:"policy_deductions"`
	RiskDeductions      int `json:"risk_deductions"`
	BlastRadiusPenalty  int `json:"blast_radius_penalty"`
	HistoryAdjustment   int `json:"history_adjustment"`
	LLMSafetyAdjustment int `json:"llm_safety_adjustment"`
	ContextBonus        int `json:"context_bonus"`
	EvidenceAdjustment  int `json:"evidence_adjustments"`
}

// BlastRadius estimates the impact scope of a validation run's changes.
type BlastRadius struct {
	FilesAffected      int      `json:"files_affected"`
	CriticalFiles      int      `json:"critical_files"`
	DownstreamServices []string `json:"downstream_services"`
	Scope              string   `json:"scope"` // low, medium, high, critical
}

// HistoricalPattern is an optional input to the scorer; nil contributes a
// zero adjustment (spec.md §9 Open Questions).
type HistoricalPattern struct {
	PastFailures  int     `json:"past_failures"`
	PastSuccesses int     `json:"past_successes"`
	OutageHistory bool    `json:"outage_history"`
	TrustLevel    float64 `json:"trust_level"`
}

// LLMSafety is the LLM's contextual-reasoning safety estimate.
type LLMSafety struct {
	SafetyProbability float64 `json:"safety_probability"`
	AnomalyScore      float64 `json:"anomaly_score"`
}

// Evidence records which supporting artefacts for the change were found vs
// missing (test evidence, rollback plan, etc).
type Evidence struct {
	Found   []string `json:"found"`
	Missing []string `json:"missing"`
}

// MRContext captures merge-request quality signals for the context bonus.
type MRContext struct {
	HasMRTags          bool   `json:"has_mr_tags"`
	HasJiraLink        bool   `json:"has_jira_link"`
	HasRollbackPlan    bool   `json:"has_rollback_plan"`
	HasTestEvidence    bool   `json:"has_test_evidence"`
	DescriptionQuality string `json:"description_quality"` // high, medium, low
}

// Certification is the final output of the Confidence Scorer (C8).
type Certification struct {
	RunID                   string          `json:"run_id"`
	ServiceID               string          `json:"service_id"`
	Environment             string          `json:"environment"`
	ConfidenceScore         int             `json:"confidence_score"`
	Components              ScoreComponents `json:"components"`
	Decision                Decision        `json:"decision"`
	ConfidenceLevel         ConfidenceLevel `json:"confidence_level"`
	Explanation             string          `json:"explanation"`
	CertifiedSnapshotBranch string          `json:"certified_snapshot_branch,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
}
