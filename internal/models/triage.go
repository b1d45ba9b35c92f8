package models

// Remediation carries the LLM's suggested fix snippet; required on
// high/medium/low bucket items, absent on allowed_variance items.
type Remediation struct {
	Snippet string `json:"snippet"`
}

// AIReviewAssistant carries the LLM's risk/action summary; required on
// high/medium/low bucket items, absent on allowed_variance items.
type AIReviewAssistant struct {
	PotentialRisk   string `json:"potential_risk"`
	SuggestedAction string `json:"suggested_action"`
}

// TriageItem is one categorised delta summary within an LLM output bucket.
type TriageItem struct {
	ID      string  `json:"id"`
	File    string  `json:"file"`
	Locator Locator `json:"locator"`
	Old     interface{} `json:"old"`
	New     interface{} `json:"new"`

	// Why is used on high/medium/low bucket items, Rationale on
	// allowed_variance items.
	Why       string `json:"why,omitempty"`
	Rationale string `json:"rationale,omitempty"`

	Remediation       *Remediation       `json:"remediation,omitempty"`
	AIReviewAssistant *AIReviewAssistant `json:"ai_review_assistant,omitempty"`
}

// TriageSummary is the aggregate bucket-count summary attached to LLMOutput.
type TriageSummary struct {
	TotalDrifts       int `json:"total_drifts"`
	HighRisk          int `json:"high_risk"`
	MediumRisk        int `json:"medium_risk"`
	LowRisk           int `json:"low_risk"`
	AllowedVariance   int `json:"allowed_variance"`
	FilesWithDrift    int `json:"files_with_drift"`
	TotalConfigFiles  int `json:"total_config_files"`
}

// LLMOutput is the four ordered risk buckets produced by the Triage Engine.
type LLMOutput struct {
	RunID           string         `json:"run_id"`
	High            []TriageItem   `json:"high"`
	Medium          []TriageItem   `json:"medium"`
	Low             []TriageItem   `json:"low"`
	AllowedVariance []TriageItem   `json:"allowed_variance"`
	Summary         TriageSummary  `json:"summary"`
}

// OverallRiskLevel returns the highest-severity non-empty bucket, used as the
// fallback risk label for the Confidence Scorer when counts are absent.
func (o *LLMOutput) OverallRiskLevel() string {
	switch {
	case len(o.High) > 0:
		return "high"
	case len(o.Medium) > 0:
		return "medium"
	case len(o.Low) > 0:
		return "low"
	default:
		return "none"
	}
}
