// Package score implements the Confidence Scorer (C8): combines policy
// violations, risk-bucket counts, evidence, blast radius, historical
// patterns, LLM safety reasoning and MR context into a single 0-100
// confidence score and an AUTO_MERGE / HUMAN_REVIEW / BLOCK_MERGE decision,
// matching confidence_scorer.py's ConfidenceScorer.calculate end to end.
package score

import (
	"fmt"
	"strings"

	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/models"
)

var log = logging.WithComponent("score")

// Input bundles every optional and required signal calculate() takes.
// RiskLevel, HighRiskCount, MediumRiskCount and LowRiskCount come from the
// triage summary; Violations from the guardrail policy pass; the rest are
// optional LLM-brain and MR-quality signals that may be nil/zero.
type Input struct {
	Violations    []models.PolicyBreach
	RiskLevel     string
	HighCount     int
	MediumCount   int
	LowCount      int
	Evidence      *models.Evidence
	Historical    *models.HistoricalPattern
	BlastRadius   *models.BlastRadius
	LLMSafety     *models.LLMSafety
	HistoryAnalysis *models.HistoricalPattern
	MRContext     *models.MRContext
	Environment   string
}

// Calculate runs the full deterministic-plus-contextual scoring pipeline
// and returns a populated Certification (RunID/ServiceID/CreatedAt left
// for the caller to stamp).
func Calculate(in Input) models.Certification {
	environment := in.Environment
	if environment == "" {
		environment = "production"
	}

	score := 100
	components := models.ScoreComponents{BaseScore: 100}

	policyDeduction := calculatePolicyDeductions(in.Violations)
	score -= policyDeduction
	components.PolicyDeductions = -policyDeduction

	criticalCount := 0
	if strings.EqualFold(in.RiskLevel, "critical") && in.HighCount == 0 && in.MediumCount == 0 && in.LowCount == 0 {
		criticalCount = 1
	}

	var riskDeduction int
	if in.HighCount > 0 || in.MediumCount > 0 || in.LowCount > 0 || criticalCount > 0 {
		riskDeduction = calculateRiskDeductionFromCounts(in.HighCount, in.MediumCount, in.LowCount, criticalCount)
	} else {
		riskDeduction = calculateRiskDeduction(in.RiskLevel)
	}
	score -= riskDeduction
	components.RiskDeductions = -riskDeduction

	if in.Evidence != nil {
		adj := calculateEvidenceAdjustment(*in.Evidence)
		score += adj
		components.EvidenceAdjustment = adj
	}

	if in.Historical != nil {
		// _calculate_historical_bonus is an unimplemented stub in the
		// original (its body is just "TODO ... return 0"); kept as a
		// genuine no-op rather than filled in with invented logic.
		score += calculateHistoricalBonus(*in.Historical)
	}

	if in.BlastRadius != nil {
		penalty := calculateBlastRadiusPenalty(*in.BlastRadius)
		score -= penalty
		components.BlastRadiusPenalty = -penalty
	}

	if in.HistoryAnalysis != nil {
		adj := calculateHistoryAdjustment(*in.HistoryAnalysis)
		score += adj
		components.HistoryAdjustment = adj
	}

	if in.LLMSafety != nil {
		adj := calculateLLMSafetyAdjustment(in.LLMSafety.SafetyProbability, in.LLMSafety.AnomalyScore)
		score += adj
		components.LLMSafetyAdjustment = adj
	}

	if in.MRContext != nil {
		bonus := calculateContextBonus(*in.MRContext)
		score += bonus
		components.ContextBonus = bonus
	}

	score = applyEnvironmentModifier(score, environment)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	decision := determineDecision(score, environment, in.HighCount, in.MediumCount, criticalCount)
	explanation := generateExplanation(score, components, decision, in.HighCount, in.MediumCount, criticalCount)
	level := determineConfidenceLevel(score)

	log.Info("confidence score calculated", map[string]interface{}{
		"score": score, "decision": string(decision), "environment": environment,
	})

	return models.Certification{
		Environment:     environment,
		ConfidenceScore: score,
		Components:      components,
		Decision:        decision,
		ConfidenceLevel: level,
		Explanation:     explanation,
	}
}

func calculatePolicyDeductions(violations []models.PolicyBreach) int {
	deduction := 0
	for _, v := range violations {
		switch strings.ToLower(orDefault(v.Severity, "medium")) {
		case "critical":
			deduction += 30
		case "high":
			deduction += 15
		case "medium":
			deduction += 5
		}
	}
	return deduction
}

// calculateRiskDeduction is the fallback path used when no risk-bucket
// counts are available. CRITICAL RULE preserved from the original: any
// medium/high/critical risk level must push the score below 50.
func calculateRiskDeduction(riskLevel string) int {
	switch strings.ToLower(riskLevel) {
	case "critical":
		return 80
	case "high":
		return 60
	case "medium":
		return 55
	case "low":
		return 0
	case "none":
		return 0
	default:
		return 55
	}
}

// calculateRiskDeductionFromCounts mirrors the original's rigorous-scoring
// rule: any critical/high/medium item is an instant near-block regardless
// of quantity, while low-risk items are only deducted per-item, capped.
func calculateRiskDeductionFromCounts(highCount, mediumCount, lowCount, criticalCount int) int {
	switch {
	case criticalCount > 0:
		return 80
	case highCount > 0:
		return 60
	case mediumCount > 0:
		return 55
	case lowCount > 0:
		d := lowCount * 2
		if d > 60 {
			d = 60
		}
		return d
	default:
		return 0
	}
}

func calculateEvidenceAdjustment(evidence models.Evidence) int {
	switch {
	case len(evidence.Found) > 0 && len(evidence.Missing) == 0:
		return 20
	case len(evidence.Missing) > 0:
		return -20
	default:
		return 0
	}
}

func calculateHistoricalBonus(models.HistoricalPattern) int {
	return 0
}

// calculateBlastRadiusPenalty is the Impact Magnitude penalty: a base
// penalty from declared scope, plus surcharges for file count, critical
// files, and downstream service fan-out, capped at 50.
func calculateBlastRadiusPenalty(b models.BlastRadius) int {
	scopePenalties := map[string]int{
		"critical": 30,
		"high":     25,
		"medium":   15,
		"low":      5,
	}
	penalty, ok := scopePenalties[strings.ToLower(orDefault(b.Scope, "low"))]
	if !ok {
		penalty = 15
	}

	filesAffected := b.FilesAffected
	if filesAffected == 0 {
		filesAffected = 1
	}
	switch {
	case filesAffected > 5:
		penalty += 10
	case filesAffected > 3:
		penalty += 5
	}

	if b.CriticalFiles > 0 {
		penalty += b.CriticalFiles * 5
	}

	if len(b.DownstreamServices) > 0 {
		svc := len(b.DownstreamServices) * 3
		if svc > 15 {
			svc = 15
		}
		penalty += svc
	}

	if penalty > 50 {
		penalty = 50
	}
	return penalty
}

// calculateHistoryAdjustment is the Learning-from-Past adjustment: distrust
// for outages/past failures, a trust bonus for a clean track record, and a
// trust-level nudge, clamped to [-20, 10].
func calculateHistoryAdjustment(h models.HistoricalPattern) int {
	adjustment := 0

	switch {
	case h.OutageHistory:
		adjustment -= 20
	case h.PastFailures > 0:
		d := h.PastFailures * 5
		if d > 15 {
			d = 15
		}
		adjustment -= d
	}

	switch {
	case h.PastSuccesses > 5 && h.PastFailures == 0:
		adjustment += 10
	case h.PastSuccesses > 0:
		b := h.PastSuccesses * 2
		if b > 5 {
			b = 5
		}
		adjustment += b
	}

	trust := h.TrustLevel
	if trust == 0 {
		trust = 0.5
	}
	switch {
	case trust < 0.3:
		adjustment -= 10
	case trust > 0.8:
		adjustment += 10
	}

	return clamp(adjustment, -20, 10)
}

// calculateLLMSafetyAdjustment turns the LLM's safety_probability and
// anomaly_score into a contextual-reasoning adjustment, clamped to
// [-20, 15].
func calculateLLMSafetyAdjustment(safetyProbability, anomalyScore float64) int {
	adjustment := 0

	switch {
	case safetyProbability < 0.3:
		adjustment -= 20
	case safetyProbability < 0.5:
		adjustment -= 10
	case safetyProbability > 0.8:
		adjustment += 15
	case safetyProbability > 0.6:
		adjustment += 5
	}

	switch {
	case anomalyScore > 0.7:
		adjustment -= 15
	case anomalyScore > 0.5:
		adjustment -= 10
	case anomalyScore > 0.3:
		adjustment -= 5
	}

	return clamp(adjustment, -20, 15)
}

// calculateContextBonus rewards MR documentation quality, capped at 25.
func calculateContextBonus(mr models.MRContext) int {
	bonus := 0
	if mr.HasMRTags {
		bonus += 5
	}
	if mr.HasJiraLink {
		bonus += 5
	}
	if mr.HasRollbackPlan {
		bonus += 10
	}
	if mr.HasTestEvidence {
		bonus += 5
	}
	switch strings.ToLower(orDefault(mr.DescriptionQuality, "low")) {
	case "high":
		bonus += 5
	case "medium":
		bonus += 2
	}
	if bonus > 25 {
		bonus = 25
	}
	return bonus
}

// applyEnvironmentModifier is a no-op: production is already the
// strictest tier and staging/dev are deliberately kept just as strict.
func applyEnvironmentModifier(score int, environment string) int {
	return score
}

// determineDecision enforces the rigorous rule: any medium/high/critical
// risk item always blocks, regardless of score. Only low/allowed_variance
// changes fall through to the score-based, per-environment thresholds.
func determineDecision(score int, environment string, highCount, mediumCount, criticalCount int) models.Decision {
	if criticalCount > 0 || highCount > 0 || mediumCount > 0 {
		return models.DecisionBlockMerge
	}

	switch strings.ToLower(environment) {
	case "production":
		switch {
		case score >= 85:
			return models.DecisionAutoMerge
		case score >= 60:
			return models.DecisionHumanReview
		default:
			return models.DecisionBlockMerge
		}
	case "staging", "pre-production":
		switch {
		case score >= 75:
			return models.DecisionAutoMerge
		case score >= 50:
			return models.DecisionHumanReview
		default:
			return models.DecisionBlockMerge
		}
	default: // development, testing
		switch {
		case score >= 65:
			return models.DecisionAutoMerge
		case score >= 50:
			return models.DecisionHumanReview
		default:
			return models.DecisionBlockMerge
		}
	}
}

func determineConfidenceLevel(score int) models.ConfidenceLevel {
	switch {
	case score >= 80:
		return models.ConfidenceHigh
	case score >= 60:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func generateExplanation(score int, c models.ScoreComponents, decision models.Decision, highCount, mediumCount, criticalCount int) string {
	parts := []string{fmt.Sprintf("Confidence score: %d/100", score)}

	if criticalCount > 0 || highCount > 0 || mediumCount > 0 {
		var reasons []string
		if criticalCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d critical risk item(s)", criticalCount))
		}
		if highCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d high risk item(s)", highCount))
		}
		if mediumCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d medium risk item(s)", mediumCount))
		}
		parts = append(parts, fmt.Sprintf("BLOCKED: %s detected (rigorous policy: medium+ = BLOCK)", strings.Join(reasons, ", ")))
	}

	if c.PolicyDeductions < 0 {
		parts = append(parts, fmt.Sprintf("Policy violations: -%d points", -c.PolicyDeductions))
	}

	if c.RiskDeductions < 0 {
		parts = append(parts, fmt.Sprintf("Risk deductions: -%d points", -c.RiskDeductions))
		if criticalCount > 0 || highCount > 0 || mediumCount > 0 {
			parts = append(parts, "(Rigorous scoring: medium/high/critical = score < 50)")
		}
	}

	if c.EvidenceAdjustment > 0 {
		parts = append(parts, fmt.Sprintf("Evidence complete: +%d points", c.EvidenceAdjustment))
	} else if c.EvidenceAdjustment < 0 {
		parts = append(parts, fmt.Sprintf("Missing evidence: %d points", c.EvidenceAdjustment))
	}

	parts = append(parts, fmt.Sprintf("Decision: %s", decision))
	if decision == models.DecisionBlockMerge && (criticalCount > 0 || highCount > 0 || mediumCount > 0) {
		parts = append(parts, "(Pipeline blocked due to medium/high/critical risk items)")
	}

	return strings.Join(parts, ". ")
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
