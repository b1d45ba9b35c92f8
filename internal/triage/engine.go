package triage

import (
	"context"

	"github.com/catherinevee/certguard/internal/llm"
	"github.com/catherinevee/certguard/internal/models"
)

// Analyze runs the full Triage Engine (C7) over a guardrail-validated
// ContextBundle: select and deduplicate config/dependency deltas, batch
// them by file (splitting files over 10 deltas), adjudicate each batch with
// the LLM client (falling back to rule-based categorization on any
// call/parse/validation failure), then merge every batch into one
// LLMOutput, matching triaging_routing_agent.py's process_task end to end.
func Analyze(ctx context.Context, client llm.Client, bundle *models.ContextBundle, runID, environment string) models.LLMOutput {
	if environment == "" {
		environment = "production"
	}

	if len(bundle.Deltas) == 0 {
		log.Warn("no deltas found in context bundle", map[string]interface{}{"run_id": runID})
		return models.LLMOutput{RunID: runID}
	}

	selected := selectForAnalysis(bundle.Deltas)
	log.Info("selected deltas for analysis", map[string]interface{}{"count": len(selected)})

	deduped := deduplicate(selected)
	log.Info("deduplicated deltas", map[string]interface{}{"before": len(selected), "after": len(deduped)})

	batches := groupIntoBatches(deduped)
	log.Info("grouped deltas into batches", map[string]interface{}{"batches": len(batches)})

	var perBatch []llmFormat
	for _, b := range batches {
		perBatch = append(perBatch, analyzeBatch(ctx, client, b, environment))
	}

	merged := mergeBatches(perBatch)
	summary := buildSummary(merged, bundle.Overview, len(bundle.FileChanges.Removed))

	return models.LLMOutput{
		RunID:           runID,
		High:            nonNil(merged.High),
		Medium:          nonNil(merged.Medium),
		Low:             nonNil(merged.Low),
		AllowedVariance: nonNil(merged.AllowedVariance),
		Summary:         summary,
	}
}

// analyzeBatch calls the LLM for one batch and falls back to rule-based
// categorization if the call errors, the response can't be parsed into
// valid JSON, or the parsed JSON fails validateLLMFormat -- matching the
// agent's broad try/except around analyze_deltas_batch_llm_format.
func analyzeBatch(ctx context.Context, client llm.Client, b batch, environment string) llmFormat {
	prompt := BuildPrompt(b.name, b.deltas, environment)

	response, err := client.Complete(ctx, prompt, 8000)
	if err != nil {
		log.Warn("llm format analysis failed, using fallback", map[string]interface{}{"batch": b.name, "error": err.Error()})
		return fallbackCategorize(b.name, b.deltas)
	}

	parsed := parseAIJSONResponse(response)
	if !validateLLMFormat(parsed) {
		log.Warn("llm output validation failed, using fallback", map[string]interface{}{"batch": b.name})
		return fallbackCategorize(b.name, b.deltas)
	}

	decoded, err := decodeLLMFormat(parsed)
	if err != nil {
		log.Warn("failed to decode validated llm output, using fallback", map[string]interface{}{"batch": b.name, "error": err.Error()})
		return fallbackCategorize(b.name, b.deltas)
	}

	return llmFormat{
		High:            toTriageItems(decoded["high"]),
		Medium:          toTriageItems(decoded["medium"]),
		Low:             toTriageItems(decoded["low"]),
		AllowedVariance: toTriageItems(decoded["allowed_variance"]),
	}
}

func toTriageItems(items []rawItem) []models.TriageItem {
	out := make([]models.TriageItem, 0, len(items))
	for _, it := range items {
		ti := models.TriageItem{
			ID:        it.ID,
			File:      it.File,
			Old:       it.Old,
			New:       it.New,
			Why:       it.Why,
			Rationale: it.Rationale,
			Locator:   decodeLocator(it.Locator),
		}
		if it.Remediation != nil {
			ti.Remediation = &models.Remediation{Snippet: it.Remediation.Snippet}
		}
		if it.AIReviewAssistant != nil {
			ti.AIReviewAssistant = &models.AIReviewAssistant{
				PotentialRisk:   it.AIReviewAssistant.PotentialRisk,
				SuggestedAction: it.AIReviewAssistant.SuggestedAction,
			}
		}
		out = append(out, ti)
	}
	return out
}

func decodeLocator(m map[string]interface{}) models.Locator {
	loc := models.Locator{}
	if t, ok := m["type"].(string); ok {
		loc.Type = models.LocatorType(t)
	}
	if v, ok := m["value"].(string); ok {
		loc.Value = v
	}
	if n, ok := m["old_start"].(float64); ok {
		loc.OldStart = int(n)
	}
	if n, ok := m["old_lines"].(float64); ok {
		loc.OldLines = int(n)
	}
	if n, ok := m["new_start"].(float64); ok {
		loc.NewStart = int(n)
	}
	if n, ok := m["new_lines"].(float64); ok {
		loc.NewLines = int(n)
	}
	if h, ok := m["hunk_header"].(string); ok {
		loc.HunkHeader = h
	}
	return loc
}

func nonNil(items []models.TriageItem) []models.TriageItem {
	if items == nil {
		return []models.TriageItem{}
	}
	return items
}
