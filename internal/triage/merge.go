package triage

import (
	"sort"

	"github.com/catherinevee/certguard/internal/models"
)

// llmFormat is one batch's or the merged result's four risk buckets,
// matching the agent's plain {"high": [], "medium": [], "low": [],
// "allowed_variance": []} dict shape before summary/meta are attached.
type llmFormat struct {
	High            []models.TriageItem
	Medium          []models.TriageItem
	Low             []models.TriageItem
	AllowedVariance []models.TriageItem
}

// mergeBatches concatenates every batch's buckets and sorts each bucket by
// (file, id), matching merge_llm_outputs' sort_key.
func mergeBatches(batches []llmFormat) llmFormat {
	var merged llmFormat
	for _, b := range batches {
		merged.High = append(merged.High, b.High...)
		merged.Medium = append(merged.Medium, b.Medium...)
		merged.Low = append(merged.Low, b.Low...)
		merged.AllowedVariance = append(merged.AllowedVariance, b.AllowedVariance...)
	}

	sortBucket(merged.High)
	sortBucket(merged.Medium)
	sortBucket(merged.Low)
	sortBucket(merged.AllowedVariance)

	return merged
}

func sortBucket(items []models.TriageItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].File != items[j].File {
			return items[i].File < items[j].File
		}
		return items[i].ID < items[j].ID
	})
}

// buildSummary computes TriageSummary's aggregate counts, matching
// merge_llm_outputs' summary block: files_with_drift is the distinct file
// count across every bucketed item, total_config_files falls back to
// candidate file count plus removed-file count when overview carries no
// explicit total.
func buildSummary(merged llmFormat, overview models.Overview, removedCount int) models.TriageSummary {
	filesSeen := map[string]bool{}
	all := append(append(append(append([]models.TriageItem{}, merged.High...), merged.Medium...), merged.Low...), merged.AllowedVariance...)
	for _, item := range all {
		if item.File != "" {
			filesSeen[item.File] = true
		}
	}

	totalConfigFiles := overview.TotalFilesDrift
	if totalConfigFiles == 0 {
		totalConfigFiles = overview.TotalFilesDrift + removedCount
	}

	return models.TriageSummary{
		TotalDrifts:      len(all),
		HighRisk:         len(merged.High),
		MediumRisk:       len(merged.Medium),
		LowRisk:          len(merged.Low),
		AllowedVariance:  len(merged.AllowedVariance),
		FilesWithDrift:   len(filesSeen),
		TotalConfigFiles: totalConfigFiles,
	}
}
