package triage

import (
	"encoding/json"
	"strings"
)

// rawLLMOutput mirrors the exact wire shape the model is asked to return,
// decoded generically so field-presence validation can run before typed
// decoding, matching validate_llm_output's approach of checking dict keys
// rather than trusting a strict schema unmarshal.
type rawLLMOutput map[string]interface{}

// parseAIJSONResponse extracts and parses the JSON object embedded in a raw
// model response, matching _parse_ai_json_response's three-strategy
// fallback: a straight first-brace/last-brace slice, a "fix common issues"
// pass (trailing commas, embedded newlines), and finally an empty bucket
// set if both fail.
func parseAIJSONResponse(aiResponse string) rawLLMOutput {
	trimmed := strings.TrimSpace(aiResponse)
	if trimmed == "" {
		return emptyBuckets()
	}

	start := strings.Index(aiResponse, "{")
	end := strings.LastIndex(aiResponse, "}")
	if start < 0 || end <= start {
		return emptyBuckets()
	}

	jsonStr := aiResponse[start : end+1]
	var out rawLLMOutput
	if err := json.Unmarshal([]byte(jsonStr), &out); err == nil {
		return out
	}

	cleaned := jsonStr
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "},}", "}}")
	cleaned = strings.ReplaceAll(cleaned, ",}", "}")
	cleaned = strings.ReplaceAll(cleaned, ",]", "]")

	var cleanedOut rawLLMOutput
	if err := json.Unmarshal([]byte(cleaned), &cleanedOut); err == nil {
		return cleanedOut
	}

	log.Warn("all llm json parsing strategies failed, using empty buckets", nil)
	return emptyBuckets()
}

func emptyBuckets() rawLLMOutput {
	return rawLLMOutput{
		"high":             []interface{}{},
		"medium":           []interface{}{},
		"low":              []interface{}{},
		"allowed_variance": []interface{}{},
	}
}

var requiredBucketFields = []string{"id", "file", "locator", "old", "new", "why", "remediation", "ai_review_assistant"}
var requiredAllowedFields = []string{"id", "file", "locator", "old", "new", "rationale"}

// validateLLMFormat checks field presence on every item, matching
// validate_llm_output exactly (top-level bucket presence/type, then
// per-item required-field presence, then nested locator/remediation/
// ai_review_assistant shape checks).
func validateLLMFormat(out rawLLMOutput) bool {
	for _, key := range []string{"high", "medium", "low", "allowed_variance"} {
		v, ok := out[key]
		if !ok {
			return false
		}
		if _, ok := v.([]interface{}); !ok {
			return false
		}
	}

	for _, bucket := range []string{"high", "medium", "low"} {
		items, _ := out[bucket].([]interface{})
		for _, raw := range items {
			item, ok := raw.(map[string]interface{})
			if !ok {
				return false
			}
			if !hasAllFields(item, requiredBucketFields) {
				return false
			}
			if !validLocator(item["locator"]) {
				return false
			}
			remediation, ok := item["remediation"].(map[string]interface{})
			if !ok {
				return false
			}
			if _, ok := remediation["snippet"]; !ok {
				return false
			}
			assistant, ok := item["ai_review_assistant"].(map[string]interface{})
			if !ok {
				return false
			}
			if _, ok := assistant["potential_risk"]; !ok {
				return false
			}
			if _, ok := assistant["suggested_action"]; !ok {
				return false
			}
		}
	}

	items, _ := out["allowed_variance"].([]interface{})
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			return false
		}
		if !hasAllFields(item, requiredAllowedFields) {
			return false
		}
		if !validLocator(item["locator"]) {
			return false
		}
	}

	return true
}

func hasAllFields(item map[string]interface{}, fields []string) bool {
	for _, f := range fields {
		if _, ok := item[f]; !ok {
			return false
		}
	}
	return true
}

func validLocator(v interface{}) bool {
	loc, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	_, hasType := loc["type"]
	_, hasValue := loc["value"]
	return hasType && hasValue
}

// decodeLLMFormat converts a validated rawLLMOutput into typed TriageItem
// buckets via a JSON roundtrip, which is simpler and just as correct as a
// field-by-field reflection walk given the map is already validated.
func decodeLLMFormat(out rawLLMOutput) (map[string][]rawItem, error) {
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var decoded map[string][]rawItem
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// rawItem decodes into a structural superset of the bucket item shapes so a
// single type serves high/medium/low (why) and allowed_variance (rationale).
type rawItem struct {
	ID                string                 `json:"id"`
	File              string                 `json:"file"`
	Locator           map[string]interface{} `json:"locator"`
	Old               interface{}            `json:"old"`
	New               interface{}            `json:"new"`
	Why               string                 `json:"why"`
	Rationale         string                 `json:"rationale"`
	Remediation       *rawRemediation        `json:"remediation"`
	AIReviewAssistant *rawAssistant          `json:"ai_review_assistant"`
}

type rawRemediation struct {
	Snippet string `json:"snippet"`
}

type rawAssistant struct {
	PotentialRisk   string `json:"potential_risk"`
	SuggestedAction string `json:"suggested_action"`
}
