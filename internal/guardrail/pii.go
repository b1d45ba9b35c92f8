// Package guardrail implements the Guardrail Engine (C6): PII redaction,
// malicious-intent pattern scanning, and policy re-validation, run after the
// Drift Engine and before Triage so the LLM never sees raw secrets.
package guardrail

import (
	"regexp"
	"sort"

	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/models"
)

var log = logging.WithComponent("guardrail")

type piiPattern struct {
	name string
	re   *regexp.Regexp
}

// piiPatterns mirrors pii_redactor.py's PII_PATTERNS dict, in declaration
// order (order matters for overlapping matches within a single scan).
var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{"phone_us", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"phone_intl", regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{1,14}`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{"iban", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)},
	{"api_key", regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_\-]{20,})["']?`)},
	{"password", regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*["']?([^\s"']{4,})["']?`)},
	{"jwt_token", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"aws_secret", regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*["']?([a-zA-Z0-9/+=]{40})["']?`)},
	{"gcp_key", regexp.MustCompile(`"private_key_id":\s*"[a-f0-9]{40}"`)},
	{"azure_key", regexp.MustCompile(`(?i)(azure[_-]?client[_-]?secret)\s*[:=]\s*["']?([a-zA-Z0-9_\-~.]{30,})["']?`)},
	{"gitlab_token", regexp.MustCompile(`glpat-[a-zA-Z0-9_-]{20}`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
}

// PIIMatch is a single PII/secret finding from ScanText, matching
// pii_redactor.py's scan_text finding shape.
type PIIMatch struct {
	Type  string
	Value string
	Start int
	End   int
}

// ScanText finds every PII pattern match in text, in pattern-declaration
// order then left-to-right within a pattern, matching scan_text.
func ScanText(text string) []PIIMatch {
	var matches []PIIMatch
	if text == "" {
		return matches
	}
	for _, p := range piiPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, PIIMatch{
				Type:  p.name,
				Value: text[loc[0]:loc[1]],
				Start: loc[0],
				End:   loc[1],
			})
		}
	}
	return matches
}

// RedactText replaces every PII match in text with a [REDACTED_<TYPE>]
// token and returns the redacted text plus the deduped, sorted list of PII
// types found, matching redact_text's reverse-position-order replacement.
func RedactText(text string) (string, []string) {
	matches := ScanText(text)
	if len(matches) == 0 {
		return text, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Start > matches[j].Start })

	out := text
	seen := map[string]bool{}
	var types []string
	for _, m := range matches {
		token := "[REDACTED_" + upperSnake(m.Type) + "]"
		out = out[:m.Start] + token + out[m.End:]
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
	}
	sort.Strings(types)
	return out, types
}

func upperSnake(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

// RedactDelta scans and redacts d's Old/New string fields in place, setting
// PIIRedacted/PIITypes, matching redact_delta.
func RedactDelta(d *models.Delta) {
	var allTypes []string
	seen := map[string]bool{}

	if s, ok := d.Old.(string); ok {
		redacted, types := RedactText(s)
		d.Old = redacted
		for _, t := range types {
			if !seen[t] {
				seen[t] = true
				allTypes = append(allTypes, t)
			}
		}
	}
	if s, ok := d.New.(string); ok {
		redacted, types := RedactText(s)
		d.New = redacted
		for _, t := range types {
			if !seen[t] {
				seen[t] = true
				allTypes = append(allTypes, t)
			}
		}
	}

	if len(allTypes) > 0 {
		sort.Strings(allTypes)
		d.PIIRedacted = true
		d.PIITypes = allTypes
	} else {
		d.PIIRedacted = false
		d.PIITypes = nil
	}
}

// RedactDeltas redacts every delta in place and returns the aggregate
// PIIReport, matching redact_context_bundle / _scan_and_redact_pii.
func RedactDeltas(deltas []models.Delta) models.PIIReport {
	instances := 0
	seen := map[string]bool{}
	var types []string

	for i := range deltas {
		RedactDelta(&deltas[i])
		if deltas[i].PIIRedacted {
			instances++
			for _, t := range deltas[i].PIITypes {
				if !seen[t] {
					seen[t] = true
					types = append(types, t)
				}
			}
		}
	}

	sort.Strings(types)
	log.Info("pii scan complete", map[string]interface{}{"instances_found": instances, "types": types})

	return models.PIIReport{
		InstancesFound: instances,
		Types:          types,
		Redacted:       instances > 0,
	}
}
