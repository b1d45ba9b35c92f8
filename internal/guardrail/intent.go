package guardrail

import (
	"regexp"

	"github.com/catherinevee/certguard/internal/models"
)

type intentCategory struct {
	name     string
	severity string
	patterns []*regexp.Regexp
}

// intentCategories mirrors intent_guard.py's SUSPICIOUS_PATTERNS dict plus
// its _get_severity map, case-insensitive and multiline as in the original
// (re.IGNORECASE | re.MULTILINE).
var intentCategories = []intentCategory{
	{
		name:     "sql_injection",
		severity: "critical",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)';\s*DROP\s+TABLE`),
			regexp.MustCompile(`(?im)' OR '1'='1`),
			regexp.MustCompile(`(?im)UNION\s+SELECT`),
			regexp.MustCompile(`(?im)';?\s*DELETE\s+FROM`),
			regexp.MustCompile(`(?im)';?\s*UPDATE\s+.*SET`),
		},
	},
	{
		name:     "command_injection",
		severity: "critical",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im);\s*rm\s+-rf`),
			regexp.MustCompile(`(?im)&&\s*cat\s+/etc/passwd`),
			regexp.MustCompile(`(?im)\$\(.*\)`),
			regexp.MustCompile("(?im)`.*`"),
			regexp.MustCompile(`(?im);\s*curl\s+http`),
			regexp.MustCompile(`(?im);\s*wget\s+http`),
		},
	},
	{
		name:     "backdoor_ports",
		severity: "high",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)port:\s*(4444|31337|1337|6666|6667)`),
			regexp.MustCompile(`(?im)PORT\s*=\s*(4444|31337|1337|6666|6667)`),
		},
	},
	{
		name:     "debug_mode_prod",
		severity: "high",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)debug:\s*true`),
			regexp.MustCompile(`(?im)DEBUG_MODE\s*=\s*true`),
			regexp.MustCompile(`(?im)debug\s*=\s*true`),
		},
	},
	{
		name:     "wildcard_cors",
		severity: "medium",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)cors\.allowed-origins\s*[:=]\s*["']?\*["']?`),
			regexp.MustCompile(`(?im)CORS_ALLOWED_ORIGINS\s*=\s*["']?\*["']?`),
		},
	},
	{
		name:     "disabled_security",
		severity: "critical",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)ssl\.enabled\s*[:=]\s*["']?false["']?`),
			regexp.MustCompile(`(?im)SSL_ENABLED\s*=\s*["']?false["']?`),
			regexp.MustCompile(`(?im)authentication\.enabled\s*[:=]\s*["']?false["']?`),
		},
	},
}

// maxSeverity returns the plain lexicographic maximum of severity strings,
// matching scan_delta's max([f['severity'] for f in findings], default='low')
// -- Python's max() over strings with no key compares lexicographically, not
// by actual severity rank, so "medium" beats "critical" when both are
// present. That is the original's real behaviour and is reproduced here
// rather than "fixed" to a rank-based comparison.
func maxSeverity(severities []string, fallback string) string {
	if len(severities) == 0 {
		return fallback
	}
	best := severities[0]
	for _, s := range severities[1:] {
		if s > best {
			best = s
		}
	}
	return best
}

// ScanIntentText scans text for suspicious patterns, matching scan_text.
func ScanIntentText(text string) []models.IntentFinding {
	var findings []models.IntentFinding
	if text == "" {
		return findings
	}
	for _, cat := range intentCategories {
		for _, pat := range cat.patterns {
			for _, loc := range pat.FindAllStringIndex(text, -1) {
				findings = append(findings, models.IntentFinding{
					Category: cat.name,
					Pattern:  pat.String(),
					Value:    text[loc[0]:loc[1]],
					Start:    loc[0],
					End:      loc[1],
					Severity: cat.severity,
				})
			}
		}
	}
	return findings
}

// ScanDelta scans d's Old/New string fields and sets d.IntentGuard in
// place, matching scan_delta.
func ScanDelta(d *models.Delta) {
	var findings []models.IntentFinding
	if s, ok := d.Old.(string); ok {
		findings = append(findings, ScanIntentText(s)...)
	}
	if s, ok := d.New.(string); ok {
		findings = append(findings, ScanIntentText(s)...)
	}

	if len(findings) == 0 {
		d.IntentGuard = models.IntentGuard{Suspicious: false, PatternsDetected: []models.IntentFinding{}, Severity: "none"}
		return
	}

	severities := make([]string, len(findings))
	for i, f := range findings {
		severities[i] = f.Severity
	}
	d.IntentGuard = models.IntentGuard{Suspicious: true, PatternsDetected: findings, Severity: maxSeverity(severities, "low")}
}

// ScanDeltas scans every delta in place and returns the aggregate
// IntentReport, matching scan_context_bundle.
func ScanDeltas(deltas []models.Delta) models.IntentReport {
	report := models.IntentReport{SuspiciousPatterns: []models.IntentFinding{}}

	for i := range deltas {
		ScanDelta(&deltas[i])
		if deltas[i].IntentGuard.Suspicious {
			findings := deltas[i].IntentGuard.PatternsDetected
			report.SuspiciousPatterns = append(report.SuspiciousPatterns, findings...)
			report.TotalFindings += len(findings)
			for _, f := range findings {
				if f.Severity == "critical" {
					report.CriticalFindings++
				}
			}
		}
	}

	report.Safe = report.TotalFindings == 0
	log.Info("intent guard scan complete", map[string]interface{}{
		"total_findings":    report.TotalFindings,
		"critical_findings": report.CriticalFindings,
	})
	return report
}
