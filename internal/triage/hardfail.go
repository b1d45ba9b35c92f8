package triage

import (
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

var hardFailCredentialTokens = []string{"password", "secret", "key", "token", "credential"}
var hardFailDisabledSecurityTokens = []string{"ssl=false", "tls=false", "security=false", "auth=false"}

// HardFails returns every delta that must block a merge outright, matching
// detect_hard_fails: an existing invariant_breach policy tag, a changed
// value that now looks like a credential, or a disabled-security marker in
// the new value.
func HardFails(deltas []models.Delta) []models.Delta {
	var out []models.Delta
	for _, d := range deltas {
		newVal := strings.ToLower(d.StringNew())
		oldVal := strings.ToLower(d.StringOld())

		if d.Policy.Tag == models.PolicyInvariantBreach {
			out = append(out, d)
			continue
		}
		if containsAny(newVal, hardFailCredentialTokens) && oldVal != newVal {
			out = append(out, d)
			continue
		}
		if containsAny(newVal, hardFailDisabledSecurityTokens) {
			out = append(out, d)
		}
	}
	return out
}
