package extract

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	emailExact   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	nonDigits    = regexp.MustCompile(`\D`)

	// addressPattern wants a street number, a name, a street suffix,
	// and optionally a city/state/zip tail. Suffixes are ordered so
	// the long form wins before its abbreviation.
	addressPattern = regexp.MustCompile(`(?i)\d+\s+[A-Za-z0-9.\s]+?\s(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd|Way|Circle|Court|Ct|Place|Pl)\b\.?(?:,?\s+[A-Za-z.\s]+?,\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?)?`)
	streetStart    = regexp.MustCompile(`^\d+\s+[A-Za-z]`)
)

// excludedEmailDomains are addresses that show up in page chrome, error
// reporting snippets, and documentation, never as a business contact.
var excludedEmailDomains = []string{
	"example.com",
	"sentry.io",
	"mozilla.org",
	"schema.org",
}

var excludedEmailPrefixes = []string{"support@", "noreply@"}

// NormalizePhone reduces a phone candidate to XXX-XXX-XXXX. A leading
// country 1 on eleven digits is dropped; anything else that is not
// exactly ten digits is malformed and rejected.
func NormalizePhone(raw string) (string, bool) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], true
}

// normalizeEmail lowercases a candidate and rejects non-addresses and
// addresses from the exclusion lists. siteHosts are the directory's own
// domains.
func normalizeEmail(raw string, siteHosts []string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailExact.MatchString(email) {
		return "", false
	}
	for _, prefix := range excludedEmailPrefixes {
		if strings.HasPrefix(email, prefix) {
			return "", false
		}
	}
	for _, domain := range excludedEmailDomains {
		if strings.Contains(email, domain) {
			return "", false
		}
	}
	for _, host := range siteHosts {
		if strings.Contains(email, host) {
			return "", false
		}
	}
	return email, true
}

// truncate caps s at max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
