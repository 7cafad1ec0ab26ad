package weather

import (
	"regexp"
	"strings"
)

var (
	zipPattern   = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
	statePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
	// Labels such as "Redwood City, CA (Auto)" carry a UI suffix.
	labelSuffix = regexp.MustCompile(`\s*\((?i:auto|default)\)`)
)

// IsPostalCode reports whether q is a 5-digit (optionally +4) postal code,
// ignoring whitespace.
func IsPostalCode(q string) bool {
	return zipPattern.MatchString(compact(q))
}

// NormalizeCityQuery prepares free text for the upstream "q" parameter.
// "City, ST" with a two-letter second segment becomes "City,ST,<country>";
// anything else is returned trimmed.
func NormalizeCityQuery(q, country string) string {
	cleaned := strings.TrimSpace(labelSuffix.ReplaceAllString(q, ""))
	parts := strings.Split(cleaned, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 2 && statePattern.MatchString(parts[1]) && country != "" {
		return parts[0] + "," + parts[1] + "," + country
	}
	return cleaned
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
