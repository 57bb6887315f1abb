package observability

import (
	"strings"
	"unicode"
)

const defaultFieldLimit = 256

// SanitizeLogValue strips control characters from remote-supplied text and
// caps its length so store responses cannot inject structure into log lines.
// A non-positive limit falls back to a conservative default.
func SanitizeLogValue(value string, limit int) string {
	if limit <= 0 {
		limit = defaultFieldLimit
	}

	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			cleaned = append(cleaned, ' ')
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return strings.TrimSpace(string(cleaned))
}
