// Package redact masks secret material in text before it leaves the
// process. Every artifact write passes through Redact; it is the barrier
// between secrets at rest and files on disk.
package redact

import (
	"regexp"
	"strings"
)

const mask = "***"

// secretPatterns are header/URL shapes whose value portion is always masked,
// even when the embedded value is not in the live secret set. Each pattern
// captures the prefix; the value is a maximal run of non-whitespace,
// non-ampersand characters.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Authorization: Bearer )([^\s]+)`),
	regexp.MustCompile(`(?i)(api_key=)([^&\s]+)`),
	regexp.MustCompile(`(?i)(token=)([^&\s]+)`),
	regexp.MustCompile(`(?i)(x-api-key: )([^\s]+)`),
}

// Redact masks recognizable credential patterns, then every non-empty
// element of secretValues literally. Patterns run first so a header is
// masked even if its value is unknown to the vault. The result is stable
// under re-application.
func Redact(text string, secretValues []string) string {
	redacted := text
	for _, pattern := range secretPatterns {
		redacted = pattern.ReplaceAllString(redacted, "${1}"+mask)
	}
	for _, secret := range secretValues {
		if secret == "" {
			continue
		}
		redacted = strings.ReplaceAll(redacted, secret, mask)
	}
	return redacted
}
