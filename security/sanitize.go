package security

import (
	"html"
	"regexp"
)

var specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// SanitizeHTML encodes HTML metacharacters so user input renders as
// text. This is the "impossible"-grade output encoding the demos
// contrast against weaker filters.
func SanitizeHTML(input string) string {
	return html.EscapeString(input)
}

// FilterSpecialChars strips every character that is not alphanumeric or
// whitespace. It is intentionally a blunt instrument; the medium-level
// demos use it to show that denylist-style filtering is not a defense.
func FilterSpecialChars(input string) string {
	return specialChars.ReplaceAllString(input, "")
}
