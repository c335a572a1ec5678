package normalize

import (
	"regexp"
	"strings"
)

// Sanitization runs before truncation so a length cut can never leave a
// dangerous half-open tag fragment behind.

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	wsRe     = regexp.MustCompile(`[ \t\r\f]+`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// SanitizeText strips script/style blocks and all remaining markup, collapses
// whitespace, then truncates to maxLen runes. A maxLen of 0 means unbounded.
func SanitizeText(s string, maxLen int) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = wsRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	return Truncate(s, maxLen)
}

// Truncate cuts s to at most maxLen runes without splitting a rune.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
