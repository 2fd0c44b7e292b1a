package util

import (
	"html"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// SanitizeInput trims and strips markup from user-supplied text before
// storage. Stored text stays plain; escaping happens once, at display time,
// in FormatCommentHTML.
func SanitizeInput(s string) string {
	return strings.TrimSpace(stripTags(s))
}

// ContainsSuspicious reports script-injection markers in free text.
func ContainsSuspicious(s string) bool {
	badChars := []string{"<", ">", "${", "javascript:", "script", "onerror", "onload"}
	lower := strings.ToLower(s)
	for _, c := range badChars {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// FormatCommentHTML prepares stored comment text for display: escapes HTML,
// turns bare URLs into links, converts newlines, and truncates long bodies
// to a 500-character preview.
func FormatCommentHTML(text string) string {
	escaped := html.EscapeString(text)

	escaped = urlPattern.ReplaceAllStringFunc(escaped, func(u string) string {
		return `<a href="` + u + `" target="_blank" rel="noopener noreferrer">` + u + `</a>`
	})

	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")

	if len([]rune(escaped)) > 500 {
		// Truncate on rune boundaries; Polish text is the norm here.
		plain := []rune(stripTags(escaped))
		if len(plain) > 497 {
			plain = plain[:497]
		}
		return string(plain) + "..."
	}
	return escaped
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}
