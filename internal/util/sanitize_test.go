package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  padded  ",
			expected: "padded",
		},
		{
			name:     "markup stripped, not escaped",
			input:    `<script>alert("x")</script>`,
			expected: `alert("x")`,
		},
		{
			name:     "entities left alone",
			input:    "Kasia & Tomek <3",
			expected: "Kasia & Tomek <3",
		},
		{
			name:     "polish characters preserved",
			input:    "właśnie teraz",
			expected: "właśnie teraz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeInput(tt.input))
		})
	}
}

func TestContainsSuspicious(t *testing.T) {
	assert.True(t, ContainsSuspicious("<img src=x onerror=alert(1)>"))
	assert.True(t, ContainsSuspicious("JAVASCRIPT:void(0)"))
	assert.True(t, ContainsSuspicious("${jndi:ldap://x}"))
	assert.False(t, ContainsSuspicious("just a normal comment about music"))
}

func TestFormatCommentHTML_Linkify(t *testing.T) {
	out := FormatCommentHTML("listen at https://example.com/stream now")
	assert.Contains(t, out, `<a href="https://example.com/stream"`)
	assert.Contains(t, out, `rel="noopener noreferrer"`)
}

func TestFormatCommentHTML_Newlines(t *testing.T) {
	out := FormatCommentHTML("line one\r\nline two\nline three")
	assert.Equal(t, "line one<br>line two<br>line three", out)
}

func TestFormatCommentHTML_EscapesMarkup(t *testing.T) {
	out := FormatCommentHTML("<b>bold</b>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "&lt;b&gt;")
}

func TestFormatCommentHTML_TruncatesLongBodies(t *testing.T) {
	out := FormatCommentHTML(strings.Repeat("a", 600))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, 500, len(out))
}

func TestFormatCommentHTML_TruncatesOnRuneBoundaries(t *testing.T) {
	out := FormatCommentHTML(strings.Repeat("ą", 600))
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, 500, len([]rune(out)))
}

// Stored text is plain after intake, so display escapes exactly once.
func TestFormatCommentHTML_EscapesStoredTextOnce(t *testing.T) {
	out := FormatCommentHTML(SanitizeInput("Kasia & Tomek <3"))
	assert.Equal(t, "Kasia &amp; Tomek &lt;3", out)
}
