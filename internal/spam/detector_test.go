package spam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_FlagsKnownPatterns(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"pharma keyword", "best viagra deals in town"},
		{"gambling keyword", "join our online Casino tonight"},
		{"call to action", "Click Here for amazing offers"},
		{"throwaway tld link", "check http://spam.tk/offer for details"},
		{"long digit run", "call me at 12345678901 anytime"},
		{"symbol flood", "great post !!!@@#$% love it"},
		{"repeated character", "aaaaaaaaaaaaaaaa great stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, d.IsSpam(tt.body), "expected spam: %q", tt.body)
		})
	}
}

func TestDetector_PassesLegitimateComments(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"ordinary comment", "Świetna audycja, pozdrawiam całą redakcję!"},
		{"comment with safe link", "more info at https://example.com/page"},
		{"short number", "spotkanie o 18:30 w studiu"},
		{"empty body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, d.IsSpam(tt.body), "expected clean: %q", tt.body)
		})
	}
}

func TestDetector_MatchesReportsPatterns(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	hits := d.Matches("viagra casino click here")
	assert.NotEmpty(t, hits)
	// Pharma and call-to-action patterns both trip.
	assert.GreaterOrEqual(t, len(hits), 2)
}
