package spam

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// Detector screens submission text before persistence. A hit means the
// submission is suppressed silently: the caller reports success with a
// sentinel id so the author learns nothing.
type Detector struct {
	patterns []*regexp2.Regexp
}

// Pattern set mirrors the moderation blocklist: pharma and gambling spam,
// call-to-action phrases, throwaway TLD links, long digit runs, symbol
// floods, and single-character repetition (needs a backreference).
var defaultPatterns = []string{
	`(?i)\b(viagra|cialis|casino|poker|loan|mortgage)\b`,
	`(?i)\b(click here|visit now|buy now|free money)\b`,
	`(?i)https?://[^\s]+\.(tk|ml|ga|cf)(/|\s|$)`,
	`\b\d{10,}\b`,
	`[^\w\s]{5,}`,
	`(.)\1{10,}`,
}

func NewDetector() (*Detector, error) {
	d := &Detector{}
	for _, raw := range defaultPatterns {
		re, err := regexp2.Compile(raw, regexp2.None)
		if err != nil {
			return nil, err
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// IsSpam reports whether the text trips any pattern. Callers pass the whole
// submission (name, email and body joined). Pattern engine errors count as a
// hit; the gate fails closed.
func (d *Detector) IsSpam(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, re := range d.patterns {
		matched, err := re.MatchString(text)
		if err != nil || matched {
			return true
		}
	}
	return false
}

// Matches returns the patterns the text trips, for the audit detail field.
func (d *Detector) Matches(text string) []string {
	var hits []string
	for _, re := range d.patterns {
		if matched, err := re.MatchString(text); err == nil && matched {
			hits = append(hits, re.String())
		}
	}
	return hits
}
