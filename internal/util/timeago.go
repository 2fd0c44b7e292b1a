package util

import (
	"fmt"
	"time"
)

// TimeAgo renders a human-readable relative timestamp for comment listings.
// Unit strings stay Polish to match the site frontend.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "właśnie teraz"
	case diff < time.Hour:
		return fmt.Sprintf("%d min temu", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d godz temu", int(diff.Hours()))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%d dni temu", int(diff.Hours()/24))
	case diff < 365*24*time.Hour:
		return fmt.Sprintf("%d mies temu", int(diff.Hours()/(24*30)))
	default:
		return fmt.Sprintf("%d lat temu", int(diff.Hours()/(24*365)))
	}
}
