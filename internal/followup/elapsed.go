// internal/followup/elapsed.go
package followup

import (
	"fmt"
	"math"
	"time"
)

const day = 24 * time.Hour

// TimeElapsed renders the time since createdAt as a coarse human string.
func TimeElapsed(createdAt *time.Time) string {
	return TimeElapsedSince(createdAt, time.Now())
}

// TimeElapsedSince is TimeElapsed with an explicit clock reading.
// A createdAt in the future renders as "Less than a day".
func TimeElapsedSince(createdAt *time.Time, now time.Time) string {
	if createdAt == nil {
		return "Unknown"
	}

	days := int(math.Floor(float64(now.Sub(*createdAt)) / float64(day)))

	switch {
	case days < 1:
		return "Less than a day"
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 14:
		return "1 week"
	case days < 30:
		return fmt.Sprintf("%d weeks", days/7)
	case days < 60:
		return "1 month"
	case days < 365:
		return fmt.Sprintf("%d months", days/30)
	case days < 730:
		return "1 year"
	default:
		return fmt.Sprintf("%d years", days/365)
	}
}
