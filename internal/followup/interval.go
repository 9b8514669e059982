// internal/followup/interval.go
package followup

import "time"

// DefaultIntervalDays is used for any progress level outside 1..5.
const DefaultIntervalDays = 30

var intervalDays = map[int]int{
	1: 7,
	2: 14,
	3: 30,
	4: 45,
	5: 60,
}

// RecommendedFollowupInterval returns the number of days to wait before the
// next follow-up for a progress level.
func RecommendedFollowupInterval(progressLevel int) int {
	if days, ok := intervalDays[progressLevel]; ok {
		return days
	}
	return DefaultIntervalDays
}

// NextFollowupDate returns now plus the recommended interval in calendar days.
func NextFollowupDate(progressLevel int) time.Time {
	return NextFollowupDateFrom(time.Now(), progressLevel)
}

// NextFollowupDateFrom is NextFollowupDate with an explicit clock reading.
func NextFollowupDateFrom(now time.Time, progressLevel int) time.Time {
	return now.AddDate(0, 0, RecommendedFollowupInterval(progressLevel))
}

// ProgressLevelFromScore maps a 0..100 improvement score onto a 1..5 progress level.
func ProgressLevelFromScore(score int) int {
	score = clamp(score, MinScore, MaxScore)
	level := score/20 + 1
	if level > 5 {
		level = 5
	}
	return level
}
