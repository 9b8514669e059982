// internal/workers/followup/schedule-followup/models.go
package schedulefollowup

import "time"

type Input struct {
	UserID           string `json:"userId"`
	FollowupID       string `json:"followupId"`
	ProgressLevel    int    `json:"progressLevel"`
	ImprovementScore *int   `json:"improvementScore,omitempty"`
}

type Output struct {
	ScheduleID              string    `json:"scheduleId"`
	ProgressLevel           int       `json:"progressLevel"`
	RecommendedIntervalDays int       `json:"recommendedIntervalDays"`
	NextFollowupDate        time.Time `json:"nextFollowupDate"`
	Status                  string    `json:"status"`
}
