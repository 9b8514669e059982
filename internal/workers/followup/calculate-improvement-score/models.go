// internal/workers/followup/calculate-improvement-score/models.go
package calculateimprovementscore

import (
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
)

type Input struct {
	UserID       string                      `json:"userId"`
	FollowupID   string                      `json:"followupId"`
	FollowupType models.FollowupCategoryType `json:"followupType"`
	Diagnosis    *models.DiagnosisResult     `json:"diagnosis,omitempty"`
}

type Output struct {
	ImprovementScore int               `json:"improvementScore"`
	ImprovementBand  string            `json:"improvementBand"`
	ProgressLevel    int               `json:"progressLevel"`
	ScoreFactors     []followup.Factor `json:"scoreFactors"`
	DiagnosisPresent bool              `json:"diagnosisPresent"`
}
