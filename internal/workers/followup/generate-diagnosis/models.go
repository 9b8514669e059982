// internal/workers/followup/generate-diagnosis/models.go
package generatediagnosis

import (
	"time"

	"coaching-workers/internal/models"
)

type Input struct {
	UserID            string                      `json:"userId"`
	FollowupID        string                      `json:"followupId"`
	FollowupType      models.FollowupCategoryType `json:"followupType"`
	Pillar            string                      `json:"pillar"`
	Answers           map[string]interface{}      `json:"answers"`
	PreviousDiagnosis *models.DiagnosisResult     `json:"previousDiagnosis,omitempty"`
}

type Output struct {
	Diagnosis          *models.DiagnosisResult `json:"diagnosis"`
	ImprovementScore   int                     `json:"improvementScore"`
	DiagnosisCreatedAt time.Time               `json:"diagnosisCreatedAt"`
}

type completionRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	ResponseFormat string  `json:"response_format"`
}

type completionResponse struct {
	Text string `json:"text"`
}
