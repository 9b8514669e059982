// internal/models/diagnosis.go
package models

import "time"

// FollowupCategoryType selects which type-specific signal feeds the improvement score.
type FollowupCategoryType string

const (
	FollowupTypePillar   FollowupCategoryType = "pillar"
	FollowupTypeWorkbook FollowupCategoryType = "workbook"
)

// Valid reports whether t is one of the known follow-up categories.
func (t FollowupCategoryType) Valid() bool {
	return t == FollowupTypePillar || t == FollowupTypeWorkbook
}

// DiagnosisResult is the AI-produced assessment of a follow-up worksheet.
// Every field is optional; the scorer only reads the ones that are present.
type DiagnosisResult struct {
	Summary                string                  `json:"summary,omitempty"`
	Strengths              []string                `json:"strengths,omitempty"`
	Challenges             []string                `json:"challenges,omitempty"`
	SituationAnalysis      *SituationAnalysis      `json:"situationAnalysis,omitempty"`
	PillarRecommendations  []PillarRecommendation  `json:"pillarRecommendations,omitempty"`
	FollowupRecommendation *FollowupRecommendation `json:"followupRecommendation,omitempty"`
}

type SituationAnalysis struct {
	ProgressLevel string `json:"progressLevel,omitempty"`
	Context       string `json:"context,omitempty"`
}

type PillarRecommendation struct {
	Pillar         string `json:"pillar,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

type FollowupRecommendation struct {
	ImplementationProgress string   `json:"implementationProgress,omitempty"`
	NextSteps              []string `json:"nextSteps,omitempty"`
}

// DiagnosisRecord is a stored diagnosis for one follow-up worksheet.
type DiagnosisRecord struct {
	FollowupID   string               `json:"followupId"`
	UserID       string               `json:"userId"`
	FollowupType FollowupCategoryType `json:"followupType"`
	Diagnosis    *DiagnosisResult     `json:"diagnosis"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// FollowupSchedule is a planned next check-in.
type FollowupSchedule struct {
	ID                      string    `json:"id"`
	UserID                  string    `json:"userId"`
	FollowupID              string    `json:"followupId"`
	ProgressLevel           int       `json:"progressLevel"`
	RecommendedIntervalDays int       `json:"recommendedIntervalDays"`
	NextFollowupDate        time.Time `json:"nextFollowupDate"`
	Status                  string    `json:"status"` // "scheduled", "completed", "cancelled"
	CreatedAt               time.Time `json:"createdAt"`
}

// ProgressSnapshot is the document indexed for progress history.
type ProgressSnapshot struct {
	UserID           string               `json:"userId"`
	FollowupID       string               `json:"followupId"`
	FollowupType     FollowupCategoryType `json:"followupType"`
	ImprovementScore int                  `json:"improvementScore"`
	ImprovementBand  string               `json:"improvementBand"`
	ProgressLevel    int                  `json:"progressLevel"`
	RecordedAt       time.Time            `json:"recordedAt"`
}
