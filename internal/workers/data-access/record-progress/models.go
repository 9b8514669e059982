// internal/workers/data-access/record-progress/models.go
package recordprogress

import (
	"time"

	"coaching-workers/internal/models"
)

type Input struct {
	UserID           string                      `json:"userId"`
	FollowupID       string                      `json:"followupId"`
	FollowupType     models.FollowupCategoryType `json:"followupType"`
	ImprovementScore int                         `json:"improvementScore"`
	ProgressLevel    int                         `json:"progressLevel"`
	RecordedAt       *time.Time                  `json:"recordedAt,omitempty"`
}

type Output struct {
	DocumentID string `json:"documentId"`
	Index      string `json:"index"`
	Result     string `json:"result"` // "created" or "updated"
}

type indexResponse struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
}
