// internal/workers/communication/send-progress-report/models.go
package sendprogressreport

import (
	"time"

	"coaching-workers/internal/models"
)

type Input struct {
	UserID             string                      `json:"userId"`
	FollowupType       models.FollowupCategoryType `json:"followupType"`
	ImprovementScore   int                         `json:"improvementScore"`
	DiagnosisCreatedAt *time.Time                  `json:"diagnosisCreatedAt,omitempty"`
	NextFollowupDate   *time.Time                  `json:"nextFollowupDate,omitempty"`
	Priority           string                      `json:"priority,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"` // "sent", "disabled"
	SentAt         string   `json:"sentAt"` // RFC 3339
	Channels       []string `json:"channels"`
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const PriorityHigh = "high"
