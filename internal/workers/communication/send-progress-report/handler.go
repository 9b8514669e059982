// internal/workers/communication/send-progress-report/handler.go
package sendprogressreport

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	awsclient "coaching-workers/internal/common/aws"
	"coaching-workers/internal/common/camunda"
	"coaching-workers/internal/common/errors"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/metrics"
	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
)

const (
	TaskType = "send-progress-report"
)

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["userId", "improvementScore"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "followupType": {"type": "string"},
    "improvementScore": {"type": "integer", "minimum": 0, "maximum": 100},
    "diagnosisCreatedAt": {"type": ["string", "null"], "format": "date-time"},
    "nextFollowupDate": {"type": ["string", "null"], "format": "date-time"},
    "priority": {"type": "string", "enum": ["low", "normal", "high"]}
  }
}`)

// EmailSender delivers a rendered email.
type EmailSender interface {
	Send(ctx context.Context, email awsclient.Email) (string, error)
}

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config       *Config
	db           *sql.DB
	email        EmailSender
	sms          SMSSender
	now          func() time.Time
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, db *sql.DB, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		email:        email,
		sms:          sms,
		now:          time.Now,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func parseInput(variables string) (*Input, error) {
	if result := inputSchema.ValidateJSON(variables); !result.Valid {
		return nil, errors.NewInvalidInputError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute emails the progress report and, for high priority or low scores, sends an SMS.
// An unknown recipient completes with status "disabled".
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	now := h.now().UTC()
	output := &Output{
		NotificationID: uuid.NewString(),
		Status:         StatusDisabled,
		SentAt:         now.Format(time.RFC3339),
		Channels:       []string{},
	}

	contact, err := h.getContact(ctx, input.UserID)
	if stderrors.Is(err, sql.ErrNoRows) {
		h.logger.Warn("recipient not found", map[string]interface{}{"userId": input.UserID})
		metrics.NotificationsSent.WithLabelValues(ChannelEmail, StatusDisabled).Inc()
		return output, nil
	}
	if err != nil {
		return nil, errors.NewNotificationSendFailedError(ChannelEmail, fmt.Errorf("lookup recipient: %w", err))
	}

	data := h.templateData(input, contact, now)

	if h.config.EmailEnabled && contact.Email != "" {
		text := renderTemplate(reportTemplate.Body, data)
		messageID, err := h.email.Send(ctx, awsclient.Email{
			From:     h.config.FromEmail,
			To:       contact.Email,
			Subject:  renderTemplate(reportTemplate.Subject, data),
			TextBody: text,
			HTMLBody: htmlBody(text),
		})
		if err != nil {
			metrics.NotificationsSent.WithLabelValues(ChannelEmail, StatusFailed).Inc()
			return nil, errors.NewNotificationSendFailedError(ChannelEmail, err).
				WithMetadata("notificationId", output.NotificationID)
		}
		metrics.NotificationsSent.WithLabelValues(ChannelEmail, StatusSent).Inc()
		output.Channels = append(output.Channels, ChannelEmail)
		h.logger.Info("progress report emailed", map[string]interface{}{
			"userId":    input.UserID,
			"messageId": messageID,
		})
	}

	if h.shouldSendSMS(input) && contact.Phone != "" {
		messageID, err := h.sms.SendSMS(ctx, contact.Phone, renderTemplate(smsTemplate, data))
		if err != nil {
			// Email may already be out; a retry would duplicate it.
			metrics.NotificationsSent.WithLabelValues(ChannelSMS, StatusFailed).Inc()
			h.logger.Error("progress report sms failed", map[string]interface{}{
				"userId": input.UserID,
				"error":  err.Error(),
			})
		} else {
			metrics.NotificationsSent.WithLabelValues(ChannelSMS, StatusSent).Inc()
			output.Channels = append(output.Channels, ChannelSMS)
			h.logger.Info("progress report texted", map[string]interface{}{
				"userId":    input.UserID,
				"messageId": messageID,
			})
		}
	}

	if len(output.Channels) > 0 {
		output.Status = StatusSent
	}
	return output, nil
}

func (h *Handler) shouldSendSMS(input *Input) bool {
	if !h.config.SMSEnabled {
		return false
	}
	return input.Priority == PriorityHigh || input.ImprovementScore < h.config.SMSScoreThreshold
}

func (h *Handler) templateData(input *Input, contact *models.Contact, now time.Time) map[string]interface{} {
	name := contact.Name
	if name == "" {
		name = "there"
	}

	nextFollowup := ""
	if input.NextFollowupDate != nil {
		nextFollowup = "Next check-in: " + input.NextFollowupDate.UTC().Format("Mon, 02 Jan 2006") + "."
	}

	return map[string]interface{}{
		"name":             name,
		"followupLabel":    followupLabel(input.FollowupType),
		"improvementScore": input.ImprovementScore,
		"improvementBand":  followup.ClassifyImprovement(input.ImprovementScore),
		"elapsed":          elapsedPhrase(followup.TimeElapsedSince(input.DiagnosisCreatedAt, now)),
		"nextFollowup":     nextFollowup,
	}
}

func elapsedPhrase(elapsed string) string {
	switch elapsed {
	case "Unknown":
		return "recently"
	case "Less than a day":
		return "within the last day"
	default:
		return elapsed + " ago"
	}
}

func (h *Handler) getContact(ctx context.Context, userID string) (*models.Contact, error) {
	contact := &models.Contact{UserID: userID}
	err := h.db.QueryRowContext(ctx, `
		SELECT COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM users WHERE id = $1`, userID).Scan(&contact.Name, &contact.Email, &contact.Phone)
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	err = camunda.ExecuteWithRetry(context.Background(), nil, "complete job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}
