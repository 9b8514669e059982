// internal/workers/followup/schedule-followup/handler.go
package schedulefollowup

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
	"github.com/lib/pq"

	"coaching-workers/internal/common/camunda"
	"coaching-workers/internal/common/errors"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/metrics"
	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
)

const (
	TaskType = "schedule-followup"

	StatusScheduled = "scheduled"

	uniqueViolation = "23505"
)

// errOpenScheduleExists is returned by insert when the open-schedule index rejects the row.
var errOpenScheduleExists = stderrors.New("open schedule already exists")

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["userId", "followupId"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "followupId": {"type": "string", "minLength": 1},
    "progressLevel": {"type": "integer"},
    "improvementScore": {"type": ["integer", "null"]}
  }
}`)

type Handler struct {
	config       *Config
	db           *sql.DB
	now          func() time.Time
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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

// Execute plans the next check-in and stores it. A follow-up has at most one open schedule.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	level := input.ProgressLevel
	if level == 0 && input.ImprovementScore != nil {
		level = followup.ProgressLevelFromScore(*input.ImprovementScore)
	}

	schedule := &models.FollowupSchedule{
		ID:                      uuid.NewString(),
		UserID:                  input.UserID,
		FollowupID:              input.FollowupID,
		ProgressLevel:           level,
		RecommendedIntervalDays: followup.RecommendedFollowupInterval(level),
		NextFollowupDate:        followup.NextFollowupDateFrom(h.now().UTC(), level),
		Status:                  StatusScheduled,
	}

	existing, err := h.openSchedule(ctx, input.FollowupID)
	if err != nil {
		return nil, errors.NewScheduleInsertFailedError(err)
	}
	if existing != "" {
		return nil, errors.NewDuplicateScheduleError(input.FollowupID).
			WithMetadata("existingScheduleId", existing)
	}

	if err := h.insert(ctx, schedule); err != nil {
		if stderrors.Is(err, errOpenScheduleExists) {
			return nil, errors.NewDuplicateScheduleError(input.FollowupID)
		}
		return nil, errors.NewScheduleInsertFailedError(err)
	}

	metrics.FollowupIntervalDays.Observe(float64(schedule.RecommendedIntervalDays))

	h.logger.Info("follow-up scheduled", map[string]interface{}{
		"userId":       input.UserID,
		"followupId":   input.FollowupID,
		"scheduleId":   schedule.ID,
		"level":        level,
		"intervalDays": schedule.RecommendedIntervalDays,
	})

	return &Output{
		ScheduleID:              schedule.ID,
		ProgressLevel:           schedule.ProgressLevel,
		RecommendedIntervalDays: schedule.RecommendedIntervalDays,
		NextFollowupDate:        schedule.NextFollowupDate,
		Status:                  schedule.Status,
	}, nil
}

func (h *Handler) openSchedule(ctx context.Context, followupID string) (string, error) {
	var id string
	err := h.db.QueryRowContext(ctx, `
		SELECT id FROM followup_schedules
		WHERE followup_id = $1 AND status = $2
		LIMIT 1`, followupID, StatusScheduled).Scan(&id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("check open schedule: %w", err)
	}
	return id, nil
}

func (h *Handler) insert(ctx context.Context, s *models.FollowupSchedule) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO followup_schedules
			(id, user_id, followup_id, progress_level, recommended_interval_days, next_followup_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		s.ID, s.UserID, s.FollowupID, s.ProgressLevel, s.RecommendedIntervalDays, s.NextFollowupDate, s.Status)
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errOpenScheduleExists
	}
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
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
