// internal/workers/followup/calculate-improvement-score/handler.go
package calculateimprovementscore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"coaching-workers/internal/common/camunda"
	"coaching-workers/internal/common/errors"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/metrics"
	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/store"
)

const (
	TaskType = "calculate-improvement-score"
)

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["followupType"],
  "properties": {
    "userId": {"type": "string"},
    "followupId": {"type": "string"},
    "followupType": {"type": "string", "enum": ["pillar", "workbook"]},
    "diagnosis": {"type": ["object", "null"]}
  }
}`)

type Handler struct {
	config       *Config
	repo         store.DiagnosisRepository
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. repo may be nil, in which case only inline diagnoses are scored.
func NewHandler(config *Config, repo store.DiagnosisRepository, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		repo:         repo,
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

// Execute scores the inline diagnosis, or the stored one when none is given.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !input.FollowupType.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown followupType %q", input.FollowupType))
	}

	diagnosis := input.Diagnosis
	if diagnosis == nil && input.FollowupID != "" && h.repo != nil {
		rec, err := h.repo.Get(ctx, input.FollowupID)
		switch {
		case stderrors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, errors.NewDiagnosisLookupFailedError(err).
				WithMetadata("followupId", input.FollowupID)
		default:
			diagnosis = rec.Diagnosis
		}
	}

	if diagnosis == nil {
		h.logger.Warn("diagnosis absent, scoring as zero", map[string]interface{}{
			"userId":     input.UserID,
			"followupId": input.FollowupID,
		})
	}

	factors := followup.ScoreFactors(diagnosis, input.FollowupType)
	if factors == nil {
		factors = []followup.Factor{}
	}
	score := followup.CalculateImprovementScore(diagnosis, input.FollowupType)
	band := followup.ClassifyImprovement(score)

	metrics.RecordScore(string(input.FollowupType), score, band)

	h.logger.Info("improvement score calculated", map[string]interface{}{
		"userId":       input.UserID,
		"followupId":   input.FollowupID,
		"followupType": string(input.FollowupType),
		"score":        score,
		"band":         band,
		"factors":      factors,
	})

	return &Output{
		ImprovementScore: score,
		ImprovementBand:  band,
		ProgressLevel:    followup.ProgressLevelFromScore(score),
		ScoreFactors:     factors,
		DiagnosisPresent: diagnosis != nil,
	}, nil
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
