// internal/workers/followup/generate-diagnosis/handler.go
package generatediagnosis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"coaching-workers/internal/common/camunda"
	"coaching-workers/internal/common/errors"
	httpclient "coaching-workers/internal/common/http"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/metrics"
	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
	"coaching-workers/internal/store"
)

const (
	TaskType = "generate-diagnosis"
)

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["userId", "followupId", "followupType", "answers"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "followupId": {"type": "string", "minLength": 1},
    "followupType": {"type": "string", "enum": ["pillar", "workbook"]},
    "pillar": {"type": "string"},
    "answers": {"type": "object"},
    "previousDiagnosis": {"type": ["object", "null"]}
  }
}`)

type Handler struct {
	config       *Config
	client       *httpclient.Client
	repo         store.DiagnosisRepository
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, repo store.DiagnosisRepository, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       httpclient.NewClient(config.Timeout),
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

// Execute asks the completion service for a diagnosis, validates it and stores it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	text, err := h.complete(ctx, buildPrompt(input))
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		return nil, errors.NewDiagnosisInvalidError("completion contained no JSON object")
	}
	if result := validation.ValidateDiagnosisJSON(raw); !result.Valid {
		return nil, errors.NewDiagnosisInvalidError(result.Summary())
	}

	var diagnosis models.DiagnosisResult
	if err := json.Unmarshal([]byte(raw), &diagnosis); err != nil {
		return nil, errors.NewDiagnosisInvalidError(err.Error())
	}

	rec := &models.DiagnosisRecord{
		FollowupID:   input.FollowupID,
		UserID:       input.UserID,
		FollowupType: input.FollowupType,
		Diagnosis:    &diagnosis,
	}
	if err := h.repo.Save(ctx, rec); err != nil {
		return nil, errors.NewDiagnosisSaveFailedError(err).
			WithMetadata("followupId", input.FollowupID)
	}

	score := followup.CalculateImprovementScore(&diagnosis, input.FollowupType)

	h.logger.Info("diagnosis generated", map[string]interface{}{
		"userId":     input.UserID,
		"followupId": input.FollowupID,
		"strengths":  len(diagnosis.Strengths),
		"challenges": len(diagnosis.Challenges),
		"score":      score,
	})

	return &Output{
		Diagnosis:          &diagnosis,
		ImprovementScore:   score,
		DiagnosisCreatedAt: rec.CreatedAt,
	}, nil
}

// complete posts the prompt, retrying transient failures with exponential backoff.
func (h *Handler) complete(ctx context.Context, prompt string) (string, error) {
	req := completionRequest{
		Model:          h.config.Model,
		Prompt:         prompt,
		MaxTokens:      h.config.MaxTokens,
		Temperature:    h.config.Temperature,
		ResponseFormat: "json",
	}
	headers := map[string]string{}
	if h.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + h.config.APIKey
	}

	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", errors.NewAICompletionTimeoutError(ctx.Err())
			}
		}

		var resp completionResponse
		err := h.client.PostJSON(ctx, h.config.CompletionURL, headers, req, &resp)
		if err == nil {
			return resp.Text, nil
		}
		lastErr = err

		if isTimeout(ctx, err) {
			return "", errors.NewAICompletionTimeoutError(err)
		}
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}

		h.logger.Warn("completion attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return "", errors.NewAICompletionFailedError(lastErr)
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
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
