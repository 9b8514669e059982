// internal/workers/data-access/record-progress/handler.go
package recordprogress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"coaching-workers/internal/common/camunda"
	"coaching-workers/internal/common/errors"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/metrics"
	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
)

const (
	TaskType = "record-progress"
)

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["userId", "followupId", "improvementScore"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "followupId": {"type": "string", "minLength": 1},
    "followupType": {"type": "string"},
    "improvementScore": {"type": "integer", "minimum": 0, "maximum": 100},
    "progressLevel": {"type": "integer", "minimum": 0},
    "recordedAt": {"type": ["string", "null"], "format": "date-time"}
  }
}`)

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	now          func() time.Time
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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

// Execute indexes a progress snapshot keyed by follow-up id, so replays overwrite
// rather than duplicate.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	snapshot := h.snapshot(input)

	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("encode snapshot: %v", err))
	}

	req := esapi.IndexRequest{
		Index:      h.config.Index,
		DocumentID: snapshot.FollowupID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, h.client)
	if err != nil {
		return nil, errors.NewProgressIndexFailedError(h.config.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		stdErr := errors.NewProgressIndexFailedError(h.config.Index, fmt.Errorf("%s: %s", res.Status(), detail))
		if res.StatusCode < http.StatusInternalServerError && res.StatusCode != http.StatusTooManyRequests {
			stdErr.Retryable = false
		}
		return nil, stdErr
	}

	var parsed indexResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewProgressIndexFailedError(h.config.Index, fmt.Errorf("decode response: %w", err))
	}

	h.logger.Info("progress recorded", map[string]interface{}{
		"userId":     input.UserID,
		"followupId": input.FollowupID,
		"index":      h.config.Index,
		"result":     parsed.Result,
		"score":      snapshot.ImprovementScore,
	})

	return &Output{
		DocumentID: parsed.ID,
		Index:      h.config.Index,
		Result:     parsed.Result,
	}, nil
}

func (h *Handler) snapshot(input *Input) *models.ProgressSnapshot {
	level := input.ProgressLevel
	if level == 0 {
		level = followup.ProgressLevelFromScore(input.ImprovementScore)
	}

	recordedAt := h.now().UTC()
	if input.RecordedAt != nil {
		recordedAt = input.RecordedAt.UTC()
	}

	return &models.ProgressSnapshot{
		UserID:           input.UserID,
		FollowupID:       input.FollowupID,
		FollowupType:     input.FollowupType,
		ImprovementScore: input.ImprovementScore,
		ImprovementBand:  followup.ClassifyImprovement(input.ImprovementScore),
		ProgressLevel:    level,
		RecordedAt:       recordedAt,
	}
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
