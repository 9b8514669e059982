package errors

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-workers/internal/common/camunda/camundatest"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Error(msg string, _ map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func TestHandleJobError_ThrowsBusinessErrors(t *testing.T) {
	client := camundatest.NewJobClient()
	h := NewErrorHandler(&recordingLogger{})

	h.HandleJobError(context.Background(), client,
		camundatest.RawJob(1, "schedule-followup", `{}`), NewDuplicateScheduleError("fu-1"))

	thrown := client.Thrown(t)
	require.Len(t, thrown, 1)
	assert.Equal(t, string(ErrCodeDuplicateSchedule), thrown[0].ErrorCode)
	assert.Empty(t, client.Failed(t))
}

func TestHandleJobError_RetriesUnavailableGateway(t *testing.T) {
	client := camundatest.NewJobClient()
	client.Unavailable(1)
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	job := camundatest.RawJob(2, "schedule-followup", `{}`)
	h.HandleJobError(context.Background(), client, job, NewScheduleInsertFailedError(context.DeadlineExceeded))

	failed := client.Failed(t)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].JobKey)
	assert.NotContains(t, log.messages, "failed to send job command")
}

func TestHandleJobError_LogsWhenGatewayStaysDown(t *testing.T) {
	client := camundatest.NewJobClient()
	client.Unavailable(1)
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.HandleJobError(ctx, client, camundatest.RawJob(3, "schedule-followup", `{}`), NewInvalidInputError("userId is required"))

	assert.Empty(t, client.Thrown(t))
	assert.Contains(t, log.messages, "failed to send job command")
}
