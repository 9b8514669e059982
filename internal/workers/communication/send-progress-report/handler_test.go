// internal/workers/communication/send-progress-report/handler_test.go
package sendprogressreport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awsclient "coaching-workers/internal/common/aws"
	"coaching-workers/internal/common/camunda/camundatest"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)

type fakeEmail struct {
	sent []awsclient.Email
	err  error
}

func (f *fakeEmail) Send(_ context.Context, email awsclient.Email) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return "ses-msg-1", nil
}

type fakeSMS struct {
	phones   []string
	messages []string
	err      error
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, message string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.phones = append(f.phones, phone)
	f.messages = append(f.messages, message)
	return "sns-msg-1", nil
}

func createTestConfig() *Config {
	return &Config{
		EmailEnabled:      true,
		SMSEnabled:        true,
		FromEmail:         "coach@example.com",
		SMSScoreThreshold: 30,
		Timeout:           5 * time.Second,
	}
}

type fixture struct {
	handler *Handler
	mock    sqlmock.Sqlmock
	email   *fakeEmail
	sms     *fakeSMS
}

func setup(t *testing.T, cfg *Config) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{mock: mock, email: &fakeEmail{}, sms: &fakeSMS{}}
	f.handler = NewHandler(cfg, db, f.email, f.sms, logger.NewTestLogger(t))
	f.handler.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) expectContact(userID, name, email, phone string) {
	f.mock.ExpectQuery("FROM users WHERE id").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "phone"}).AddRow(name, email, phone))
}

func timePtr(t time.Time) *time.Time { return &t }

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_EmailOnly(t *testing.T) {
	f := setup(t, createTestConfig())
	f.expectContact("u-1", "Dana", "dana@example.com", "+15550100")

	output, err := f.handler.Execute(context.Background(), &Input{
		UserID:             "u-1",
		FollowupType:       models.FollowupTypePillar,
		ImprovementScore:   80,
		DiagnosisCreatedAt: timePtr(fixedNow.AddDate(0, 0, -10)),
		NextFollowupDate:   timePtr(time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSent, output.Status)
	assert.Equal(t, []string{ChannelEmail}, output.Channels)
	assert.Equal(t, "2026-06-15T10:00:00Z", output.SentAt)
	assert.NotEmpty(t, output.NotificationID)
	assert.Empty(t, f.sms.phones)

	require.Len(t, f.email.sent, 1)
	sent := f.email.sent[0]
	assert.Equal(t, "coach@example.com", sent.From)
	assert.Equal(t, "dana@example.com", sent.To)
	assert.Equal(t, "Your pillar progress: 80/100", sent.Subject)
	assert.Contains(t, sent.TextBody, "Hi Dana,")
	assert.Contains(t, sent.TextBody, "(strong)")
	assert.Contains(t, sent.TextBody, "prepared 1 week ago")
	assert.Contains(t, sent.TextBody, "Next check-in: Fri, 14 Aug 2026.")
	assert.NotContains(t, sent.TextBody, "{{")
	assert.Contains(t, sent.HTMLBody, "<p>Hi Dana,</p>")
}

func TestHandler_Execute_SMSRules(t *testing.T) {
	tests := []struct {
		name     string
		priority string
		score    int
		smsOn    bool
		wantSMS  bool
	}{
		{name: "high priority", priority: PriorityHigh, score: 90, smsOn: true, wantSMS: true},
		{name: "score below threshold", priority: "normal", score: 29, smsOn: true, wantSMS: true},
		{name: "score at threshold", priority: "normal", score: 30, smsOn: true, wantSMS: false},
		{name: "sms disabled", priority: PriorityHigh, score: 10, smsOn: false, wantSMS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig()
			cfg.SMSEnabled = tt.smsOn
			f := setup(t, cfg)
			f.expectContact("u-2", "Sam", "sam@example.com", "+15550101")

			output, err := f.handler.Execute(context.Background(), &Input{
				UserID:           "u-2",
				FollowupType:     models.FollowupTypeWorkbook,
				ImprovementScore: tt.score,
				Priority:         tt.priority,
			})
			require.NoError(t, err)

			if tt.wantSMS {
				require.Equal(t, []string{"+15550101"}, f.sms.phones)
				assert.Contains(t, f.sms.messages[0], "workbook score is")
				assert.Contains(t, output.Channels, ChannelSMS)
			} else {
				assert.Empty(t, f.sms.phones)
				assert.NotContains(t, output.Channels, ChannelSMS)
			}
		})
	}
}

func TestHandler_Execute_UnknownRecipient(t *testing.T) {
	f := setup(t, createTestConfig())
	f.mock.ExpectQuery("FROM users WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "phone"}))

	output, err := f.handler.Execute(context.Background(), &Input{UserID: "ghost", ImprovementScore: 10, Priority: PriorityHigh})
	require.NoError(t, err)

	assert.Equal(t, StatusDisabled, output.Status)
	assert.Empty(t, output.Channels)
	assert.Empty(t, f.email.sent)
	assert.Empty(t, f.sms.phones)
}

func TestHandler_Execute_ChannelsDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.EmailEnabled = false
	cfg.SMSEnabled = false
	f := setup(t, cfg)
	f.expectContact("u-3", "", "x@example.com", "")

	output, err := f.handler.Execute(context.Background(), &Input{UserID: "u-3", ImprovementScore: 50})
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, output.Status)
}

func TestHandler_Execute_SMSFailureKeepsEmail(t *testing.T) {
	f := setup(t, createTestConfig())
	f.sms.err = errors.New("throttled")
	f.expectContact("u-4", "Lee", "lee@example.com", "+15550102")

	output, err := f.handler.Execute(context.Background(), &Input{UserID: "u-4", ImprovementScore: 5})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	assert.Equal(t, []string{ChannelEmail}, output.Channels)
}

func TestTemplateHelpers(t *testing.T) {
	assert.Equal(t, "a  c", renderTemplate("a {{b}} c", map[string]interface{}{}))
	assert.Equal(t, "score 7", renderTemplate("score {{n}}", map[string]interface{}{"n": 7}))
	assert.Equal(t, "recently", elapsedPhrase("Unknown"))
	assert.Equal(t, "within the last day", elapsedPhrase("Less than a day"))
	assert.Equal(t, "3 months ago", elapsedPhrase("3 months"))
	assert.Equal(t, "coaching", followupLabel("journal"))
	assert.Equal(t, "<html><body><p>a &lt;b&gt;</p></body></html>", htmlBody("a <b>\n\n"))
}

// ==========================
// Job Lifecycle Tests
// ==========================

func TestHandler_Handle_CompletesJob(t *testing.T) {
	f := setup(t, createTestConfig())
	f.expectContact("u-5", "Ari", "ari@example.com", "")
	client := camundatest.NewJobClient()

	f.handler.Handle(client, camundatest.NewJob(t, 30, TaskType, map[string]interface{}{
		"userId":             "u-5",
		"followupType":       "pillar",
		"improvementScore":   64,
		"diagnosisCreatedAt": "2026-06-01T08:00:00Z",
	}))

	completed := client.Completed(t)
	require.Len(t, completed, 1)
	assert.Equal(t, StatusSent, completed[0]["status"])
	assert.Contains(t, f.email.sent[0].TextBody, "2 weeks ago")
}

func TestHandler_Handle_EmailFailureRetries(t *testing.T) {
	f := setup(t, createTestConfig())
	f.email.err = errors.New("MessageRejected: address not verified")
	f.expectContact("u-6", "Kai", "kai@example.com", "")
	client := camundatest.NewJobClient()

	f.handler.Handle(client, camundatest.NewJob(t, 31, TaskType, map[string]interface{}{
		"userId":           "u-6",
		"improvementScore": 40,
	}))

	failed := client.Failed(t)
	require.Len(t, failed, 1)
	assert.Equal(t, "NOTIFICATION_SEND_FAILED", failed[0].Variables["errorCode"])
	assert.Equal(t, int32(2), failed[0].Retries)
}

func TestHandler_Handle_ScoreOutOfRangeThrows(t *testing.T) {
	f := setup(t, createTestConfig())
	client := camundatest.NewJobClient()

	f.handler.Handle(client, camundatest.RawJob(32, TaskType, `{"userId":"u-7","improvementScore":140}`))

	thrown := client.Thrown(t)
	require.Len(t, thrown, 1)
	assert.Equal(t, "INVALID_INPUT", thrown[0].ErrorCode)
}
