// internal/workers/communication/send-progress-report/config.go
package sendprogressreport

import (
	"time"

	"coaching-workers/internal/common/config"
)

type Config struct {
	EmailEnabled      bool
	SMSEnabled        bool
	FromEmail         string
	SMSScoreThreshold int
	Timeout           time.Duration
}

func LoadConfig(wcfg config.WorkerConfig, notifications config.NotificationConfig, scoring config.ScoringConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		EmailEnabled:      notifications.Email.Enabled,
		SMSEnabled:        notifications.SMS.Enabled,
		FromEmail:         notifications.Email.FromEmail,
		SMSScoreThreshold: scoring.SMSScoreThreshold,
		Timeout:           timeout,
	}
}
