// internal/workers/followup/generate-diagnosis/config.go
package generatediagnosis

import (
	"time"

	"coaching-workers/internal/common/config"
)

type Config struct {
	CompletionURL string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	MaxTokens     int
	Temperature   float64
}

func LoadConfig(wcfg config.WorkerConfig, apis config.APIsConfig) *Config {
	timeout := config.GetDuration(apis.Completion.Timeout)
	if jobTimeout := config.GetDuration(wcfg.Timeout); jobTimeout > timeout {
		timeout = jobTimeout
	}
	return &Config{
		CompletionURL: apis.Completion.BaseURL + "/v1/completions",
		APIKey:        apis.Completion.APIKey,
		Model:         apis.Completion.Model,
		Timeout:       timeout,
		MaxRetries:    max(apis.Completion.MaxRetries, 0),
		MaxTokens:     1500,
		Temperature:   0.2,
	}
}
