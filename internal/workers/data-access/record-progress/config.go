// internal/workers/data-access/record-progress/config.go
package recordprogress

import (
	"time"

	"coaching-workers/internal/common/config"
)

type Config struct {
	Index   string
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig, es config.ElasticsearchConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Index: es.ProgressIndex, Timeout: timeout}
}
