// internal/stages/extract-documents/config.go
package extractdocuments

import (
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
)

type Config struct {
	MinConfidence float64
	Timeout       time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, StageName)
	return &Config{
		MinConfidence: cfg.Providers.Extraction.MinConfidence,
		Timeout:       config.GetDuration(stage.Timeout),
	}
}
