// internal/stages/check-eligibility/config.go
package checkeligibility

import (
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
)

type Config struct {
	Scoring config.ScoringConfig
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, StageName)
	return &Config{
		Scoring: cfg.Scoring,
		Timeout: config.GetDuration(stage.Timeout),
	}
}
