// internal/stages/validate-data/config.go
package validatedata

import (
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
)

type Config struct {
	RequiredFields        []string
	CompletenessThreshold float64
	MinProceedRatio       float64
	IncomeSanityCeiling   float64
	CreditScoreFloor      int
	CreditScoreCeiling    int
	MismatchTolerance     float64 // relative difference between documents
	Timeout               time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, StageName)
	return &Config{
		RequiredFields:        cfg.Validation.RequiredFields,
		CompletenessThreshold: cfg.Validation.CompletenessThreshold,
		MinProceedRatio:       cfg.Validation.MinProceedRatio,
		IncomeSanityCeiling:   cfg.Validation.IncomeSanityCeiling,
		CreditScoreFloor:      cfg.Scoring.Credit.ScoreFloor,
		CreditScoreCeiling:    cfg.Scoring.Credit.ScoreCeiling,
		MismatchTolerance:     cfg.Validation.MismatchTolerance,
		Timeout:               config.GetDuration(stage.Timeout),
	}
}
