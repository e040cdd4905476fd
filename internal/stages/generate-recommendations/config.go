// internal/stages/generate-recommendations/config.go
package generaterecommendations

import (
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
)

type Config struct {
	Weights       config.RecommendationWeights
	HighTierFloor float64
	LowTierCeil   float64
	MinRelevance  float64
	MaxPrograms   int
	Timeout       time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, StageName)
	return &Config{
		Weights:       cfg.Recommendation.Weights,
		HighTierFloor: cfg.Recommendation.HighTierFloor,
		LowTierCeil:   cfg.Recommendation.LowTierCeil,
		MinRelevance:  cfg.Recommendation.MinRelevance,
		MaxPrograms:   cfg.Recommendation.MaxPrograms,
		Timeout:       config.GetDuration(stage.Timeout),
	}
}
