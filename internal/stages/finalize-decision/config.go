// internal/stages/finalize-decision/config.go
package finalizedecision

import (
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
)

type Config struct {
	EmailEnabled         bool
	FromEmail            string
	SMSEnabled           bool
	SMSPriorityThreshold string
	AWSRegion            string
	Timeout              time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, StageName)
	return &Config{
		EmailEnabled:         cfg.Notifications.Email.Enabled,
		FromEmail:            cfg.Notifications.Email.FromEmail,
		SMSEnabled:           cfg.Notifications.SMS.Enabled,
		SMSPriorityThreshold: cfg.Notifications.SMS.PriorityThreshold,
		AWSRegion:            cfg.Notifications.AWS.Region,
		Timeout:              config.GetDuration(stage.Timeout),
	}
}
