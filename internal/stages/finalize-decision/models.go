// internal/stages/finalize-decision/models.go
package finalizedecision

import (
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

type Input struct {
	State *models.WorkflowState `json:"state"`
}

type Output struct {
	Record           *models.AssessmentRecord `json:"record"`
	NotificationSent bool                     `json:"notificationSent"`
	Errors           []string                 `json:"errors,omitempty"`
}
