// internal/stages/check-eligibility/models.go
package checkeligibility

import "github.com/SarthakGarg19/social-support-ai/internal/models"

type Input struct {
	Profile   models.ApplicantProfile `json:"profile"`
	Extracted *models.ExtractedFields `json:"extracted"`
}

type Output struct {
	Assessment *models.EligibilityAssessment `json:"assessment"`
	Errors     []string                      `json:"errors,omitempty"`
}
