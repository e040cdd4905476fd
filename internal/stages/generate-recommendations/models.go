// internal/stages/generate-recommendations/models.go
package generaterecommendations

import (
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

type Input struct {
	Profile    models.ApplicantProfile      `json:"profile"`
	Extracted  *models.ExtractedFields      `json:"extracted"`
	Assessment *models.EligibilityAssessment `json:"assessment"`
}

type Output struct {
	Recommendations *models.RecommendationSet `json:"recommendations"`
	Errors          []string                  `json:"errors,omitempty"`
}
