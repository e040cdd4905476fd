// internal/stages/extract-documents/models.go
package extractdocuments

import "github.com/SarthakGarg19/social-support-ai/internal/models"

type Input struct {
	Profile models.ApplicantProfile `json:"profile"`
}

type Output struct {
	Extracted *models.ExtractedFields `json:"extracted"`
	Errors    []string                `json:"errors,omitempty"`
}
