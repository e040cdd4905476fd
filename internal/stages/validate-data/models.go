// internal/stages/validate-data/models.go
package validatedata

import "github.com/SarthakGarg19/social-support-ai/internal/models"

type Input struct {
	Extracted *models.ExtractedFields `json:"extracted"`
}

type Output struct {
	Report *models.ValidationReport `json:"report"`
	// CanProceed holds the completeness-gate outcome: the report is valid or
	// the completeness ratio is at or above the configured minimum.
	CanProceed bool `json:"canProceed"`
}
