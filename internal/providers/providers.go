// internal/providers/providers.go
package providers

import (
	"context"

	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

// ExtractionProvider pulls structured field candidates out of an applicant
// document. Implementations must honor the context deadline.
type ExtractionProvider interface {
	Extract(ctx context.Context, doc models.DocumentRef) ([]models.FieldCandidate, error)
}

// NarrationRequest carries everything a narrator needs to phrase a decision.
type NarrationRequest struct {
	Profile    models.ApplicantProfile
	Assessment models.EligibilityAssessment
	Programs   []models.Recommendation
	Passages   []Passage
}

// NarrationProvider produces human-readable reasoning text. Failures are
// non-fatal; callers substitute deterministic fallback text.
type NarrationProvider interface {
	Narrate(ctx context.Context, req NarrationRequest) (string, error)
}

// Passage is one retrieved knowledge base snippet.
type Passage struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeProvider retrieves program and policy passages relevant to a query.
type KnowledgeProvider interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}
