// internal/stages/extract-documents/handler.go
package extractdocuments

import (
	"context"
	"errors"
	"fmt"

	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/providers"
)

const (
	StageName = "extract-documents"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

type Handler struct {
	config     *Config
	extraction providers.ExtractionProvider
	logger     logger.Logger
}

func NewHandler(config *Config, extraction providers.ExtractionProvider, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		extraction: extraction,
		logger:     log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// execute never fails the run on a provider error: each failed document is
// recorded and extraction continues with whatever is readable. An empty
// result set is still valid input to validation.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	extracted := &models.ExtractedFields{
		Values: make(map[string]models.FieldValue),
	}
	var stageErrors []string

	// Declared fields are trusted input and win over any extraction.
	for field, value := range input.Profile.DeclaredFields {
		extracted.Values[field] = models.FieldValue{
			Value:      value,
			Source:     "declared",
			Confidence: 1.0,
		}
	}

	for _, doc := range input.Profile.Documents {
		if h.extraction == nil {
			break
		}
		candidates, err := h.extraction.Extract(ctx, doc)
		if err != nil {
			stageErrors = append(stageErrors, err.Error())
			h.logger.Warn("document extraction failed", map[string]interface{}{
				"documentId": doc.ID,
				"kind":       doc.Kind,
				"error":      err.Error(),
			})
			continue
		}
		for _, c := range candidates {
			if c.Confidence < h.config.MinConfidence {
				continue
			}
			extracted.Candidates = append(extracted.Candidates, c)
		}
	}

	h.resolveCandidates(extracted)

	h.logger.Info("extraction completed", map[string]interface{}{
		"applicantId":    input.Profile.ApplicantID,
		"documentCount":  len(input.Profile.Documents),
		"fieldCount":     len(extracted.Values),
		"candidateCount": len(extracted.Candidates),
		"errorCount":     len(stageErrors),
	})

	return &Output{Extracted: extracted, Errors: stageErrors}, nil
}

// resolveCandidates merges candidates into the value map. Declared values are
// never overwritten; among extracted candidates for a field the highest
// confidence wins, earliest document on a tie.
func (h *Handler) resolveCandidates(extracted *models.ExtractedFields) {
	for _, c := range extracted.Candidates {
		existing, present := extracted.Values[c.Field]
		if present {
			if existing.Source == "declared" {
				continue
			}
			if existing.Confidence >= c.Confidence {
				continue
			}
		}
		extracted.Values[c.Field] = models.FieldValue{
			Value:      c.Value,
			Source:     "extracted",
			DocumentID: c.DocumentID,
			Confidence: c.Confidence,
		}
	}
}

// DescribeProvenance renders where each resolved field came from, for audit logs.
func DescribeProvenance(extracted *models.ExtractedFields, field string) string {
	fv, ok := extracted.Get(field)
	if !ok {
		return fmt.Sprintf("%s: absent", field)
	}
	if fv.Source == "declared" {
		return fmt.Sprintf("%s: declared by applicant", field)
	}
	return fmt.Sprintf("%s: extracted from %s (confidence %.2f)", field, fv.DocumentID, fv.Confidence)
}
