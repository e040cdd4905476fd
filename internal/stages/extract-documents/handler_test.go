// internal/stages/extract-documents/handler_test.go
package extractdocuments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/providers"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		MinConfidence: 0.2,
		Timeout:       10 * time.Second,
	}
}

// Create a test logger that implements your logger.Logger interface
type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (t *testLogger) With(fields map[string]interface{}) logger.Logger {
	return t
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

// fakeExtraction returns canned candidates per document ID and an error for
// documents listed in failures.
type fakeExtraction struct {
	candidates map[string][]models.FieldCandidate
	failures   map[string]error
	calls      []string
}

func (f *fakeExtraction) Extract(_ context.Context, doc models.DocumentRef) ([]models.FieldCandidate, error) {
	f.calls = append(f.calls, doc.ID)
	if err, failed := f.failures[doc.ID]; failed {
		return nil, err
	}
	return f.candidates[doc.ID], nil
}

var _ providers.ExtractionProvider = (*fakeExtraction)(nil)

func createTestInput(documents ...models.DocumentRef) *Input {
	return &Input{
		Profile: models.ApplicantProfile{
			ApplicantID: "app-1",
			Documents:   documents,
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ResolvesCandidates(t *testing.T) {
	extraction := &fakeExtraction{
		candidates: map[string][]models.FieldCandidate{
			"doc-bank": {
				{Field: models.FieldMonthlyIncome, Value: 8000.0, DocumentID: "doc-bank", Confidence: 0.9},
				{Field: models.FieldTotalAssets, Value: 50000.0, DocumentID: "doc-bank", Confidence: 0.8},
			},
		},
	}
	handler := NewHandler(createTestConfig(), extraction, newTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput(
		models.DocumentRef{ID: "doc-bank", Kind: "bank_statement"},
	))

	assert.NoError(t, err)
	assert.Empty(t, output.Errors)

	income, ok := output.Extracted.Get(models.FieldMonthlyIncome)
	assert.True(t, ok)
	assert.Equal(t, 8000.0, income.Value)
	assert.Equal(t, "extracted", income.Source)
	assert.Equal(t, "doc-bank", income.DocumentID)
	assert.Equal(t, 0.9, income.Confidence)

	_, ok = output.Extracted.Get(models.FieldTotalAssets)
	assert.True(t, ok)
}

func TestHandler_Execute_DeclaredFieldsWin(t *testing.T) {
	extraction := &fakeExtraction{
		candidates: map[string][]models.FieldCandidate{
			"doc-bank": {
				{Field: models.FieldMonthlyIncome, Value: 12000.0, DocumentID: "doc-bank", Confidence: 0.95},
			},
		},
	}
	handler := NewHandler(createTestConfig(), extraction, newTestLogger(t))

	input := createTestInput(models.DocumentRef{ID: "doc-bank", Kind: "bank_statement"})
	input.Profile.DeclaredFields = map[string]interface{}{
		models.FieldMonthlyIncome: 8000.0,
	}

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	income, ok := output.Extracted.Get(models.FieldMonthlyIncome)
	assert.True(t, ok)
	assert.Equal(t, 8000.0, income.Value)
	assert.Equal(t, "declared", income.Source)
	assert.Equal(t, 1.0, income.Confidence)
	// The losing candidate is still recorded for cross-document checks.
	assert.Len(t, output.Extracted.Candidates, 1)
}

func TestHandler_Execute_HighestConfidenceWins(t *testing.T) {
	extraction := &fakeExtraction{
		candidates: map[string][]models.FieldCandidate{
			"doc-payslip": {
				{Field: models.FieldMonthlyIncome, Value: 7000.0, DocumentID: "doc-payslip", Confidence: 0.6},
			},
			"doc-bank": {
				{Field: models.FieldMonthlyIncome, Value: 8000.0, DocumentID: "doc-bank", Confidence: 0.9},
			},
		},
	}
	handler := NewHandler(createTestConfig(), extraction, newTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput(
		models.DocumentRef{ID: "doc-payslip", Kind: "resume"},
		models.DocumentRef{ID: "doc-bank", Kind: "bank_statement"},
	))

	assert.NoError(t, err)
	income, _ := output.Extracted.Get(models.FieldMonthlyIncome)
	assert.Equal(t, 8000.0, income.Value)
	assert.Equal(t, "doc-bank", income.DocumentID)
}

func TestHandler_Execute_EarliestDocumentWinsOnTie(t *testing.T) {
	extraction := &fakeExtraction{
		candidates: map[string][]models.FieldCandidate{
			"doc-first": {
				{Field: models.FieldFamilySize, Value: 4, DocumentID: "doc-first", Confidence: 0.7},
			},
			"doc-second": {
				{Field: models.FieldFamilySize, Value: 5, DocumentID: "doc-second", Confidence: 0.7},
			},
		},
	}
	handler := NewHandler(createTestConfig(), extraction, newTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput(
		models.DocumentRef{ID: "doc-first", Kind: "emirates_id"},
		models.DocumentRef{ID: "doc-second", Kind: "resume"},
	))

	assert.NoError(t, err)
	size, _ := output.Extracted.Get(models.FieldFamilySize)
	assert.Equal(t, "doc-first", size.DocumentID)
	assert.Equal(t, 4, size.Value)
}

func TestHandler_Execute_FiltersLowConfidence(t *testing.T) {
	extraction := &fakeExtraction{
		candidates: map[string][]models.FieldCandidate{
			"doc-bank": {
				{Field: models.FieldMonthlyIncome, Value: 8000.0, DocumentID: "doc-bank", Confidence: 0.1},
			},
		},
	}
	handler := NewHandler(createTestConfig(), extraction, newTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput(
		models.DocumentRef{ID: "doc-bank", Kind: "bank_statement"},
	))

	assert.NoError(t, err)
	assert.Empty(t, output.Extracted.Candidates)
	_, ok := output.Extracted.Get(models.FieldMonthlyIncome)
	assert.False(t, ok)
}

func TestHandler_Execute_ProviderFailureIsRecorded(t *testing.T) {
	extraction := &fakeExtraction{
		candidates: map[string][]models.FieldCandidate{
			"doc-bank": {
				{Field: models.FieldMonthlyIncome, Value: 8000.0, DocumentID: "doc-bank", Confidence: 0.9},
			},
		},
		failures: map[string]error{
			"doc-scan": errors.New("document unreadable: corrupt PDF"),
		},
	}
	handler := NewHandler(createTestConfig(), extraction, newTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput(
		models.DocumentRef{ID: "doc-scan", Kind: "assets_excel"},
		models.DocumentRef{ID: "doc-bank", Kind: "bank_statement"},
	))

	// A failed document degrades the run, never fails it.
	assert.NoError(t, err)
	assert.Len(t, output.Errors, 1)
	assert.Contains(t, output.Errors[0], "unreadable")
	// The readable document was still processed.
	assert.Equal(t, []string{"doc-scan", "doc-bank"}, extraction.calls)
	_, ok := output.Extracted.Get(models.FieldMonthlyIncome)
	assert.True(t, ok)
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_EdgeCases(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), &fakeExtraction{}, newTestLogger(t))

		output, err := handler.Execute(context.Background(), nil)

		assert.Error(t, err)
		assert.Equal(t, ErrNilInput, err)
		assert.Nil(t, output)
	})

	t.Run("no documents", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), &fakeExtraction{}, newTestLogger(t))

		input := createTestInput()
		input.Profile.DeclaredFields = map[string]interface{}{
			models.FieldFamilySize: 3,
		}

		output, err := handler.Execute(context.Background(), input)

		assert.NoError(t, err)
		assert.Len(t, output.Extracted.Values, 1)
	})

	t.Run("nil provider keeps declared fields", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), nil, newTestLogger(t))

		input := createTestInput(models.DocumentRef{ID: "doc-bank", Kind: "bank_statement"})
		input.Profile.DeclaredFields = map[string]interface{}{
			models.FieldMonthlyIncome: 8000.0,
		}

		output, err := handler.Execute(context.Background(), input)

		assert.NoError(t, err)
		assert.Empty(t, output.Errors)
		_, ok := output.Extracted.Get(models.FieldMonthlyIncome)
		assert.True(t, ok)
	})
}

func TestDescribeProvenance(t *testing.T) {
	extracted := &models.ExtractedFields{
		Values: map[string]models.FieldValue{
			models.FieldMonthlyIncome: {Value: 8000.0, Source: "extracted", DocumentID: "doc-bank", Confidence: 0.9},
			models.FieldFamilySize:    {Value: 3, Source: "declared", Confidence: 1.0},
		},
	}

	assert.Equal(t, "monthly_income: extracted from doc-bank (confidence 0.90)",
		DescribeProvenance(extracted, models.FieldMonthlyIncome))
	assert.Equal(t, "family_size: declared by applicant",
		DescribeProvenance(extracted, models.FieldFamilySize))
	assert.Equal(t, "credit_score: absent",
		DescribeProvenance(extracted, models.FieldCreditScore))
}

func TestLoadConfig_ThreadsConfidenceFloor(t *testing.T) {
	appCfg := &config.Config{}
	appCfg.Providers.Extraction.MinConfidence = 0.45

	cfg := LoadConfig(appCfg)

	assert.Equal(t, 0.45, cfg.MinConfidence)
}
