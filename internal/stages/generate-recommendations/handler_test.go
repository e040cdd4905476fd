// internal/stages/generate-recommendations/handler_test.go
package generaterecommendations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/providers"
	"github.com/SarthakGarg19/social-support-ai/pkg/registry"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Weights: config.RecommendationWeights{
			Employment: 40,
			Income:     25,
			Decision:   20,
			Family:     15,
		},
		HighTierFloor: 75,
		LowTierCeil:   40,
		MinRelevance:  25,
		MaxPrograms:   3,
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

func buildFields(values map[string]interface{}) *models.ExtractedFields {
	fields := &models.ExtractedFields{Values: make(map[string]models.FieldValue)}
	for name, value := range values {
		fields.Values[name] = models.FieldValue{Value: value, Source: "declared", Confidence: 1.0}
	}
	return fields
}

func createTestInput(decision models.Decision, values map[string]interface{}) *Input {
	return &Input{
		Profile:   models.ApplicantProfile{ApplicantID: "app-1"},
		Extracted: buildFields(values),
		Assessment: &models.EligibilityAssessment{
			Score:      80,
			Decision:   decision,
			Confidence: models.ConfidenceHigh,
		},
	}
}

type failingNarrator struct{}

func (failingNarrator) Narrate(context.Context, providers.NarrationRequest) (string, error) {
	return "", errors.New("narration unavailable")
}

type stubNarrator struct {
	text string
}

func (s stubNarrator) Narrate(context.Context, providers.NarrationRequest) (string, error) {
	return s.text, nil
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ApprovedUnemployedApplicant(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), nil, newTestLogger(t))

	input := createTestInput(models.DecisionApproved, map[string]interface{}{
		models.FieldEmploymentStatus: "unemployed",
		models.FieldMonthlyIncome:    8000.0,
		models.FieldFamilySize:       4,
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.Empty(t, output.Errors)
	// Four programs score 100; the cap keeps the first three in catalog order.
	assert.Len(t, output.Recommendations.Items, 3)
	assert.Equal(t, "upskilling", output.Recommendations.Items[0].ProgramID)
	assert.Equal(t, "job_matching", output.Recommendations.Items[1].ProgramID)
	assert.Equal(t, "career_counseling", output.Recommendations.Items[2].ProgramID)
	for _, item := range output.Recommendations.Items {
		assert.Equal(t, 100.0, item.Relevance)
		assert.Equal(t, models.PriorityHigh, item.Priority)
		assert.NotEmpty(t, item.Reasoning)
	}
	assert.NotEmpty(t, output.Recommendations.Advice)
	// Next steps come from the top-ranked program.
	assert.Equal(t, []string{
		"Complete the skills self-assessment",
		"Select a training track with a program advisor",
		"Enroll in the next available cohort",
	}, output.Recommendations.NextSteps)
}

func TestHandler_Execute_DecisionGating(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), nil, newTestLogger(t))

	input := createTestInput(models.DecisionDeclined, map[string]interface{}{
		models.FieldEmploymentStatus: "employed",
		models.FieldMonthlyIncome:    16000.0,
		models.FieldFamilySize:       1,
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	// Only job_matching and career_counseling target declined applicants.
	assert.Len(t, output.Recommendations.Items, 2)
	assert.Equal(t, "career_counseling", output.Recommendations.Items[0].ProgramID)
	assert.Equal(t, 100.0, output.Recommendations.Items[0].Relevance)
	assert.Equal(t, models.PriorityHigh, output.Recommendations.Items[0].Priority)
	assert.Equal(t, "job_matching", output.Recommendations.Items[1].ProgramID)
	assert.Equal(t, 60.0, output.Recommendations.Items[1].Relevance)
	assert.Equal(t, models.PriorityMedium, output.Recommendations.Items[1].Priority)
}

func TestHandler_Execute_MinRelevanceFloor(t *testing.T) {
	cfg := createTestConfig()
	cfg.MinRelevance = 70
	handler := NewHandler(cfg, registry.DefaultRegistry(), nil, newTestLogger(t))

	input := createTestInput(models.DecisionDeclined, map[string]interface{}{
		models.FieldEmploymentStatus: "employed",
		models.FieldMonthlyIncome:    16000.0,
		models.FieldFamilySize:       1,
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	// job_matching scores 60 and falls below the floor.
	assert.Len(t, output.Recommendations.Items, 1)
	assert.Equal(t, "career_counseling", output.Recommendations.Items[0].ProgramID)
}

func TestHandler_Execute_CatalogOrderBreaksTies(t *testing.T) {
	catalog := &registry.ProgramRegistry{
		Programs: []registry.Program{
			{ID: "first", DisplayName: "First", TargetDecisions: []string{"APPROVED"}},
			{ID: "second", DisplayName: "Second", TargetDecisions: []string{"APPROVED"}},
			{ID: "third", DisplayName: "Third", TargetDecisions: []string{"APPROVED"}},
		},
	}
	handler := NewHandler(createTestConfig(), catalog, nil, newTestLogger(t))

	input := createTestInput(models.DecisionApproved, map[string]interface{}{
		models.FieldEmploymentStatus: "unemployed",
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.Len(t, output.Recommendations.Items, 3)
	assert.Equal(t, "first", output.Recommendations.Items[0].ProgramID)
	assert.Equal(t, "second", output.Recommendations.Items[1].ProgramID)
	assert.Equal(t, "third", output.Recommendations.Items[2].ProgramID)
}

func TestHandler_Execute_MaxProgramsCap(t *testing.T) {
	cfg := createTestConfig()
	cfg.MaxPrograms = 1
	handler := NewHandler(cfg, registry.DefaultRegistry(), nil, newTestLogger(t))

	input := createTestInput(models.DecisionApproved, map[string]interface{}{
		models.FieldEmploymentStatus: "unemployed",
		models.FieldMonthlyIncome:    8000.0,
		models.FieldFamilySize:       4,
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.Len(t, output.Recommendations.Items, 1)
	assert.Equal(t, "upskilling", output.Recommendations.Items[0].ProgramID)
}

// ==========================
// Unit Tests
// ==========================

func TestHandler_Tier(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), nil, newTestLogger(t))

	tests := []struct {
		relevance float64
		expected  models.Priority
	}{
		{100, models.PriorityHigh},
		{75, models.PriorityHigh},
		{74.9, models.PriorityMedium},
		{40, models.PriorityMedium},
		{39.9, models.PriorityLow},
		{0, models.PriorityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, handler.tier(tt.relevance))
	}
}

func TestHandler_ScoreProgram_IncomeBand(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), nil, newTestLogger(t))

	program := registry.Program{
		ID:              "banded",
		TargetDecisions: []string{"APPROVED"},
		IncomeBandUpper: 10000,
	}

	within, _ := handler.scoreProgram(program, models.DecisionApproved, "unemployed", 9000, 1)
	above, _ := handler.scoreProgram(program, models.DecisionApproved, "unemployed", 11000, 1)

	// The income weight is the only difference between the two applicants.
	assert.Equal(t, 25.0, within-above)
}

// ==========================
// Advice and Fallback Tests
// ==========================

func TestHandler_Execute_NarratorAdviceUsed(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(),
		stubNarrator{text: "Enroll in vocational training first."}, newTestLogger(t))

	input := createTestInput(models.DecisionApproved, map[string]interface{}{
		models.FieldEmploymentStatus: "unemployed",
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, "Enroll in vocational training first.", output.Recommendations.Advice)
	assert.Empty(t, output.Errors)
}

func TestHandler_Execute_NarratorFailureFallsBack(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), failingNarrator{}, newTestLogger(t))

	input := createTestInput(models.DecisionApproved, map[string]interface{}{
		models.FieldEmploymentStatus: "unemployed",
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	// Fallback advice is templated from the top-ranked program.
	assert.NotEmpty(t, output.Recommendations.Advice)
	assert.Contains(t, output.Recommendations.Advice, "Vocational Upskilling")
	// The provider failure is recorded without affecting the ranking.
	assert.Len(t, output.Errors, 1)
	assert.Len(t, output.Recommendations.Items, 3)
}

func TestHandler_Execute_NoMatchingPrograms(t *testing.T) {
	catalog := &registry.ProgramRegistry{
		Programs: []registry.Program{
			{ID: "only", DisplayName: "Only", TargetDecisions: []string{"APPROVED"}},
		},
	}
	handler := NewHandler(createTestConfig(), catalog, nil, newTestLogger(t))

	input := createTestInput(models.DecisionDeclined, map[string]interface{}{
		models.FieldEmploymentStatus: "employed",
	})

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.Empty(t, output.Recommendations.Items)
	assert.Contains(t, output.Recommendations.Advice, "case officer")
	assert.Equal(t, []string{"Contact a case officer to review available support options."},
		output.Recommendations.NextSteps)
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_EdgeCases(t *testing.T) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), nil, newTestLogger(t))

	t.Run("nil input", func(t *testing.T) {
		output, err := handler.Execute(context.Background(), nil)

		assert.Equal(t, ErrNilInput, err)
		assert.Nil(t, output)
	})

	t.Run("nil assessment", func(t *testing.T) {
		output, err := handler.Execute(context.Background(), &Input{
			Profile: models.ApplicantProfile{ApplicantID: "app-1"},
		})

		assert.Equal(t, ErrNilAssessment, err)
		assert.Nil(t, output)
	})

	t.Run("nil extracted fields uses neutral defaults", func(t *testing.T) {
		input := &Input{
			Profile: models.ApplicantProfile{ApplicantID: "app-1"},
			Assessment: &models.EligibilityAssessment{
				Decision:   models.DecisionApproved,
				Confidence: models.ConfidenceMedium,
			},
		}

		output, err := handler.Execute(context.Background(), input)

		assert.NoError(t, err)
		assert.NotNil(t, output.Recommendations)
	})
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	handler := NewHandler(createTestConfig(), registry.DefaultRegistry(), nil, newTestLogger(&testing.T{}))
	input := createTestInput(models.DecisionApproved, map[string]interface{}{
		models.FieldEmploymentStatus: "unemployed",
		models.FieldMonthlyIncome:    8000.0,
		models.FieldFamilySize:       4,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = handler.Execute(context.Background(), input)
	}
}
