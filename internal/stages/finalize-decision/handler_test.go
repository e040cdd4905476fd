// internal/stages/finalize-decision/handler_test.go
package finalizedecision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"

	commonerrors "github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		EmailEnabled:         true,
		FromEmail:            "noreply@support.gov",
		SMSEnabled:           true,
		SMSPriorityThreshold: "HIGH",
		Timeout:              10 * time.Second,
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

// Mock SES service
type mockSESService struct {
	sendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         int
}

func (m *mockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls++
	if m.sendEmailFunc != nil {
		return m.sendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

// Mock SNS service
type mockSNSService struct {
	publishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       int
}

func (m *mockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls++
	if m.publishFunc != nil {
		return m.publishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func createTestState() *models.WorkflowState {
	return &models.WorkflowState{
		RunID: "run-1",
		Stage: models.StageRecommending,
		Profile: models.ApplicantProfile{
			ApplicantID: "app-1",
			Email:       "applicant@example.com",
			Phone:       "+971500000000",
		},
		Assessment: &models.EligibilityAssessment{
			Score:      82.5,
			Decision:   models.DecisionApproved,
			Confidence: models.ConfidenceHigh,
			Breakdown: []models.FactorScore{
				{Factor: "income", Points: 30, MaxPoints: 30},
				{Factor: "employment", Points: 25, MaxPoints: 25},
			},
			Reasoning: "Strong need indicators across all factors.",
		},
		Recommendations: &models.RecommendationSet{
			Items: []models.Recommendation{
				{ProgramID: "upskilling", Name: "Vocational Upskilling", Relevance: 100, Priority: models.PriorityHigh},
			},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func newTestHandler(t *testing.T, config *Config, sesClient SESService, snsClient SNSService) (*Handler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	handler, err := NewHandler(config, db, sesClient, snsClient, newTestLogger(t))
	assert.NoError(t, err)

	return handler, mock, func() { db.Close() }
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_PersistsAndNotifies(t *testing.T) {
	sesClient := &mockSESService{}
	snsClient := &mockSNSService{}
	handler, mock, cleanup := newTestHandler(t, createTestConfig(), sesClient, snsClient)
	defer cleanup()

	mock.ExpectExec("INSERT INTO assessments").
		WithArgs(sqlmock.AnyArg(), "app-1", 82.5, "APPROVED", "HIGH", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	output, err := handler.Execute(context.Background(), &Input{State: createTestState()})

	assert.NoError(t, err)
	assert.NotNil(t, output.Record)
	assert.Equal(t, "app-1", output.Record.ApplicantID)
	assert.Equal(t, models.DecisionApproved, output.Record.Decision)
	assert.True(t, output.NotificationSent)
	assert.Empty(t, output.Errors)
	assert.Equal(t, 1, sesClient.calls)
	// High-priority recommendation triggers the SMS channel too.
	assert.Equal(t, 1, snsClient.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InsertFailure(t *testing.T) {
	handler, mock, cleanup := newTestHandler(t, createTestConfig(), &mockSESService{}, &mockSNSService{})
	defer cleanup()

	mock.ExpectExec("INSERT INTO assessments").
		WillReturnError(errors.New("connection reset"))

	output, err := handler.Execute(context.Background(), &Input{State: createTestState()})

	assert.Error(t, err)
	assert.Nil(t, output)

	var stdErr *commonerrors.StandardError
	assert.True(t, errors.As(err, &stdErr))
	assert.Equal(t, commonerrors.ErrCodeAssessmentInsertFailed, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SchemaViolation(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, createTestConfig(), nil, nil)
	defer cleanup()

	state := createTestState()
	state.Profile.ApplicantID = "" // violates the minLength constraint

	output, err := handler.Execute(context.Background(), &Input{State: state})

	assert.Error(t, err)
	assert.Nil(t, output)

	var stdErr *commonerrors.StandardError
	assert.True(t, errors.As(err, &stdErr))
	assert.Equal(t, commonerrors.ErrCodeRecordSchemaViolation, stdErr.Code)
}

func TestHandler_Execute_NotificationFailureIsNonFatal(t *testing.T) {
	sesClient := &mockSESService{
		sendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("SES throttled")
		},
	}
	handler, mock, cleanup := newTestHandler(t, createTestConfig(), sesClient, &mockSNSService{})
	defer cleanup()

	mock.ExpectExec("INSERT INTO assessments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	output, err := handler.Execute(context.Background(), &Input{State: createTestState()})

	// The record stays persisted; only the output reports the failure.
	assert.NoError(t, err)
	assert.NotNil(t, output.Record)
	assert.False(t, output.NotificationSent)
	assert.Len(t, output.Errors, 1)
	assert.Contains(t, output.Errors[0], "email")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InsufficientDataRecord(t *testing.T) {
	handler, mock, cleanup := newTestHandler(t, createTestConfig(), nil, nil)
	defer cleanup()

	mock.ExpectExec("INSERT INTO assessments").
		WithArgs(sqlmock.AnyArg(), "app-2", 0.0, "DECLINED", "LOW", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	state := &models.WorkflowState{
		RunID:   "run-2",
		Stage:   models.StageRejectedInsufficientData,
		Profile: models.ApplicantProfile{ApplicantID: "app-2"},
	}

	output, err := handler.Execute(context.Background(), &Input{State: state})

	assert.NoError(t, err)
	assert.Equal(t, 0.0, output.Record.EligibilityScore)
	assert.Equal(t, models.DecisionDeclined, output.Record.Decision)
	assert.Equal(t, models.ConfidenceLow, output.Record.Confidence)
	assert.Contains(t, output.Record.Reasoning, "insufficient data")
	assert.Empty(t, output.Record.Breakdown)
	assert.False(t, output.Record.HasErrors)
	assert.False(t, output.NotificationSent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Notification Tests
// ==========================

func TestHandler_Notify_SMSOnlyForHighPriority(t *testing.T) {
	sesClient := &mockSESService{}
	snsClient := &mockSNSService{}

	config := createTestConfig()
	handler, mock, cleanup := newTestHandler(t, config, sesClient, snsClient)
	defer cleanup()

	mock.ExpectExec("INSERT INTO assessments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	state := createTestState()
	state.Assessment.Decision = models.DecisionUnderReview
	state.Recommendations.Items[0].Priority = models.PriorityMedium

	output, err := handler.Execute(context.Background(), &Input{State: state})

	assert.NoError(t, err)
	assert.True(t, output.NotificationSent)
	assert.Equal(t, 1, sesClient.calls)
	// Medium-priority outcome skips SMS.
	assert.Equal(t, 0, snsClient.calls)
}

func TestHandler_Notify_ChannelsDisabled(t *testing.T) {
	sesClient := &mockSESService{}
	snsClient := &mockSNSService{}

	config := createTestConfig()
	config.EmailEnabled = false
	config.SMSEnabled = false
	handler, mock, cleanup := newTestHandler(t, config, sesClient, snsClient)
	defer cleanup()

	mock.ExpectExec("INSERT INTO assessments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	output, err := handler.Execute(context.Background(), &Input{State: createTestState()})

	assert.NoError(t, err)
	assert.False(t, output.NotificationSent)
	assert.Equal(t, 0, sesClient.calls)
	assert.Equal(t, 0, snsClient.calls)
}

func TestHandler_RenderNotification(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, createTestConfig(), nil, nil)
	defer cleanup()

	record := buildRecord(createTestState())
	subject, body := handler.renderNotification(record)

	assert.Contains(t, subject, "approved")
	assert.Contains(t, body, "82.5")
	assert.Contains(t, body, "Vocational Upskilling")
	assert.Contains(t, body, "high priority")
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_EdgeCases(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, createTestConfig(), nil, nil)
	defer cleanup()

	t.Run("nil input", func(t *testing.T) {
		output, err := handler.Execute(context.Background(), nil)

		assert.Equal(t, ErrNilInput, err)
		assert.Nil(t, output)
	})

	t.Run("nil state", func(t *testing.T) {
		output, err := handler.Execute(context.Background(), &Input{})

		assert.Equal(t, ErrNilState, err)
		assert.Nil(t, output)
	})
}

func TestBuildRecord_CarriesRunErrors(t *testing.T) {
	state := createTestState()
	state.AddErrors("narration unavailable", "document unreadable: doc-scan")

	record := buildRecord(state)

	assert.True(t, record.HasErrors)
	assert.Equal(t, []string{"narration unavailable", "document unreadable: doc-scan"}, record.Errors)
}
