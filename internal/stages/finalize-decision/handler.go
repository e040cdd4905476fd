// internal/stages/finalize-decision/handler.go
package finalizedecision

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	commonerrors "github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

const (
	StageName = "finalize-decision"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
	ErrNilState = errors.New("input state cannot be nil")
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

const insertAssessmentSQL = `
	INSERT INTO assessments (id, applicant_id, eligibility_score, decision, confidence, record, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

type Handler struct {
	config    *Config
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
	schema    *gojsonschema.Schema
}

// NewHandler builds the finalization stage. sesClient and snsClient may be nil
// when the corresponding channel is disabled.
func NewHandler(config *Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Handler{
		config:    config,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"stage": StageName}),
		schema:    schema,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}
	if input.State == nil {
		return nil, ErrNilState
	}

	record := buildRecord(input.State)

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal assessment record: %w", err)
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, commonerrors.NewRecordSchemaViolationError(err.Error())
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, commonerrors.NewRecordSchemaViolationError(strings.Join(details, "; "))
	}

	if err := h.insertRecord(ctx, record, payload); err != nil {
		return nil, commonerrors.NewAssessmentInsertFailedError(err)
	}

	output := &Output{Record: record}

	// Notification failures never undo a persisted decision.
	sent, notifyErr := h.notify(ctx, input.State, record)
	output.NotificationSent = sent
	if notifyErr != nil {
		output.Errors = append(output.Errors, notifyErr.Error())
	}

	h.logger.Info("assessment finalized", map[string]interface{}{
		"applicantId": record.ApplicantID,
		"decision":    string(record.Decision),
		"score":       record.EligibilityScore,
		"hasErrors":   record.HasErrors,
	})

	return output, nil
}

// buildRecord flattens the workflow state into the externally consumed record
// shape. Runs that ended without an assessment (insufficient data) persist a
// zero score with a DECLINED decision.
func buildRecord(state *models.WorkflowState) *models.AssessmentRecord {
	// The schema types every list as an array, so nil slices must marshal as
	// [] rather than null.
	record := &models.AssessmentRecord{
		ApplicantID:     state.Profile.ApplicantID,
		Breakdown:       []models.FactorScore{},
		Recommendations: []models.Recommendation{},
		Errors:          []string{},
		CompletedAt:     time.Now().UTC(),
		HasErrors:       state.HasErrors(),
	}
	if len(state.Errors) > 0 {
		record.Errors = state.Errors
	}

	if state.Assessment != nil {
		record.EligibilityScore = state.Assessment.Score
		record.Decision = state.Assessment.Decision
		record.Confidence = state.Assessment.Confidence
		record.Reasoning = state.Assessment.Reasoning
		if len(state.Assessment.Breakdown) > 0 {
			record.Breakdown = state.Assessment.Breakdown
		}
	} else {
		record.Decision = models.DecisionDeclined
		record.Confidence = models.ConfidenceLow
		record.Reasoning = "Application could not be assessed: insufficient data."
	}

	if state.Recommendations != nil && len(state.Recommendations.Items) > 0 {
		record.Recommendations = state.Recommendations.Items
	}

	return record
}

func (h *Handler) insertRecord(ctx context.Context, record *models.AssessmentRecord, payload []byte) error {
	_, err := h.db.ExecContext(ctx, insertAssessmentSQL,
		uuid.New().String(),
		record.ApplicantID,
		record.EligibilityScore,
		string(record.Decision),
		string(record.Confidence),
		payload,
		record.CompletedAt,
	)
	return err
}

func (h *Handler) notify(ctx context.Context, state *models.WorkflowState, record *models.AssessmentRecord) (bool, error) {
	subject, body := h.renderNotification(record)
	sent := false

	if h.config.EmailEnabled && h.sesClient != nil && state.Profile.Email != "" {
		if err := h.sendEmail(ctx, state.Profile.Email, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"applicantId": record.ApplicantID,
				"error":       err,
			})
			return sent, commonerrors.NewNotificationSendFailedError("email", err)
		}
		sent = true
	}

	// SMS goes out only for high-priority outcomes.
	if h.config.SMSEnabled && h.snsClient != nil && state.Profile.Phone != "" && h.isHighPriority(record) {
		if err := h.sendSMS(ctx, state.Profile.Phone, body); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"applicantId": record.ApplicantID,
				"error":       err,
			})
			return sent, commonerrors.NewNotificationSendFailedError("sms", err)
		}
		sent = true
	}

	return sent, nil
}

func (h *Handler) isHighPriority(record *models.AssessmentRecord) bool {
	threshold := h.config.SMSPriorityThreshold
	if threshold == "" {
		threshold = string(models.PriorityHigh)
	}
	for _, rec := range record.Recommendations {
		if string(rec.Priority) == threshold {
			return true
		}
	}
	return record.Decision == models.DecisionApproved && threshold == string(models.PriorityHigh)
}

func (h *Handler) renderNotification(record *models.AssessmentRecord) (string, string) {
	subject := fmt.Sprintf("Your social support application: %s", decisionPhrase(record.Decision))

	var b strings.Builder
	fmt.Fprintf(&b, "Dear applicant,\n\nYour social support application has been assessed: %s.\n", decisionPhrase(record.Decision))
	fmt.Fprintf(&b, "Eligibility score: %.1f of 100.\n", record.EligibilityScore)
	if len(record.Recommendations) > 0 {
		b.WriteString("\nRecommended programs:\n")
		for _, rec := range record.Recommendations {
			fmt.Fprintf(&b, "- %s (%s priority)\n", rec.Name, strings.ToLower(string(rec.Priority)))
		}
	}
	b.WriteString("\nA case officer will contact you with next steps.")
	return subject, b.String()
}

func decisionPhrase(decision models.Decision) string {
	switch decision {
	case models.DecisionApproved:
		return "approved"
	case models.DecisionUnderReview:
		return "under review"
	default:
		return "declined"
	}
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}
