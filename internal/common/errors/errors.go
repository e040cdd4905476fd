// Package errors provides standardized error handling for the assessment workflow.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeDocumentUnreadable ErrorCode = "DOCUMENT_UNREADABLE"

	ErrCodeValidationBlocking    ErrorCode = "VALIDATION_BLOCKING"
	ErrCodeInsufficientData      ErrorCode = "INSUFFICIENT_DATA"
	ErrCodeFieldParsingFailed    ErrorCode = "FIELD_PARSING_FAILED"
	ErrCodeRecordSchemaViolation ErrorCode = "RECORD_SCHEMA_VIOLATION"

	ErrCodeScoringConfigInvalid ErrorCode = "SCORING_CONFIG_INVALID"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeCheckpointWriteFailed    ErrorCode = "CHECKPOINT_WRITE_FAILED"
	ErrCodeCheckpointNotFound       ErrorCode = "CHECKPOINT_NOT_FOUND"
	ErrCodeAssessmentInsertFailed   ErrorCode = "ASSESSMENT_INSERT_FAILED"
	ErrCodeStateCacheUnavailable    ErrorCode = "STATE_CACHE_UNAVAILABLE"

	ErrCodeKnowledgeSearchFailed ErrorCode = "KNOWLEDGE_SEARCH_FAILED"
	ErrCodeKnowledgeSearchTimeout ErrorCode = "KNOWLEDGE_SEARCH_TIMEOUT"
	ErrCodeIndexNotFound          ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeNarrationTimeout ErrorCode = "NARRATION_TIMEOUT"
	ErrCodeNarrationFailed  ErrorCode = "NARRATION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeRunNotFound      ErrorCode = "RUN_NOT_FOUND"
	ErrCodeRunAlreadyFinal  ErrorCode = "RUN_ALREADY_FINAL"
	ErrCodeStageTransition  ErrorCode = "STAGE_TRANSITION_INVALID"
	ErrCodeRunCancelled     ErrorCode = "RUN_CANCELLED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Workflow Error Integration
// ==========================

// StageError represents an error surfaced to the workflow orchestrator. Fatal
// errors abort the run; non-fatal errors are accumulated on the state and the
// run continues in degraded mode.
type StageError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Fatal          bool                   `json:"fatal"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("StageError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for attaching to checkpoint metadata.
func (e *StageError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"fatal":        e.Fatal,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewExtractionFailedError creates a retryable extraction provider error.
func NewExtractionFailedError(documentRef string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Document extraction provider error",
		Details:   fmt.Sprintf("documentRef: %s, error: %s", documentRef, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTimeoutError creates a retryable extraction timeout error.
func NewExtractionTimeoutError(documentRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionTimeout,
		Message:   "Document extraction timeout",
		Details:   fmt.Sprintf("documentRef: %s", documentRef),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentUnreadableError creates a non-retryable unreadable document error.
func NewDocumentUnreadableError(documentRef, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentUnreadable,
		Message:   "Document could not be parsed",
		Details:   fmt.Sprintf("documentRef: %s, reason: %s", documentRef, reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationBlockingError creates a non-retryable blocking validation error.
func NewValidationBlockingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationBlocking,
		Message:   "Applicant data failed blocking validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientDataError creates a non-retryable completeness gate error.
func NewInsufficientDataError(completeness float64, missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientData,
		Message:   "Applicant data below completeness threshold",
		Details:   fmt.Sprintf("completeness: %.2f, missing: %s", completeness, strings.Join(missing, ", ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFieldParsingFailedError creates a non-retryable field coercion error.
func NewFieldParsingFailedError(field, raw string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFieldParsingFailed,
		Message:   "Extracted field could not be coerced to its declared type",
		Details:   fmt.Sprintf("field: %s, raw: %s", field, raw),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordSchemaViolationError creates a non-retryable record schema error.
func NewRecordSchemaViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordSchemaViolation,
		Message:   "Assessment record failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringConfigInvalidError creates a non-retryable scoring configuration error.
func NewScoringConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringConfigInvalid,
		Message:   "Scoring configuration is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCheckpointWriteFailedError creates a retryable checkpoint persistence error.
// If retries are exhausted the run must terminate in audit failure.
func NewCheckpointWriteFailedError(runID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckpointWriteFailed,
		Message:   "Checkpoint write failed",
		Details:   fmt.Sprintf("runId: %s, error: %s", runID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCheckpointNotFoundError creates a non-retryable missing checkpoint error.
func NewCheckpointNotFoundError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckpointNotFound,
		Message:   "No checkpoint found for run",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssessmentInsertFailedError creates a retryable assessment persistence error.
func NewAssessmentInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentInsertFailed,
		Message:   "Assessment record insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateCacheUnavailableError creates a retryable state cache error. The
// cache is best-effort so callers typically log and continue.
func NewStateCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStateCacheUnavailable,
		Message:   "Workflow state cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewKnowledgeSearchFailedError creates a retryable knowledge retrieval error.
func NewKnowledgeSearchFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeKnowledgeSearchFailed,
		Message:   "Knowledge base search error",
		Details:   fmt.Sprintf("query: %s, error: %s", query, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewKnowledgeSearchTimeoutError creates a non-retryable (returns empty) search timeout error.
func NewKnowledgeSearchTimeoutError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeKnowledgeSearchTimeout,
		Message:   "Knowledge base search timeout",
		Details:   fmt.Sprintf("query: %s", query),
		Retryable: false, // degrade to empty passages, don't retry
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Knowledge base index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNarrationTimeoutError creates a retryable narration timeout error.
func NewNarrationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNarrationTimeout,
		Message:   "Narration provider timeout",
		Details:   "narration call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNarrationFailedError creates a retryable narration provider error.
func NewNarrationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNarrationFailed,
		Message:   "Narration provider error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunNotFoundError creates a non-retryable missing run error.
func NewRunNotFoundError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunNotFound,
		Message:   "Assessment run not found",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunAlreadyFinalError creates a non-retryable terminal run error.
func NewRunAlreadyFinalError(runID, stage string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunAlreadyFinal,
		Message:   "Assessment run already reached a terminal stage",
		Details:   fmt.Sprintf("runId: %s, stage: %s", runID, stage),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStageTransitionError creates a non-retryable illegal transition error.
func NewStageTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageTransition,
		Message:   "Illegal workflow stage transition",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunCancelledError creates a non-retryable cancellation error.
func NewRunCancelledError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunCancelled,
		Message:   "Assessment run was cancelled",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      "CONFIGURATION_ERROR",
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion for the Orchestrator
// ==========================

// FatalCodes lists the error codes that abort a run instead of degrading it.
// Everything else is accumulated on workflow state and the run continues.
var FatalCodes = map[ErrorCode]bool{
	ErrCodeCheckpointWriteFailed:    true,
	ErrCodeDatabaseConnectionFailed: true,
	ErrCodeScoringConfigInvalid:     true,
	ErrCodeStageTransition:          true,
	ErrCodeRunAlreadyFinal:          true,
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCheckpointWriteFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeAssessmentInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeKnowledgeSearchFailed,
		ErrCodeNarrationFailed:
		return 3 // retryable technical errors

	case ErrCodeExtractionFailed,
		ErrCodeExtractionTimeout,
		ErrCodeStateCacheUnavailable:
		return 2 // partial retry for provider hiccups

	case ErrCodeNarrationTimeout:
		return 1

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToStageError converts a StandardError to a StageError for the orchestrator.
func ConvertToStageError(stdErr *StandardError) *StageError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &StageError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Fatal:     FatalCodes[stdErr.Code],
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsFatal reports whether an error should abort the run.
func IsFatal(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return FatalCodes[stdErr.Code]
	}
	if stageErr, ok := err.(*StageError); ok {
		return stageErr.Fatal
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "DOCUMENT"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "CHECKPOINT") || strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "ASSESSMENT") || strings.Contains(codeStr, "CACHE"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "KNOWLEDGE") || strings.Contains(codeStr, "INDEX"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "NARRATION"):
		return "NARRATION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INSUFFICIENT") || strings.Contains(codeStr, "PARSING") || strings.Contains(codeStr, "SCHEMA"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RUN") || strings.Contains(codeStr, "STAGE"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
