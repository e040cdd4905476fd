// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes stage errors and decides how the orchestrator
// should react to them.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleStageError converts any error raised by a stage handler into a
// StageError, logs it, and returns it. Fatal stage errors abort the run;
// non-fatal ones are recorded on the workflow state.
func (h *ErrorHandler) HandleStageError(runID, stage string, err error) *StageError {
	stdErr := h.normalizeError(err)
	stageErr := ConvertToStageError(stdErr)
	h.logError(runID, stage, stdErr, stageErr)
	return stageErr
}

// ShouldRetry reports whether a failed stage attempt should be retried and
// how many attempts remain for the given error.
func (h *ErrorHandler) ShouldRetry(err error, attempt int) bool {
	stdErr := h.normalizeError(err)
	if !stdErr.Retryable {
		return false
	}
	return attempt < GetRetryCount(stdErr.Code)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(runID, stage string, stdErr *StandardError, stageErr *StageError) {
	fields := map[string]interface{}{
		"runId":         runID,
		"stage":         stage,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if stageErr.Fatal {
		h.logger.Error("Stage failed", fields)
		return
	}
	h.logger.Warn("Stage degraded", fields)
}
