// internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/checkpoint"
	commonerrors "github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/workflow"
)

// Server exposes assessment runs over HTTP. Submission is asynchronous: the
// client gets a run ID back and polls the run's state.
type Server struct {
	orchestrator *workflow.Orchestrator
	checkpointer *checkpoint.Checkpointer
	logger       logger.Logger
}

func NewServer(orch *workflow.Orchestrator, cp *checkpoint.Checkpointer, log logger.Logger) *Server {
	return &Server{
		orchestrator: orch,
		checkpointer: cp,
		logger:       log.With(map[string]interface{}{"component": "api"}),
	}
}

// Register mounts the assessment routes on the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/assessments", s.submitAssessment)
	mux.HandleFunc("GET /api/v1/assessments/{runId}", s.getAssessment)
	mux.HandleFunc("GET /api/v1/assessments/{runId}/history", s.getHistory)
	mux.HandleFunc("POST /api/v1/assessments/{runId}/cancel", s.cancelAssessment)
}

type submitRequest struct {
	Profile models.ApplicantProfile `json:"profile"`
}

type submitResponse struct {
	RunID       string `json:"runId"`
	SubmittedAt string `json:"submittedAt"`
}

func (s *Server) submitAssessment(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Profile.ApplicantID == "" {
		s.writeError(w, http.StatusBadRequest, "profile.applicantId is required")
		return
	}

	runID := s.orchestrator.Submit(req.Profile)
	s.logger.Info("assessment submitted", map[string]interface{}{
		"runId":       runID,
		"applicantId": req.Profile.ApplicantID,
	})

	s.writeJSON(w, http.StatusAccepted, submitResponse{
		RunID:       runID,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	state, err := s.checkpointer.Load(r.Context(), runID)
	if err != nil {
		s.writeStorageError(w, runID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	history, err := s.checkpointer.History(r.Context(), runID)
	if err != nil {
		s.writeStorageError(w, runID, err)
		return
	}
	if len(history) == 0 {
		s.writeError(w, http.StatusNotFound, "run not found: "+runID)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) cancelAssessment(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	state, err := s.checkpointer.Load(r.Context(), runID)
	if err != nil {
		s.writeStorageError(w, runID, err)
		return
	}
	if state.Terminal {
		s.writeError(w, http.StatusConflict, "run already terminal in stage "+string(state.Stage))
		return
	}

	s.orchestrator.Cancel(runID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"runId":  runID,
		"status": "cancellation requested",
	})
}

func (s *Server) writeStorageError(w http.ResponseWriter, runID string, err error) {
	if stdErr, ok := err.(*commonerrors.StandardError); ok && stdErr.Code == commonerrors.ErrCodeCheckpointNotFound {
		s.writeError(w, http.StatusNotFound, "run not found: "+runID)
		return
	}
	s.logger.Error("storage lookup failed", map[string]interface{}{
		"runId": runID,
		"error": err.Error(),
	})
	s.writeError(w, http.StatusInternalServerError, "storage unavailable")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
