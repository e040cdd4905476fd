// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SarthakGarg19/social-support-ai/internal/checkpoint"
	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/workflow"
)

// ==========================
// Test Helper Functions
// ==========================

// memoryStore is an append-only in-memory checkpoint store.
type memoryStore struct {
	mu      sync.Mutex
	records map[string][]models.CheckpointRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string][]models.CheckpointRecord)}
}

func (m *memoryStore) Append(_ context.Context, rec *models.CheckpointRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.RunID] = append(m.records[rec.RunID], *rec)
	return nil
}

func (m *memoryStore) Latest(_ context.Context, runID string) (*models.CheckpointRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[runID]
	if len(recs) == 0 {
		return nil, stderrors.New("not found")
	}
	rec := recs[len(recs)-1]
	return &rec, nil
}

func (m *memoryStore) History(_ context.Context, runID string) ([]models.CheckpointRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CheckpointRecord(nil), m.records[runID]...), nil
}

// newTestServer wires the API against an in-memory checkpoint store. The
// orchestrator has no stage handlers; tests that need run state seed the
// store directly.
func newTestServer(t *testing.T) (*Server, *checkpoint.Checkpointer, *http.ServeMux) {
	log := logger.NewNoOpLogger()
	cp := checkpoint.NewCheckpointer(newMemoryStore(), nil, 1, time.Millisecond, log)

	cfg := &config.Config{
		Workflow: config.WorkflowConfig{MaxConcurrentRuns: 2},
	}
	orch := workflow.NewOrchestrator(cfg, workflow.Handlers{}, cp, nil, log)

	server := NewServer(orch, cp, log)
	mux := http.NewServeMux()
	server.Register(mux)
	return server, cp, mux
}

func seedRun(t *testing.T, cp *checkpoint.Checkpointer, runID string, stage models.Stage, terminal bool) {
	state := &models.WorkflowState{
		RunID:     runID,
		Stage:     stage,
		Profile:   models.ApplicantProfile{ApplicantID: "app-1"},
		Terminal:  terminal,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := cp.Save(context.Background(), state)
	assert.NoError(t, err)
}

// ==========================
// Route Tests
// ==========================

func TestServer_GetAssessment(t *testing.T) {
	_, cp, mux := newTestServer(t)
	seedRun(t, cp, "run-1", models.StageValidating, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/run-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var state models.WorkflowState
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, models.StageValidating, state.Stage)
}

func TestServer_GetAssessment_NotFound(t *testing.T) {
	_, _, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/missing-run", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_GetHistory(t *testing.T) {
	_, cp, mux := newTestServer(t)
	seedRun(t, cp, "run-1", models.StagePending, false)
	seedRun(t, cp, "run-1", models.StageExtracting, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/run-1/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var history []models.CheckpointRecord
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Seq)
	assert.Equal(t, 2, history[1].Seq)
}

func TestServer_GetHistory_NotFound(t *testing.T) {
	_, _, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/missing-run/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SubmitAssessment_Validation(t *testing.T) {
	_, _, mux := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"malformed JSON", "{not json", http.StatusBadRequest},
		{"missing applicant ID", `{"profile":{"name":"x"}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_CancelAssessment(t *testing.T) {
	_, cp, mux := newTestServer(t)
	seedRun(t, cp, "run-1", models.StageEligibility, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/run-1/cancel", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["runId"])
}

func TestServer_CancelAssessment_AlreadyTerminal(t *testing.T) {
	_, cp, mux := newTestServer(t)
	seedRun(t, cp, "run-1", models.StageFinalized, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/run-1/cancel", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
