// internal/workflow/orchestrator.go
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SarthakGarg19/social-support-ai/internal/checkpoint"
	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
	commonerrors "github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/common/metrics"
	"github.com/SarthakGarg19/social-support-ai/internal/common/observability"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	checkeligibility "github.com/SarthakGarg19/social-support-ai/internal/stages/check-eligibility"
	extractdocuments "github.com/SarthakGarg19/social-support-ai/internal/stages/extract-documents"
	finalizedecision "github.com/SarthakGarg19/social-support-ai/internal/stages/finalize-decision"
	generaterecommendations "github.com/SarthakGarg19/social-support-ai/internal/stages/generate-recommendations"
	validatedata "github.com/SarthakGarg19/social-support-ai/internal/stages/validate-data"
)

// Handlers bundles the five stage handlers the orchestrator drives.
type Handlers struct {
	Extract     *extractdocuments.Handler
	Validate    *validatedata.Handler
	Eligibility *checkeligibility.Handler
	Recommend   *generaterecommendations.Handler
	Finalize    *finalizedecision.Handler
}

// Orchestrator sequences the assessment pipeline for one applicant at a time
// per run. Stage execution within a run is strictly sequential; runs execute
// concurrently up to the configured limit, each owning its WorkflowState
// exclusively.
type Orchestrator struct {
	cfg          *config.Config
	handlers     Handlers
	checkpointer *checkpoint.Checkpointer
	errorHandler *commonerrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger

	sem chan struct{}

	mu        sync.Mutex
	cancelled map[string]bool
}

func NewOrchestrator(cfg *config.Config, handlers Handlers, cp *checkpoint.Checkpointer, obs *observability.Observability, log logger.Logger) *Orchestrator {
	maxRuns := cfg.Workflow.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 10
	}
	return &Orchestrator{
		cfg:          cfg,
		handlers:     handlers,
		checkpointer: cp,
		errorHandler: commonerrors.NewErrorHandler(log),
		obs:          obs,
		logger:       log.With(map[string]interface{}{"component": "orchestrator"}),
		sem:          make(chan struct{}, maxRuns),
		cancelled:    make(map[string]bool),
	}
}

// Cancel marks a run for cancellation. The in-flight stage runs to completion
// or timeout; the run then terminates as CANCELLED at the next boundary.
func (o *Orchestrator) Cancel(runID string) {
	o.mu.Lock()
	o.cancelled[runID] = true
	o.mu.Unlock()
	o.logger.Info("run cancellation requested", map[string]interface{}{"runId": runID})
}

func (o *Orchestrator) isCancelled(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[runID]
}

func (o *Orchestrator) clearCancellation(runID string) {
	o.mu.Lock()
	delete(o.cancelled, runID)
	o.mu.Unlock()
}

// Run drives one applicant through the full pipeline and returns the terminal
// state. The returned error is non-nil only when the run could not be given a
// durable terminal record (audit failure).
func (o *Orchestrator) Run(ctx context.Context, profile models.ApplicantProfile) (*models.WorkflowState, error) {
	return o.RunWithID(ctx, uuid.New().String(), profile)
}

// Submit starts a run in the background and returns its ID immediately. The
// run's progress is observable through the checkpoint store.
func (o *Orchestrator) Submit(profile models.ApplicantProfile) string {
	runID := uuid.New().String()
	go func() {
		if _, err := o.RunWithID(context.Background(), runID, profile); err != nil {
			o.logger.Error("background run ended in audit failure", map[string]interface{}{
				"runId": runID,
				"error": err.Error(),
			})
		}
	}()
	return runID
}

// RunWithID is Run with a caller-chosen run ID.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string, profile models.ApplicantProfile) (*models.WorkflowState, error) {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-o.sem }()

	now := time.Now().UTC()
	state := &models.WorkflowState{
		RunID:     runID,
		Stage:     models.StagePending,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()
	defer o.clearCancellation(state.RunID)
	start := time.Now()

	o.logger.Info("run started", map[string]interface{}{
		"runId":       state.RunID,
		"applicantId": profile.ApplicantID,
	})

	if err := o.transition(ctx, state, models.StagePending); err != nil {
		return o.auditFailure(ctx, state, err)
	}

	finalState, err := o.drive(ctx, state)

	elapsed := time.Since(start)
	terminal := "unknown"
	decision := "none"
	if finalState != nil {
		terminal = string(finalState.Stage)
		if finalState.Assessment != nil {
			decision = string(finalState.Assessment.Decision)
		}
	}
	metrics.RunsFinalized.WithLabelValues(terminal, decision).Inc()
	if o.obs != nil {
		o.obs.RecordRunProcessed(ctx, terminal)
		o.obs.RecordRunDuration(ctx, elapsed, terminal)
	}

	o.logger.Info("run finished", map[string]interface{}{
		"runId":      state.RunID,
		"stage":      terminal,
		"decision":   decision,
		"durationMs": elapsed.Milliseconds(),
		"errorCount": len(state.Errors),
	})

	return finalState, err
}

// Resume reloads the latest checkpoint of an interrupted run and drives it
// forward from the recorded stage.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*models.WorkflowState, error) {
	state, err := o.checkpointer.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state.Terminal {
		return nil, commonerrors.NewRunAlreadyFinalError(runID, string(state.Stage))
	}

	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-o.sem }()
	defer o.clearCancellation(runID)

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	o.logger.Info("run resumed", map[string]interface{}{
		"runId": runID,
		"stage": string(state.Stage),
	})

	return o.drive(ctx, state)
}

// drive executes stages from the state's current position until a terminal
// stage is reached. Checkpoint failure at any transition ends the run in
// AUDIT_FAILURE.
func (o *Orchestrator) drive(ctx context.Context, state *models.WorkflowState) (*models.WorkflowState, error) {
	for !state.Terminal {
		if o.isCancelled(state.RunID) {
			if err := o.terminate(ctx, state, models.StageCancelled); err != nil {
				return o.auditFailure(ctx, state, err)
			}
			return state, nil
		}

		var err error
		switch state.Stage {
		case models.StagePending:
			err = o.transition(ctx, state, models.StageExtracting)
		case models.StageExtracting:
			err = o.runExtraction(ctx, state)
		case models.StageValidating:
			err = o.runValidation(ctx, state)
		case models.StageEligibility:
			err = o.runEligibility(ctx, state)
		case models.StageRecommending:
			err = o.runRecommendation(ctx, state)
		default:
			err = commonerrors.NewStageTransitionError(string(state.Stage), "")
		}
		if err != nil {
			return o.auditFailure(ctx, state, err)
		}
	}
	return state, nil
}

// runExtraction executes the extraction stage; provider failures degrade the
// stage and are appended to the state, never aborting the run.
func (o *Orchestrator) runExtraction(ctx context.Context, state *models.WorkflowState) error {
	stageCtx, cancel := o.stageContext(ctx, extractdocuments.StageName)
	defer cancel()

	start := time.Now()
	output, err := o.handlers.Extract.Execute(stageCtx, &extractdocuments.Input{Profile: state.Profile})
	if err != nil {
		return o.recordStageFailure(state, extractdocuments.StageName, err)
	}
	state.Extracted = output.Extracted
	state.AddErrors(output.Errors...)
	o.recordStageSuccess(extractdocuments.StageName, start)

	return o.transition(ctx, state, models.StageValidating)
}

// runValidation executes the completeness gate and branches: a report that is
// valid, or complete enough, proceeds to eligibility; anything else ends the
// run as REJECTED_INSUFFICIENT_DATA. Rejection is a designed outcome and adds
// nothing to the error list.
func (o *Orchestrator) runValidation(ctx context.Context, state *models.WorkflowState) error {
	stageCtx, cancel := o.stageContext(ctx, validatedata.StageName)
	defer cancel()

	start := time.Now()
	output, err := o.handlers.Validate.Execute(stageCtx, &validatedata.Input{Extracted: state.Extracted})
	if err != nil {
		return o.recordStageFailure(state, validatedata.StageName, err)
	}
	state.Validation = output.Report
	o.recordStageSuccess(validatedata.StageName, start)

	if !output.CanProceed {
		o.logger.Info("run rejected for insufficient data", map[string]interface{}{
			"runId":             state.RunID,
			"completenessRatio": output.Report.CompletenessRatio,
			"missingFields":     output.Report.MissingFields,
		})
		return o.terminate(ctx, state, models.StageRejectedInsufficientData)
	}

	return o.transition(ctx, state, models.StageEligibility)
}

func (o *Orchestrator) runEligibility(ctx context.Context, state *models.WorkflowState) error {
	stageCtx, cancel := o.stageContext(ctx, checkeligibility.StageName)
	defer cancel()

	start := time.Now()
	output, err := o.handlers.Eligibility.Execute(stageCtx, &checkeligibility.Input{
		Profile:   state.Profile,
		Extracted: state.Extracted,
	})
	if err != nil {
		return o.recordStageFailure(state, checkeligibility.StageName, err)
	}
	state.Assessment = output.Assessment
	state.AddErrors(output.Errors...)
	o.recordStageSuccess(checkeligibility.StageName, start)

	return o.transition(ctx, state, models.StageRecommending)
}

// runRecommendation ranks programs and then finalizes: the durable assessment
// record is written as part of entering FINALIZED.
func (o *Orchestrator) runRecommendation(ctx context.Context, state *models.WorkflowState) error {
	stageCtx, cancel := o.stageContext(ctx, generaterecommendations.StageName)
	defer cancel()

	start := time.Now()
	output, err := o.handlers.Recommend.Execute(stageCtx, &generaterecommendations.Input{
		Profile:    state.Profile,
		Extracted:  state.Extracted,
		Assessment: state.Assessment,
	})
	if err != nil {
		return o.recordStageFailure(state, generaterecommendations.StageName, err)
	}
	state.Recommendations = output.Recommendations
	state.AddErrors(output.Errors...)
	o.recordStageSuccess(generaterecommendations.StageName, start)

	if o.isCancelled(state.RunID) {
		return o.terminate(ctx, state, models.StageCancelled)
	}

	if err := o.runFinalization(ctx, state); err != nil {
		return err
	}

	return o.terminate(ctx, state, models.StageFinalized)
}

// runFinalization persists the assessment record, retrying per the error
// policy. Exhausted retries are fatal: without a durable record the run
// cannot be considered finalized.
func (o *Orchestrator) runFinalization(ctx context.Context, state *models.WorkflowState) error {
	stageCtx, cancel := o.stageContext(ctx, finalizedecision.StageName)
	defer cancel()

	start := time.Now()
	var output *finalizedecision.Output
	var err error
	for attempt := 0; ; attempt++ {
		output, err = o.handlers.Finalize.Execute(stageCtx, &finalizedecision.Input{State: state})
		if err == nil {
			break
		}
		if !o.errorHandler.ShouldRetry(err, attempt) {
			return o.recordStageFailure(state, finalizedecision.StageName, err)
		}
		o.logger.Warn("finalization attempt failed, retrying", map[string]interface{}{
			"runId":   state.RunID,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	state.AddErrors(output.Errors...)
	o.recordStageSuccess(finalizedecision.StageName, start)
	return nil
}

// transition moves the state to the next stage and checkpoints the move. The
// next stage must not begin until the checkpoint is durably recorded.
func (o *Orchestrator) transition(ctx context.Context, state *models.WorkflowState, next models.Stage) error {
	state.Stage = next
	state.UpdatedAt = time.Now().UTC()
	if _, err := o.checkpointer.Save(ctx, state); err != nil {
		return commonerrors.NewCheckpointWriteFailedError(state.RunID, err)
	}
	return nil
}

// terminate marks the state terminal at the given stage and writes the final
// checkpoint.
func (o *Orchestrator) terminate(ctx context.Context, state *models.WorkflowState, stage models.Stage) error {
	state.Stage = stage
	state.Terminal = true
	state.UpdatedAt = time.Now().UTC()
	if _, err := o.checkpointer.Save(ctx, state); err != nil {
		state.Terminal = false
		return commonerrors.NewCheckpointWriteFailedError(state.RunID, err)
	}
	return nil
}

// auditFailure is the path of last resort: the run's audit trail could not be
// maintained, so the run ends in AUDIT_FAILURE. The final checkpoint is
// attempted once, best-effort.
func (o *Orchestrator) auditFailure(ctx context.Context, state *models.WorkflowState, cause error) (*models.WorkflowState, error) {
	stageErr := o.errorHandler.HandleStageError(state.RunID, string(state.Stage), cause)
	metrics.StagesFailed.WithLabelValues(string(state.Stage), stageErr.Code).Inc()

	state.AddErrors(cause.Error())
	state.Stage = models.StageAuditFailure
	state.Terminal = true
	state.UpdatedAt = time.Now().UTC()
	if _, err := o.checkpointer.Save(ctx, state); err != nil {
		o.logger.Error("final audit checkpoint could not be written", map[string]interface{}{
			"runId": state.RunID,
			"error": err.Error(),
		})
	}
	return state, cause
}

func (o *Orchestrator) recordStageFailure(state *models.WorkflowState, stage string, err error) error {
	stageErr := o.errorHandler.HandleStageError(state.RunID, stage, err)
	metrics.StagesFailed.WithLabelValues(stage, stageErr.Code).Inc()
	return err
}

func (o *Orchestrator) recordStageSuccess(stage string, start time.Time) {
	metrics.StagesCompleted.WithLabelValues(stage).Inc()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// stageContext bounds one stage execution. A stage without its own timeout
// falls back to the workflow-level default.
func (o *Orchestrator) stageContext(ctx context.Context, stageName string) (context.Context, context.CancelFunc) {
	stage := config.GetStageConfig(o.cfg, stageName)
	timeout := config.GetDuration(stage.Timeout)
	if timeout <= 0 {
		timeout = config.GetDuration(o.cfg.Workflow.StageTimeout)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// ReplayState reconstructs a run's final state purely from its checkpoint
// history, without touching the cache. Used for audit verification.
func (o *Orchestrator) ReplayState(ctx context.Context, runID string) (*models.WorkflowState, error) {
	history, err := o.checkpointer.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, commonerrors.NewRunNotFoundError(runID)
	}
	last := history[len(history)-1].State
	return &last, nil
}
