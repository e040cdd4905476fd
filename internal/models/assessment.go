// internal/models/assessment.go
package models

import "time"

// Stage identifies where an assessment run sits in its lifecycle.
type Stage string

const (
	StagePending      Stage = "PENDING"
	StageExtracting   Stage = "EXTRACTING"
	StageValidating   Stage = "VALIDATING"
	StageEligibility  Stage = "ELIGIBILITY"
	StageRecommending Stage = "RECOMMENDING"
	StageFinalized    Stage = "FINALIZED"

	StageRejectedInsufficientData Stage = "REJECTED_INSUFFICIENT_DATA"
	StageCancelled                Stage = "CANCELLED"
	StageAuditFailure             Stage = "AUDIT_FAILURE"
)

// IsTerminal reports whether a run in this stage can never progress further.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageFinalized, StageRejectedInsufficientData, StageCancelled, StageAuditFailure:
		return true
	}
	return false
}

// Decision is the eligibility outcome for an applicant.
type Decision string

const (
	DecisionApproved    Decision = "APPROVED"
	DecisionUnderReview Decision = "UNDER_REVIEW"
	DecisionDeclined    Decision = "DECLINED"
)

// Confidence qualifies how certain the engine is about a decision.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Priority is the tier assigned to a ranked program recommendation.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Canonical applicant field names used by extraction, validation, and scoring.
const (
	FieldMonthlyIncome    = "monthly_income"
	FieldEmploymentStatus = "employment_status"
	FieldCreditScore      = "credit_score"
	FieldTotalAssets      = "total_assets"
	FieldTotalLiabilities = "total_liabilities"
	FieldFamilySize       = "family_size"
)

// DocumentRef points at a submitted applicant document.
type DocumentRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // bank_statement, emirates_id, resume, assets_excel, credit_report
	URI  string `json:"uri"`
}

// ApplicantProfile is the input to an assessment run.
type ApplicantProfile struct {
	ApplicantID    string                 `json:"applicantId"`
	Name           string                 `json:"name"`
	Email          string                 `json:"email,omitempty"`
	Phone          string                 `json:"phone,omitempty"`
	Documents      []DocumentRef          `json:"documents"`
	DeclaredFields map[string]interface{} `json:"declaredFields,omitempty"`
}

// FieldValue is a single resolved applicant field with provenance.
type FieldValue struct {
	Value      interface{} `json:"value"`
	Source     string      `json:"source"` // declared | extracted
	DocumentID string      `json:"documentId,omitempty"`
	Confidence float64     `json:"confidence"`
}

// FieldCandidate is a raw extraction candidate before conflict resolution.
type FieldCandidate struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
	DocumentID string      `json:"documentId"`
	Confidence float64     `json:"confidence"`
}

// ExtractedFields holds the merged applicant fields plus the candidates they
// were resolved from.
type ExtractedFields struct {
	Values     map[string]FieldValue `json:"values"`
	Candidates []FieldCandidate      `json:"candidates,omitempty"`
}

// Get returns a resolved field value if present.
func (e *ExtractedFields) Get(field string) (FieldValue, bool) {
	if e == nil || e.Values == nil {
		return FieldValue{}, false
	}
	v, ok := e.Values[field]
	return v, ok
}

// ValidationReport is the output of the validation stage. Issues block;
// warnings never affect IsValid. Both keep insertion order.
type ValidationReport struct {
	IsValid           bool     `json:"isValid"`
	CompletenessRatio float64  `json:"completenessRatio"`
	MissingFields     []string `json:"missingFields,omitempty"`
	Issues            []string `json:"issues,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

// FactorScore is the contribution of one scoring factor.
type FactorScore struct {
	Factor    string  `json:"factor"`
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"maxPoints"`
	Detail    string  `json:"detail,omitempty"`
}

// EligibilityAssessment is the output of the scoring stage.
type EligibilityAssessment struct {
	Score      float64       `json:"score"`
	Decision   Decision      `json:"decision"`
	Confidence Confidence    `json:"confidence"`
	Breakdown  []FactorScore `json:"breakdown"`
	Reasoning  string        `json:"reasoning"`
}

// Recommendation is one ranked enablement program.
type Recommendation struct {
	ProgramID string   `json:"programId"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Relevance float64  `json:"relevance"`
	Priority  Priority `json:"priority"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// RecommendationSet is the output of the recommendation stage. Items are
// sorted descending by relevance with catalog order as the tie-break.
type RecommendationSet struct {
	Items     []Recommendation `json:"items"`
	Advice    string           `json:"advice,omitempty"`
	NextSteps []string         `json:"nextSteps,omitempty"`
}

// WorkflowState is the full mutable state of one assessment run. Every stage
// handler receives it and returns an updated copy; errors accumulate and are
// never dropped.
type WorkflowState struct {
	RunID           string                 `json:"runId"`
	Stage           Stage                  `json:"stage"`
	Profile         ApplicantProfile       `json:"profile"`
	Extracted       *ExtractedFields       `json:"extracted,omitempty"`
	Validation      *ValidationReport      `json:"validation,omitempty"`
	Assessment      *EligibilityAssessment `json:"assessment,omitempty"`
	Recommendations *RecommendationSet     `json:"recommendations,omitempty"`
	Errors          []string               `json:"errors,omitempty"`
	Terminal        bool                   `json:"terminal"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// AddErrors appends error descriptions without ever removing existing ones.
func (s *WorkflowState) AddErrors(errs ...string) {
	s.Errors = append(s.Errors, errs...)
}

// HasErrors reports whether any stage degraded during the run.
func (s *WorkflowState) HasErrors() bool {
	return len(s.Errors) > 0
}

// CheckpointRecord is one append-only snapshot of a run taken after a stage
// transition. Seq increases monotonically within a run.
type CheckpointRecord struct {
	ID        string        `json:"id"`
	RunID     string        `json:"runId"`
	Seq       int           `json:"seq"`
	Stage     Stage         `json:"stage"`
	State     WorkflowState `json:"state"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AssessmentRecord is the durable record persisted when a run finalizes. Its
// field names are part of the storage contract and use snake_case.
type AssessmentRecord struct {
	ApplicantID      string           `json:"applicant_id"`
	EligibilityScore float64          `json:"eligibility_score"`
	Decision         Decision         `json:"decision"`
	Confidence       Confidence       `json:"confidence"`
	Breakdown        []FactorScore    `json:"breakdown"`
	Reasoning        string           `json:"reasoning"`
	Recommendations  []Recommendation `json:"recommendations"`
	CompletedAt      time.Time        `json:"completed_at"`
	HasErrors        bool             `json:"has_errors"`
	Errors           []string         `json:"errors"`
}
