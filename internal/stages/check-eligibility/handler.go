// internal/stages/check-eligibility/handler.go
package checkeligibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/providers"
)

const (
	StageName = "check-eligibility"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

type Handler struct {
	config    *Config
	narrator  providers.NarrationProvider
	retriever providers.KnowledgeProvider
	logger    logger.Logger
}

// NewHandler builds the scoring stage. The narrator and retriever may be nil;
// the stage then always uses the deterministic fallback explanation.
func NewHandler(config *Config, narrator providers.NarrationProvider, retriever providers.KnowledgeProvider, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		narrator:  narrator,
		retriever: retriever,
		logger:    log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	var stageErrors []string

	breakdown := []models.FactorScore{
		h.scoreIncome(input.Extracted),
		h.scoreEmployment(input.Extracted),
		h.scoreFamily(input.Extracted),
		h.scoreNeed(input.Extracted),
		h.scoreCredit(input.Extracted),
	}

	// The breakdown keeps raw contributions (a high-income penalty can be
	// negative); only the total is clamped.
	rawTotal := 0.0
	for _, f := range breakdown {
		rawTotal += f.Points
	}
	total := clamp(rawTotal, 0, 100)

	decision, confidence := h.mapDecision(total)

	assessment := &models.EligibilityAssessment{
		Score:      total,
		Decision:   decision,
		Confidence: confidence,
		Breakdown:  breakdown,
	}

	passages, retrievalErr := h.retrievePolicy(ctx, decision)
	if retrievalErr != nil {
		stageErrors = append(stageErrors, retrievalErr.Error())
	}

	explanation, narrationErr := h.narrate(ctx, input.Profile, assessment, passages)
	if narrationErr != nil {
		stageErrors = append(stageErrors, narrationErr.Error())
	}
	assessment.Reasoning = explanation

	h.logger.Info("eligibility scored", map[string]interface{}{
		"applicantId": input.Profile.ApplicantID,
		"score":       total,
		"decision":    string(decision),
		"confidence":  string(confidence),
		"errorCount":  len(stageErrors),
	})

	return &Output{Assessment: assessment, Errors: stageErrors}, nil
}

// scoreIncome gives full points well below the threshold, tapers linearly to
// zero at the threshold, and applies a fixed penalty above the high-income
// ceiling. The penalty may drive this factor negative; the total is floored
// at zero after summation.
func (h *Handler) scoreIncome(fields *models.ExtractedFields) models.FactorScore {
	cfg := h.config.Scoring.Income
	score := models.FactorScore{Factor: "income", MaxPoints: cfg.MaxPoints}

	income, ok := numericField(fields, models.FieldMonthlyIncome)
	if !ok {
		score.Detail = "monthly income unavailable"
		return score
	}

	fullPointsAt := cfg.FullPointsRatio * cfg.Threshold
	switch {
	case income > cfg.HighIncomeCeiling:
		score.Points = -cfg.HighIncomePenalty
		score.Detail = fmt.Sprintf("income %.0f above ceiling %.0f", income, cfg.HighIncomeCeiling)
	case income >= cfg.Threshold:
		score.Points = 0
		score.Detail = fmt.Sprintf("income %.0f at or above threshold %.0f", income, cfg.Threshold)
	case income <= fullPointsAt:
		score.Points = cfg.MaxPoints
		score.Detail = fmt.Sprintf("income %.0f well below threshold %.0f", income, cfg.Threshold)
	default:
		// linear taper between fullPointsAt and the threshold
		score.Points = cfg.MaxPoints * (cfg.Threshold - income) / (cfg.Threshold - fullPointsAt)
		score.Detail = fmt.Sprintf("income %.0f approaching threshold %.0f", income, cfg.Threshold)
	}
	return score
}

// scoreEmployment is monotonic non-increasing in employment stability.
func (h *Handler) scoreEmployment(fields *models.ExtractedFields) models.FactorScore {
	cfg := h.config.Scoring.Employment
	score := models.FactorScore{Factor: "employment", MaxPoints: cfg.MaxPoints}

	status, ok := stringField(fields, models.FieldEmploymentStatus)
	if !ok {
		score.Points = cfg.DefaultWeight * cfg.MaxPoints
		score.Detail = "employment status unavailable, neutral weight applied"
		return score
	}

	normalized := normalizeStatus(status)
	weight, exists := cfg.StatusWeights[normalized]
	if !exists {
		weight = cfg.DefaultWeight
	}
	score.Points = clamp(weight*cfg.MaxPoints, 0, cfg.MaxPoints)
	score.Detail = fmt.Sprintf("status %s", normalized)
	return score
}

// scoreFamily is a non-decreasing step function of family size saturating at
// the configured size.
func (h *Handler) scoreFamily(fields *models.ExtractedFields) models.FactorScore {
	cfg := h.config.Scoring.Family
	score := models.FactorScore{Factor: "family", MaxPoints: cfg.MaxPoints}

	size, ok := intField(fields, models.FieldFamilySize)
	if !ok || size < 1 {
		score.Detail = "family size unavailable"
		return score
	}

	switch {
	case size <= 1:
		score.Points = 0
		score.Detail = "single-person household"
	case size >= cfg.SaturationSize:
		score.Points = cfg.MaxPoints
		score.Detail = fmt.Sprintf("family size %d at or above saturation %d", size, cfg.SaturationSize)
	default:
		score.Points = cfg.MaxPoints * float64(size-1) / float64(cfg.SaturationSize-1)
		score.Detail = fmt.Sprintf("family size %d", size)
	}
	return score
}

// scoreNeed rises as liabilities outweigh assets. Both-zero is treated as
// unknown and scored at the midline.
func (h *Handler) scoreNeed(fields *models.ExtractedFields) models.FactorScore {
	cfg := h.config.Scoring.Need
	score := models.FactorScore{Factor: "need", MaxPoints: cfg.MaxPoints}

	assets, assetsOK := numericField(fields, models.FieldTotalAssets)
	liabilities, liabilitiesOK := numericField(fields, models.FieldTotalLiabilities)
	if !assetsOK {
		assets = 0
	}
	if !liabilitiesOK {
		liabilities = 0
	}

	switch {
	case assets == 0 && liabilities == 0:
		score.Points = cfg.UnknownMidline
		score.Detail = "assets and liabilities unknown, midline applied"
	case liabilities == 0:
		score.Points = cfg.SolventPoints
		score.Detail = "no liabilities reported"
	default:
		ratio := math.Min(assets/liabilities, cfg.RatioCeiling)
		score.Points = cfg.MaxPoints * (1 - ratio/cfg.RatioCeiling)
		score.Detail = fmt.Sprintf("asset/liability ratio %.2f", ratio)
	}
	return score
}

// scoreCredit normalizes the 300-850 band. A missing score gets a configured
// neutral default rather than zero.
func (h *Handler) scoreCredit(fields *models.ExtractedFields) models.FactorScore {
	cfg := h.config.Scoring.Credit
	score := models.FactorScore{Factor: "credit", MaxPoints: cfg.MaxPoints}

	creditScore, ok := intField(fields, models.FieldCreditScore)
	if !ok {
		score.Points = cfg.NeutralPoints
		score.Detail = "credit score unavailable, neutral default applied"
		return score
	}

	span := float64(cfg.ScoreCeiling - cfg.ScoreFloor)
	normalized := float64(creditScore-cfg.ScoreFloor) / span
	score.Points = clamp(normalized*cfg.MaxPoints, 0, cfg.MaxPoints)
	score.Detail = fmt.Sprintf("credit score %d", creditScore)
	return score
}

func (h *Handler) mapDecision(total float64) (models.Decision, models.Confidence) {
	cfg := h.config.Scoring.Decision
	switch {
	case total >= cfg.ApproveHighThreshold:
		return models.DecisionApproved, models.ConfidenceHigh
	case total >= cfg.ApproveMediumThreshold:
		return models.DecisionApproved, models.ConfidenceMedium
	case total >= cfg.ReviewThreshold:
		return models.DecisionUnderReview, models.ConfidenceLow
	default:
		return models.DecisionDeclined, models.ConfidenceHigh
	}
}

// retrievePolicy fetches policy passages used only to enrich the explanation.
// A retrieval failure never gates the decision.
func (h *Handler) retrievePolicy(ctx context.Context, decision models.Decision) ([]providers.Passage, error) {
	if h.retriever == nil {
		return nil, nil
	}
	query := fmt.Sprintf("social support eligibility %s", strings.ToLower(string(decision)))
	passages, err := h.retriever.Search(ctx, query, 3)
	if err != nil {
		h.logger.Warn("policy retrieval failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return passages, nil
}

// narrate asks the narration provider for an explanation and substitutes the
// deterministic template on any failure.
func (h *Handler) narrate(ctx context.Context, profile models.ApplicantProfile, assessment *models.EligibilityAssessment, passages []providers.Passage) (string, error) {
	if h.narrator != nil {
		text, err := h.narrator.Narrate(ctx, providers.NarrationRequest{
			Profile:    profile,
			Assessment: *assessment,
			Passages:   passages,
		})
		if err == nil {
			return text, nil
		}
		h.logger.Warn("narration failed, using fallback explanation", map[string]interface{}{
			"applicantId": profile.ApplicantID,
			"error":       err.Error(),
		})
		return FallbackExplanation(assessment), err
	}
	return FallbackExplanation(assessment), nil
}

// FallbackExplanation renders the breakdown as deterministic text.
func FallbackExplanation(assessment *models.EligibilityAssessment) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Eligibility score %.1f of 100, decision %s (%s confidence).",
		assessment.Score, assessment.Decision, assessment.Confidence))
	for _, f := range assessment.Breakdown {
		parts = append(parts, fmt.Sprintf("%s: %.1f/%.1f (%s).", f.Factor, f.Points, f.MaxPoints, f.Detail))
	}
	return strings.Join(parts, " ")
}

// ==========================
// Field Coercion Helpers
// ==========================

func numericField(fields *models.ExtractedFields, name string) (float64, bool) {
	fv, ok := fields.Get(name)
	if !ok {
		return 0, false
	}
	return toFloat(fv.Value)
}

func intField(fields *models.ExtractedFields, name string) (int, bool) {
	f, ok := numericField(fields, name)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func stringField(fields *models.ExtractedFields, name string) (string, bool) {
	fv, ok := fields.Get(name)
	if !ok {
		return "", false
	}
	s, isStr := fv.Value.(string)
	if !isStr || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
