// internal/stages/generate-recommendations/handler.go
package generaterecommendations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
	"github.com/SarthakGarg19/social-support-ai/internal/providers"
	"github.com/SarthakGarg19/social-support-ai/pkg/registry"
)

const (
	StageName = "generate-recommendations"
)

var (
	ErrNilInput      = errors.New("input cannot be nil")
	ErrNilAssessment = errors.New("input assessment cannot be nil")
)

type Handler struct {
	config   *Config
	catalog  *registry.ProgramRegistry
	narrator providers.NarrationProvider
	logger   logger.Logger
}

// NewHandler builds the recommendation stage. The narrator may be nil, in
// which case advice always falls back to the templated rendering.
func NewHandler(config *Config, catalog *registry.ProgramRegistry, narrator providers.NarrationProvider, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		catalog:  catalog,
		narrator: narrator,
		logger:   log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// ranked carries a scored program together with its catalog position so the
// sort can break ties on declaration order.
type ranked struct {
	program      registry.Program
	catalogIndex int
	relevance    float64
	reasons      []string
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}
	if input.Assessment == nil {
		return nil, ErrNilAssessment
	}

	status := h.employmentStatus(input)
	income := h.monthlyIncome(input)
	familySize := h.familySize(input)

	var candidates []ranked
	for i, program := range h.catalog.Programs {
		if !containsDecision(program.TargetDecisions, input.Assessment.Decision) {
			continue
		}
		relevance, reasons := h.scoreProgram(program, input.Assessment.Decision, status, income, familySize)
		if relevance < h.config.MinRelevance {
			continue
		}
		candidates = append(candidates, ranked{
			program:      program,
			catalogIndex: i,
			relevance:    relevance,
			reasons:      reasons,
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].relevance != candidates[b].relevance {
			return candidates[a].relevance > candidates[b].relevance
		}
		return candidates[a].catalogIndex < candidates[b].catalogIndex
	})

	if h.config.MaxPrograms > 0 && len(candidates) > h.config.MaxPrograms {
		candidates = candidates[:h.config.MaxPrograms]
	}

	set := &models.RecommendationSet{}
	for _, c := range candidates {
		set.Items = append(set.Items, models.Recommendation{
			ProgramID: c.program.ID,
			Name:      c.program.DisplayName,
			Category:  c.program.Category,
			Relevance: c.relevance,
			Priority:  h.tier(c.relevance),
			Reasoning: strings.Join(c.reasons, "; "),
		})
	}

	var stageErrors []string
	set.Advice, stageErrors = h.buildAdvice(ctx, input, set, candidates)
	if len(candidates) > 0 {
		set.NextSteps = append(set.NextSteps, candidates[0].program.NextSteps...)
	} else {
		set.NextSteps = []string{"Contact a case officer to review available support options."}
	}

	h.logger.Info("recommendations generated", map[string]interface{}{
		"applicantId":  input.Profile.ApplicantID,
		"decision":     string(input.Assessment.Decision),
		"programCount": len(set.Items),
		"errorCount":   len(stageErrors),
	})

	return &Output{Recommendations: set, Errors: stageErrors}, nil
}

// scoreProgram computes the weighted match between one catalog program and the
// applicant. Each matched predicate contributes its configured weight.
func (h *Handler) scoreProgram(program registry.Program, decision models.Decision, status string, income float64, familySize int) (float64, []string) {
	var relevance float64
	var reasons []string

	if len(program.TargetStatuses) == 0 || containsString(program.TargetStatuses, status) {
		relevance += h.config.Weights.Employment
		reasons = append(reasons, fmt.Sprintf("matches employment status %q", status))
	}
	if program.IncomeBandUpper <= 0 || income <= program.IncomeBandUpper {
		relevance += h.config.Weights.Income
		if program.IncomeBandUpper > 0 {
			reasons = append(reasons, fmt.Sprintf("income %.0f within program band", income))
		} else {
			reasons = append(reasons, "no income restriction")
		}
	}
	if containsDecision(program.TargetDecisions, decision) {
		relevance += h.config.Weights.Decision
		reasons = append(reasons, fmt.Sprintf("targets %s applicants", decision))
	}
	if familySize >= program.MinFamilySize {
		relevance += h.config.Weights.Family
		if program.MinFamilySize > 1 {
			reasons = append(reasons, fmt.Sprintf("family size %d meets the program minimum", familySize))
		}
	}

	return relevance, reasons
}

func (h *Handler) tier(relevance float64) models.Priority {
	switch {
	case relevance >= h.config.HighTierFloor:
		return models.PriorityHigh
	case relevance >= h.config.LowTierCeil:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// buildAdvice asks the narrator for personalized advice; on any failure the
// top program's templated description is used instead and the failure is
// recorded as a stage error.
func (h *Handler) buildAdvice(ctx context.Context, input *Input, set *models.RecommendationSet, candidates []ranked) (string, []string) {
	fallback := h.fallbackAdvice(candidates)
	if h.narrator == nil {
		return fallback, nil
	}

	advice, err := h.narrator.Narrate(ctx, providers.NarrationRequest{
		Profile:    input.Profile,
		Assessment: *input.Assessment,
		Programs:   set.Items,
	})
	if err != nil {
		h.logger.Warn("advice narration failed, using templated fallback", map[string]interface{}{
			"applicantId": input.Profile.ApplicantID,
			"error":       err.Error(),
		})
		return fallback, []string{err.Error()}
	}
	return advice, nil
}

func (h *Handler) fallbackAdvice(candidates []ranked) string {
	if len(candidates) == 0 {
		return "No enablement programs currently match your profile. A case officer will follow up with alternative options."
	}
	top := candidates[0].program
	return fmt.Sprintf("Based on your assessment, %s is the most relevant support option: %s", top.DisplayName, top.Description)
}

func (h *Handler) employmentStatus(input *Input) string {
	if input.Extracted == nil {
		return ""
	}
	if fv, ok := input.Extracted.Get(models.FieldEmploymentStatus); ok {
		if s, ok := fv.Value.(string); ok {
			return normalizeStatus(s)
		}
	}
	return ""
}

func (h *Handler) monthlyIncome(input *Input) float64 {
	if input.Extracted == nil {
		return 0
	}
	if fv, ok := input.Extracted.Get(models.FieldMonthlyIncome); ok {
		if v, ok := toFloat(fv.Value); ok {
			return v
		}
	}
	return 0
}

func (h *Handler) familySize(input *Input) int {
	if input.Extracted == nil {
		return 1
	}
	if fv, ok := input.Extracted.Get(models.FieldFamilySize); ok {
		if v, ok := toFloat(fv.Value); ok && v >= 1 {
			return int(v)
		}
	}
	return 1
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsDecision(list []string, value models.Decision) bool {
	for _, item := range list {
		if item == string(value) {
			return true
		}
	}
	return false
}
