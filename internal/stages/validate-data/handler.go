// internal/stages/validate-data/handler.go
package validatedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

const (
	StageName = "validate-data"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	report := &models.ValidationReport{}

	validCount := 0
	for _, field := range h.config.RequiredFields {
		fv, present := input.Extracted.Get(field)
		if !present {
			report.MissingFields = append(report.MissingFields, field)
			continue
		}
		if issue := h.checkField(field, fv.Value); issue != "" {
			report.Issues = append(report.Issues, issue)
			continue
		}
		validCount++
	}

	if len(h.config.RequiredFields) > 0 {
		report.CompletenessRatio = float64(validCount) / float64(len(h.config.RequiredFields))
	}
	report.IsValid = len(report.Issues) == 0

	h.checkEmploymentIncomeConsistency(input.Extracted, report)
	h.checkCrossDocumentMismatch(input.Extracted, report)

	// Boundary is inclusive: a ratio exactly at the minimum proceeds.
	canProceed := report.IsValid || report.CompletenessRatio >= h.config.MinProceedRatio

	h.logger.Info("validation completed", map[string]interface{}{
		"completeness": report.CompletenessRatio,
		"isValid":      report.IsValid,
		"issueCount":   len(report.Issues),
		"warningCount": len(report.Warnings),
		"canProceed":   canProceed,
	})

	return &Output{Report: report, CanProceed: canProceed}, nil
}

// checkField returns a blocking issue description or empty when the field is valid.
func (h *Handler) checkField(field string, value interface{}) string {
	switch field {
	case models.FieldMonthlyIncome:
		income, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%s: not a number", field)
		}
		if income < 0 {
			return fmt.Sprintf("%s: negative value %.2f", field, income)
		}
		if income > h.config.IncomeSanityCeiling {
			return fmt.Sprintf("%s: %.0f exceeds sanity ceiling %.0f", field, income, h.config.IncomeSanityCeiling)
		}

	case models.FieldFamilySize:
		size, ok := toFloat(value)
		if !ok || size != math.Trunc(size) {
			return fmt.Sprintf("%s: not an integer", field)
		}
		if size < 1 {
			return fmt.Sprintf("%s: must be positive, got %d", field, int(size))
		}

	case models.FieldCreditScore:
		score, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%s: not a number", field)
		}
		if int(score) < h.config.CreditScoreFloor || int(score) > h.config.CreditScoreCeiling {
			return fmt.Sprintf("%s: %d outside [%d,%d]", field, int(score), h.config.CreditScoreFloor, h.config.CreditScoreCeiling)
		}

	case models.FieldTotalAssets, models.FieldTotalLiabilities:
		amount, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%s: not a number", field)
		}
		if amount < 0 {
			return fmt.Sprintf("%s: negative value %.2f", field, amount)
		}

	case models.FieldEmploymentStatus:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return fmt.Sprintf("%s: empty or not a string", field)
		}
	}
	return ""
}

// checkEmploymentIncomeConsistency flags an employed applicant reporting zero
// income. This is a warning, never a blocker.
func (h *Handler) checkEmploymentIncomeConsistency(fields *models.ExtractedFields, report *models.ValidationReport) {
	statusValue, ok := fields.Get(models.FieldEmploymentStatus)
	if !ok {
		return
	}
	status, ok := statusValue.Value.(string)
	if !ok {
		return
	}
	incomeValue, ok := fields.Get(models.FieldMonthlyIncome)
	if !ok {
		return
	}
	income, ok := toFloat(incomeValue.Value)
	if !ok {
		return
	}

	normalized := strings.ToLower(strings.TrimSpace(status))
	if normalized == "employed" && income == 0 {
		report.Warnings = append(report.Warnings, "employment_status is employed but monthly_income is zero")
	}
	if normalized == "unemployed" && income > 0 {
		report.Warnings = append(report.Warnings, "employment_status is unemployed but monthly_income is non-zero")
	}
}

// checkCrossDocumentMismatch warns when two documents report numeric values
// for the same field differing by more than the configured tolerance.
func (h *Handler) checkCrossDocumentMismatch(fields *models.ExtractedFields, report *models.ValidationReport) {
	byField := make(map[string][]models.FieldCandidate)
	for _, c := range fields.Candidates {
		byField[c.Field] = append(byField[c.Field], c)
	}

	fieldNames := make([]string, 0, len(byField))
	for field := range byField {
		fieldNames = append(fieldNames, field)
	}
	sort.Strings(fieldNames)

	for _, field := range fieldNames {
		candidates := byField[field]
		if len(candidates) < 2 {
			continue
		}
		var values []float64
		var docs []string
		for _, c := range candidates {
			if v, ok := toFloat(c.Value); ok {
				values = append(values, v)
				docs = append(docs, c.DocumentID)
			}
		}
		if len(values) < 2 {
			continue
		}

		min, max := values[0], values[0]
		for _, v := range values[1:] {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
		if max == 0 {
			continue
		}
		if (max-min)/max > h.config.MismatchTolerance {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"%s differs across documents %s: values range from %.2f to %.2f",
				field, strings.Join(docs, ","), min, max))
		}
	}
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
