// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"os"
)

func LoadRegistry(path string) (*ProgramRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ProgramRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// LoadRegistryOrDefault falls back to the built-in catalog when no registry
// file is configured or readable.
func LoadRegistryOrDefault(path string) *ProgramRegistry {
	if path != "" {
		if reg, err := LoadRegistry(path); err == nil && len(reg.Programs) > 0 {
			return reg
		}
	}
	return DefaultRegistry()
}

// DefaultRegistry returns the built-in enablement program catalog. Catalog
// order is the tie-break order used by the ranker.
func DefaultRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		Version:     "1.0",
		LastUpdated: "2026-06-01",
		Programs: []Program{
			{
				ID:              "upskilling",
				DisplayName:     "Vocational Upskilling",
				Description:     "Technical and vocational training aligned with in-demand trades.",
				Category:        "training",
				TargetStatuses:  []string{"unemployed", "part_time"},
				TargetDecisions: []string{"APPROVED", "UNDER_REVIEW"},
				NextSteps: []string{
					"Complete the skills self-assessment",
					"Select a training track with a program advisor",
					"Enroll in the next available cohort",
				},
				DurationWeeks: 12,
				Provider:      "National Training Institute",
			},
			{
				ID:              "job_matching",
				DisplayName:     "Job Matching Service",
				Description:     "Placement support matching applicants with vetted employers.",
				Category:        "placement",
				TargetStatuses:  []string{"unemployed"},
				TargetDecisions: []string{"APPROVED", "UNDER_REVIEW", "DECLINED"},
				NextSteps: []string{
					"Upload an up-to-date resume",
					"Attend the employer matching workshop",
					"Schedule interviews through the placement desk",
				},
				DurationWeeks: 8,
				Provider:      "Employment Services Bureau",
			},
			{
				ID:              "career_counseling",
				DisplayName:     "Career Counseling",
				Description:     "One-on-one guidance on career paths and transitions.",
				Category:        "guidance",
				TargetStatuses:  []string{"unemployed", "part_time", "self_employed", "employed"},
				TargetDecisions: []string{"APPROVED", "UNDER_REVIEW", "DECLINED"},
				NextSteps: []string{
					"Book an intake session with a counselor",
					"Draft a personal development plan",
				},
				DurationWeeks: 4,
				Provider:      "Community Career Center",
			},
			{
				ID:              "financial_literacy",
				DisplayName:     "Financial Literacy Workshop",
				Description:     "Household budgeting and debt management fundamentals.",
				Category:        "training",
				TargetStatuses:  []string{"unemployed", "part_time", "self_employed", "employed", "retired"},
				TargetDecisions: []string{"APPROVED", "UNDER_REVIEW"},
				MinFamilySize:   3,
				IncomeBandUpper: 10000,
				NextSteps: []string{
					"Register for the next workshop series",
					"Bring recent household expense records",
				},
				DurationWeeks: 6,
				Provider:      "Community Finance Coalition",
			},
			{
				ID:              "small_business_support",
				DisplayName:     "Small Business Support",
				Description:     "Mentorship and micro-grants for self-employed applicants.",
				Category:        "enterprise",
				TargetStatuses:  []string{"self_employed"},
				TargetDecisions: []string{"APPROVED", "UNDER_REVIEW"},
				NextSteps: []string{
					"Submit a short business profile",
					"Meet with an assigned mentor",
					"Apply for the micro-grant round",
				},
				DurationWeeks: 16,
				Provider:      "Enterprise Development Fund",
			},
		},
	}
}

// FindProgram returns the program with the given ID, if present.
func (r *ProgramRegistry) FindProgram(id string) (Program, bool) {
	for _, p := range r.Programs {
		if p.ID == id {
			return p, true
		}
	}
	return Program{}, false
}
