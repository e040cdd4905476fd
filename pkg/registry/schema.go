// pkg/registry/schema.go
package registry

type ProgramRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Programs    []Program `json:"programs"`
}

// Program describes one enablement program that can be recommended to an
// applicant, together with the targeting attributes the ranker uses.
type Program struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"displayName"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	TargetStatuses   []string `json:"targetStatuses"`   // employment statuses the program serves best
	TargetDecisions  []string `json:"targetDecisions"`  // decisions the program applies to
	MinFamilySize    int      `json:"minFamilySize"`    // 0 means any
	IncomeBandUpper  float64  `json:"incomeBandUpper"`  // 0 means any; otherwise best fit at/below this monthly income
	NextSteps        []string `json:"nextSteps"`
	DurationWeeks    int      `json:"durationWeeks"`
	Provider         string   `json:"provider"`
}
