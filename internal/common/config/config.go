// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App            AppConfig              `mapstructure:"app"`
	Workflow       WorkflowConfig         `mapstructure:"workflow"`
	Database       DatabaseConfig         `mapstructure:"database"`
	Scoring        ScoringConfig          `mapstructure:"scoring"`
	Validation     ValidationConfig       `mapstructure:"validation"`
	Recommendation RecommendationConfig   `mapstructure:"recommendation"`
	Stages         map[string]StageConfig `mapstructure:"stages"`
	Providers      ProvidersConfig        `mapstructure:"providers"`
	Logging        LoggingConfig          `mapstructure:"logging"`
	Notifications  NotificationConfig     `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// WorkflowConfig holds orchestrator-level settings.
type WorkflowConfig struct {
	MaxConcurrentRuns  int `mapstructure:"max_concurrent_runs"`
	StageTimeout       int `mapstructure:"stage_timeout"`       // milliseconds
	CheckpointRetries  int `mapstructure:"checkpoint_retries"`  // attempts before audit failure
	CheckpointInterval int `mapstructure:"checkpoint_interval"` // milliseconds between retry attempts
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StageConfig holds the core settings applicable to every stage handler.
type StageConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries int  `mapstructure:"max_retries"` // for error handling
}

// --- Assessment Configuration Sections ---

// ScoringConfig holds the multi-factor eligibility scoring parameters. All
// factor maxima must sum to 100.
type ScoringConfig struct {
	Income     IncomeFactorConfig     `mapstructure:"income"`
	Employment EmploymentFactorConfig `mapstructure:"employment"`
	Family     FamilyFactorConfig     `mapstructure:"family"`
	Need       NeedFactorConfig       `mapstructure:"need"`
	Credit     CreditFactorConfig     `mapstructure:"credit"`
	Decision   DecisionConfig         `mapstructure:"decision"`
}

type IncomeFactorConfig struct {
	MaxPoints         float64 `mapstructure:"max_points"`
	Threshold         float64 `mapstructure:"threshold"`           // monthly income at which points reach zero
	FullPointsRatio   float64 `mapstructure:"full_points_ratio"`   // fraction of threshold under which full points apply
	HighIncomeCeiling float64 `mapstructure:"high_income_ceiling"` // above this, a fixed penalty applies
	HighIncomePenalty float64 `mapstructure:"high_income_penalty"`
}

type EmploymentFactorConfig struct {
	MaxPoints     float64            `mapstructure:"max_points"`
	StatusWeights map[string]float64 `mapstructure:"status_weights"`
	DefaultWeight float64            `mapstructure:"default_weight"`
}

type FamilyFactorConfig struct {
	MaxPoints      float64 `mapstructure:"max_points"`
	SaturationSize int     `mapstructure:"saturation_size"` // family size at which points saturate
	BonusSize      int     `mapstructure:"bonus_size"`      // minimum size counted toward support programs
}

type NeedFactorConfig struct {
	MaxPoints      float64 `mapstructure:"max_points"`
	RatioCeiling   float64 `mapstructure:"ratio_ceiling"`    // asset/liability ratio capped here
	SolventPoints  float64 `mapstructure:"solvent_points"`   // assets with zero liabilities
	UnknownMidline float64 `mapstructure:"unknown_midline"`  // both assets and liabilities zero
}

type CreditFactorConfig struct {
	MaxPoints     float64 `mapstructure:"max_points"`
	ScoreFloor    int     `mapstructure:"score_floor"`
	ScoreCeiling  int     `mapstructure:"score_ceiling"`
	NeutralPoints float64 `mapstructure:"neutral_points"` // used when credit score is missing
}

type DecisionConfig struct {
	ApproveHighThreshold   float64 `mapstructure:"approve_high_threshold"`
	ApproveMediumThreshold float64 `mapstructure:"approve_medium_threshold"`
	ReviewThreshold        float64 `mapstructure:"review_threshold"`
}

// ValidationConfig holds the completeness gate parameters.
type ValidationConfig struct {
	RequiredFields        []string `mapstructure:"required_fields"`
	CompletenessThreshold float64  `mapstructure:"completeness_threshold"`
	MinProceedRatio       float64  `mapstructure:"min_proceed_ratio"`
	IncomeSanityCeiling   float64  `mapstructure:"income_sanity_ceiling"` // monthly income above this is a blocking issue
	MismatchTolerance     float64  `mapstructure:"mismatch_tolerance"`    // relative cross-document difference before warning
}

// RecommendationConfig holds the program ranking parameters.
type RecommendationConfig struct {
	Weights       RecommendationWeights `mapstructure:"weights"`
	HighTierFloor float64               `mapstructure:"high_tier_floor"`
	LowTierCeil   float64               `mapstructure:"low_tier_ceil"`
	MinRelevance  float64               `mapstructure:"min_relevance"`
	MaxPrograms   int                   `mapstructure:"max_programs"`
	CatalogPath   string                `mapstructure:"catalog_path"`
}

type RecommendationWeights struct {
	Employment float64 `mapstructure:"employment"`
	Income     float64 `mapstructure:"income"`
	Decision   float64 `mapstructure:"decision"`
	Family     float64 `mapstructure:"family"`
}

// ProvidersConfig holds settings for the capability providers.
type ProvidersConfig struct {
	Extraction struct {
		BaseURL       string  `mapstructure:"base_url"`
		APIKey        string  `mapstructure:"api_key"`
		Timeout       int     `mapstructure:"timeout"` // milliseconds
		MaxRetries    int     `mapstructure:"max_retries"`
		MinConfidence float64 `mapstructure:"min_confidence"` // field candidates below this are dropped
	} `mapstructure:"extraction"`

	Narration struct {
		BaseURL   string `mapstructure:"base_url"`
		APIKey    string `mapstructure:"api_key"`
		Model     string `mapstructure:"model"`
		MaxTokens int    `mapstructure:"max_tokens"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"narration"`

	Knowledge struct {
		Index    string `mapstructure:"index"`
		TopK     int    `mapstructure:"top_k"`
		CacheTTL int    `mapstructure:"cache_ttl"` // seconds
		Timeout  int    `mapstructure:"timeout"`   // milliseconds
	} `mapstructure:"knowledge"`
}

// NotificationConfig holds settings for decision notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
