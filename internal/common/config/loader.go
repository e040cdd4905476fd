// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like NARRATION_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1. Load base config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. Merge environment-specific config
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	// 3. Expand env placeholders
	expandEnvVars(viper.GetViper())

	// 4. Unmarshal final config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5. Direct override if still empty
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations so the binary and
// tests can both find it.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Providers.Narration.APIKey == "" {
		if val := os.Getenv("NARRATION_API_KEY"); val != "" {
			cfg.Providers.Narration.APIKey = val
		}
	}
	if cfg.Providers.Extraction.APIKey == "" {
		if val := os.Getenv("EXTRACTION_API_KEY"); val != "" {
			cfg.Providers.Extraction.APIKey = val
		}
	}

	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Workflow defaults
	if cfg.Workflow.MaxConcurrentRuns == 0 {
		cfg.Workflow.MaxConcurrentRuns = 10
	}
	if cfg.Workflow.StageTimeout == 0 {
		cfg.Workflow.StageTimeout = 30000
	}
	if cfg.Workflow.CheckpointRetries == 0 {
		cfg.Workflow.CheckpointRetries = 3
	}
	if cfg.Workflow.CheckpointInterval == 0 {
		cfg.Workflow.CheckpointInterval = 500
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Stage defaults
	for key, stage := range cfg.Stages {
		if stage.Timeout == 0 {
			stage.Timeout = 30000
		}
		if stage.MaxRetries == 0 {
			stage.MaxRetries = 3
		}
		cfg.Stages[key] = stage
	}

	// Scoring defaults mirror the published eligibility criteria.
	applyScoringDefaults(&cfg.Scoring)

	// Validation defaults
	if len(cfg.Validation.RequiredFields) == 0 {
		cfg.Validation.RequiredFields = []string{
			"monthly_income",
			"family_size",
			"employment_status",
			"total_assets",
			"total_liabilities",
		}
	}
	if cfg.Validation.CompletenessThreshold == 0 {
		cfg.Validation.CompletenessThreshold = 0.5
	}
	if cfg.Validation.MinProceedRatio == 0 {
		cfg.Validation.MinProceedRatio = 0.3
	}
	if cfg.Validation.IncomeSanityCeiling == 0 {
		cfg.Validation.IncomeSanityCeiling = 1000000
	}
	if cfg.Validation.MismatchTolerance == 0 {
		cfg.Validation.MismatchTolerance = 0.15
	}

	// Recommendation defaults
	if cfg.Recommendation.Weights == (RecommendationWeights{}) {
		cfg.Recommendation.Weights = RecommendationWeights{
			Employment: 40,
			Income:     25,
			Decision:   20,
			Family:     15,
		}
	}
	if cfg.Recommendation.HighTierFloor == 0 {
		cfg.Recommendation.HighTierFloor = 75
	}
	if cfg.Recommendation.LowTierCeil == 0 {
		cfg.Recommendation.LowTierCeil = 40
	}
	if cfg.Recommendation.MinRelevance == 0 {
		cfg.Recommendation.MinRelevance = 25
	}
	if cfg.Recommendation.MaxPrograms == 0 {
		cfg.Recommendation.MaxPrograms = 3
	}

	// Provider timeout defaults
	if cfg.Providers.Extraction.Timeout == 0 {
		cfg.Providers.Extraction.Timeout = 15000
	}
	if cfg.Providers.Extraction.MinConfidence == 0 {
		cfg.Providers.Extraction.MinConfidence = 0.2
	}
	if cfg.Providers.Narration.Timeout == 0 {
		cfg.Providers.Narration.Timeout = 60000
	}
	if cfg.Providers.Narration.MaxTokens == 0 {
		cfg.Providers.Narration.MaxTokens = 500
	}
	if cfg.Providers.Knowledge.TopK == 0 {
		cfg.Providers.Knowledge.TopK = 5
	}
	if cfg.Providers.Knowledge.CacheTTL == 0 {
		cfg.Providers.Knowledge.CacheTTL = 300
	}
	if cfg.Providers.Knowledge.Timeout == 0 {
		cfg.Providers.Knowledge.Timeout = 10000
	}
	if cfg.Providers.Knowledge.Index == "" {
		cfg.Providers.Knowledge.Index = "support-programs"
	}
}

func applyScoringDefaults(s *ScoringConfig) {
	if s.Income.MaxPoints == 0 {
		s.Income.MaxPoints = 30
	}
	if s.Income.Threshold == 0 {
		s.Income.Threshold = 15000
	}
	if s.Income.FullPointsRatio == 0 {
		s.Income.FullPointsRatio = 0.8
	}
	if s.Income.HighIncomeCeiling == 0 {
		s.Income.HighIncomeCeiling = 2 * s.Income.Threshold
	}
	if s.Income.HighIncomePenalty == 0 {
		s.Income.HighIncomePenalty = 10
	}

	if s.Employment.MaxPoints == 0 {
		s.Employment.MaxPoints = 25
	}
	if len(s.Employment.StatusWeights) == 0 {
		s.Employment.StatusWeights = map[string]float64{
			"unemployed":    1.0,
			"part_time":     0.6,
			"self_employed": 0.5,
			"employed":      0.2,
			"retired":       0.4,
		}
	}
	if s.Employment.DefaultWeight == 0 {
		s.Employment.DefaultWeight = 0.4
	}

	if s.Family.MaxPoints == 0 {
		s.Family.MaxPoints = 15
	}
	if s.Family.SaturationSize == 0 {
		s.Family.SaturationSize = 4
	}
	if s.Family.BonusSize == 0 {
		s.Family.BonusSize = 3
	}

	if s.Need.MaxPoints == 0 {
		s.Need.MaxPoints = 20
	}
	if s.Need.RatioCeiling == 0 {
		s.Need.RatioCeiling = 2.0
	}
	if s.Need.SolventPoints == 0 {
		s.Need.SolventPoints = 2
	}
	if s.Need.UnknownMidline == 0 {
		s.Need.UnknownMidline = 10
	}

	if s.Credit.MaxPoints == 0 {
		s.Credit.MaxPoints = 10
	}
	if s.Credit.ScoreFloor == 0 {
		s.Credit.ScoreFloor = 300
	}
	if s.Credit.ScoreCeiling == 0 {
		s.Credit.ScoreCeiling = 850
	}
	if s.Credit.NeutralPoints == 0 {
		s.Credit.NeutralPoints = 5
	}

	if s.Decision.ApproveHighThreshold == 0 {
		s.Decision.ApproveHighThreshold = 70
	}
	if s.Decision.ApproveMediumThreshold == 0 {
		s.Decision.ApproveMediumThreshold = 50
	}
	if s.Decision.ReviewThreshold == 0 {
		s.Decision.ReviewThreshold = 30
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	total := cfg.Scoring.Income.MaxPoints +
		cfg.Scoring.Employment.MaxPoints +
		cfg.Scoring.Family.MaxPoints +
		cfg.Scoring.Need.MaxPoints +
		cfg.Scoring.Credit.MaxPoints
	if total != 100 {
		return fmt.Errorf("scoring factor maxima must sum to 100, got %.1f", total)
	}

	if cfg.Validation.CompletenessThreshold < 0 || cfg.Validation.CompletenessThreshold > 1 {
		return fmt.Errorf("validation.completeness_threshold must be in [0,1]")
	}
	if cfg.Validation.MinProceedRatio < 0 || cfg.Validation.MinProceedRatio > 1 {
		return fmt.Errorf("validation.min_proceed_ratio must be in [0,1]")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStageConfig retrieves stage-specific configuration with fallback to defaults
func GetStageConfig(cfg *Config, stageName string) StageConfig {
	if stage, exists := cfg.Stages[stageName]; exists {
		return stage
	}

	return StageConfig{
		Enabled:    true,
		Timeout:    30000,
		MaxRetries: 3,
	}
}

// IsStageEnabled checks if a specific stage handler is enabled
func IsStageEnabled(cfg *Config, stageName string) bool {
	if stage, exists := cfg.Stages[stageName]; exists {
		return stage.Enabled
	}
	return true
}
