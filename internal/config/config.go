package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"goencode/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Search    SearchConfig
	Inference InferenceConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Paths     PathConfig
	LogLevel  string
}

// SearchConfig holds penalty-grid and solver settings
type SearchConfig struct {
	GridStart float64
	GridStop  float64
	GridCount int
	Solver    string
	Intercept bool
	Workers   int
	// FeatureWorkers bounds how many features a service searches at once
	FeatureWorkers int
}

// InferenceConfig holds resampling settings
type InferenceConfig struct {
	NPerm           int
	Alpha           float64
	Tail            string
	TimelineStartMs float64
	TimelineStepMs  float64
	Seed            int64
	AllowZeroSeed   bool
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory ledger.
type DatabaseConfig struct {
	URL            string
	MaxOpenConns   int
	ConnectTimeout time.Duration
}

// ServerConfig holds results API settings
type ServerConfig struct {
	Port string
}

// PathConfig holds file system paths
type PathConfig struct {
	FeaturesDir  string
	ResponsesDir string
	WeightsDir   string
	ScoresDir    string
	OutputDir    string
}

// Enabled reports whether a PostgreSQL ledger is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Search:    *loadSearchConfig(),
		Inference: *loadInferenceConfig(),
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Paths:     *loadPathConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadSearchConfig() *SearchConfig {
	return &SearchConfig{
		GridStart:      getEnvFloatOrDefault("GRID_START", -5),
		GridStop:       getEnvFloatOrDefault("GRID_STOP", 10),
		GridCount:      getEnvIntOrDefault("GRID_COUNT", 10),
		Solver:         strings.ToLower(getEnvOrDefault("SOLVER", "cholesky")),
		Intercept:      getEnvBoolOrDefault("INTERCEPT", true),
		Workers:        getEnvIntOrDefault("WORKERS", 4),
		FeatureWorkers: getEnvIntOrDefault("FEATURE_WORKERS", 2),
	}
}

func loadInferenceConfig() *InferenceConfig {
	return &InferenceConfig{
		NPerm:           getEnvIntOrDefault("N_PERM", 1000),
		Alpha:           getEnvFloatOrDefault("ALPHA", 0.05),
		Tail:            strings.ToLower(getEnvOrDefault("TAIL", "both")),
		TimelineStartMs: getEnvFloatOrDefault("TIMELINE_START_MS", -400),
		TimelineStepMs:  getEnvFloatOrDefault("TIMELINE_STEP_MS", 20),
		Seed:            getEnvInt64OrDefault("SEED", 42),
		AllowZeroSeed:   getEnvBoolOrDefault("ALLOW_ZERO_SEED", false),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:            os.Getenv("DATABASE_URL"),
		MaxOpenConns:   getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		ConnectTimeout: getEnvDurationOrDefault("DB_CONNECT_TIMEOUT", 10*time.Second),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		FeaturesDir:  getEnvOrDefault("FEATURES_DIR", "./data/features"),
		ResponsesDir: getEnvOrDefault("RESPONSES_DIR", "./data/responses"),
		WeightsDir:   getEnvOrDefault("WEIGHTS_DIR", "./data/weights"),
		ScoresDir:    getEnvOrDefault("SCORES_DIR", "./data/scores"),
		OutputDir:    getEnvOrDefault("OUTPUT_DIR", "./out"),
	}
}

func validateConfig(config *Config) error {
	s := config.Search
	if s.GridCount < 1 {
		return errors.ConfigInvalid("GRID_COUNT must be at least 1")
	}
	if s.GridStart > s.GridStop {
		return errors.ConfigInvalid("GRID_START must not exceed GRID_STOP")
	}
	switch s.Solver {
	case "cholesky", "solve", "lstsq":
	default:
		return errors.ConfigInvalid("SOLVER must be one of cholesky, solve, lstsq")
	}
	if s.Workers < 1 || s.FeatureWorkers < 1 {
		return errors.ConfigInvalid("WORKERS and FEATURE_WORKERS must be positive")
	}

	inf := config.Inference
	if inf.NPerm < 2 {
		return errors.ConfigInvalid("N_PERM must be at least 2")
	}
	if inf.Alpha <= 0 || inf.Alpha >= 1 || math.IsNaN(inf.Alpha) {
		return errors.ConfigInvalid("ALPHA must lie in (0, 1)")
	}
	if inf.Tail != "both" && inf.Tail != "right" {
		return errors.ConfigInvalid("TAIL must be both or right")
	}
	if inf.TimelineStepMs <= 0 {
		return errors.ConfigInvalid("TIMELINE_STEP_MS must be positive")
	}
	if inf.Seed == 0 && !inf.AllowZeroSeed {
		return errors.ConfigInvalid("SEED must be non-zero unless ALLOW_ZERO_SEED=true")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
