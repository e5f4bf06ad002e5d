package config

import (
	"os"
	"strconv"

	"goalias/domain/trial"
	"goalias/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Harness  HarnessConfig
	Output   OutputConfig
}

// DatabaseConfig holds ledger connection settings. Persistence is
// optional: an empty URL disables the postgres ledger entirely.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// HarnessConfig holds the injection-test defaults; CLI flags override these
type HarnessConfig struct {
	Trials     int
	AmpMin     float64
	AmpMax     float64
	Scale      string
	Seed       int64
	MaxRedraws int
	Workers    int
}

// OutputConfig holds export settings
type OutputConfig struct {
	WorkbookPath string
	ReportPath   string
	ReportHTML   bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	defaults := trial.DefaultConfig()

	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Harness: HarnessConfig{
			Trials:     getEnvIntOrDefault("TRIALS", defaults.Trials),
			AmpMin:     getEnvFloatOrDefault("AMP_MIN", defaults.AmpMin),
			AmpMax:     getEnvFloatOrDefault("AMP_MAX", defaults.AmpMax),
			Scale:      getEnvOrDefault("AMP_SCALE", string(defaults.Scale)),
			Seed:       getEnvInt64OrDefault("SEED", defaults.Seed),
			MaxRedraws: getEnvIntOrDefault("MAX_REDRAWS", defaults.MaxRedraws),
			Workers:    getEnvIntOrDefault("WORKERS", defaults.Workers),
		},
		Output: OutputConfig{
			WorkbookPath: getEnvOrDefault("RESULTS_XLSX", ""),
			ReportPath:   getEnvOrDefault("REPORT_PATH", ""),
			ReportHTML:   getEnvBoolOrDefault("REPORT_HTML", false),
		},
	}

	if err := config.TrialConfig().Validate(); err != nil {
		return nil, errors.Wrap(err, "harness configuration invalid")
	}
	return config, nil
}

// TrialConfig converts the harness section into domain trial parameters
func (c *Config) TrialConfig() trial.Config {
	return trial.Config{
		Trials:     c.Harness.Trials,
		AmpMin:     c.Harness.AmpMin,
		AmpMax:     c.Harness.AmpMax,
		Scale:      trial.AmplitudeScale(c.Harness.Scale),
		Seed:       c.Harness.Seed,
		MaxRedraws: c.Harness.MaxRedraws,
		Workers:    c.Harness.Workers,
	}
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
