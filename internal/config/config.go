package config

import (
	"os"
	"strconv"
	"time"

	"gocorr/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	AI       AIConfig
	Server   ServerConfig
	Analysis AnalysisConfig
	Database DatabaseConfig
}

// AIConfig holds LLM settings for the column-mapping agent
type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// AnalysisConfig holds correlation analysis settings
type AnalysisConfig struct {
	MinSampleSize        int
	CorrelationPrecision int
	MaxFileSizeMB        int
	MaxGroupParallelism  int
}

// DatabaseConfig holds the optional SQL data-source settings
type DatabaseConfig struct {
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		AI:       loadAIConfig(),
		Server:   loadServerConfig(),
		Analysis: loadAnalysisConfig(),
		Database: loadDatabaseConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAIConfig() AIConfig {
	return AIConfig{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:       getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		MaxTokens:   getEnvIntOrDefault("MAX_TOKENS", 2000),
		Temperature: getEnvFloatOrDefault("TEMPERATURE", 0.0),
		Timeout:     getEnvDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
		MaxRetries:  getEnvIntOrDefault("MAPPING_MAX_RETRIES", 3),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MinSampleSize:        getEnvIntOrDefault("MIN_SAMPLE_SIZE", 15),
		CorrelationPrecision: getEnvIntOrDefault("CORRELATION_PRECISION", 3),
		MaxFileSizeMB:        getEnvIntOrDefault("MAX_FILE_SIZE_MB", 100),
		MaxGroupParallelism:  getEnvIntOrDefault("MAX_GROUP_PARALLELISM", 4),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL: os.Getenv("DATABASE_URL"),
	}
}

func validateConfig(config *Config) error {
	if config.AI.APIKey == "" {
		return errors.ConfigInvalid("OPENAI_API_KEY is required")
	}
	if config.Analysis.MinSampleSize < 1 {
		return errors.ConfigInvalid("MIN_SAMPLE_SIZE must be at least 1")
	}
	if config.AI.MaxRetries < 1 {
		return errors.ConfigInvalid("MAPPING_MAX_RETRIES must be at least 1")
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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
