package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Verify   VerifyConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// LLMConfig holds extraction-model configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// VerifyConfig holds matching and decision thresholds. Every threshold the
// engine uses lives here; nothing reads package-level state.
type VerifyConfig struct {
	SuggestThreshold float64 // best-match score below this -> requires_review
	AutoThreshold    float64 // best-match score at/above this may auto-approve
	AmountTolerance  float64 // currency units treated as an exact amount match
	MaxDeviationFrac float64 // fraction of submission total where amount score hits zero
	CoarseMismatch   float64 // currency units; beyond this the mismatch flag fires
	LowConfidence    float32 // overall extraction confidence below this is flagged
	MaxAttempts      int     // processing attempts beyond this are flagged
	BatchSize        int     // rows claimed per sweep
	Workers          int     // concurrent sweep workers
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			MaxRetries:  getEnvAsInt("OPENAI_MAX_RETRIES", 2),
		},
		Verify: VerifyConfig{
			SuggestThreshold: getEnvAsFloat64("VERIFY_SUGGEST_THRESHOLD", 0.5),
			AutoThreshold:    getEnvAsFloat64("VERIFY_AUTO_THRESHOLD", 0.9),
			AmountTolerance:  getEnvAsFloat64("VERIFY_AMOUNT_TOLERANCE", 1.00),
			MaxDeviationFrac: getEnvAsFloat64("VERIFY_MAX_DEVIATION_FRAC", 0.20),
			CoarseMismatch:   getEnvAsFloat64("VERIFY_COARSE_MISMATCH", 10.00),
			LowConfidence:    getEnvAsFloat32("VERIFY_LOW_CONFIDENCE", 0.3),
			MaxAttempts:      getEnvAsInt("VERIFY_MAX_ATTEMPTS", 3),
			BatchSize:        getEnvAsInt("VERIFY_BATCH_SIZE", 100),
			Workers:          getEnvAsInt("VERIFY_WORKERS", 4),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Verify.SuggestThreshold >= c.Verify.AutoThreshold {
		return NewAppError("CONFIG_ERROR", "suggest threshold must be below auto threshold", ErrInvalidInput)
	}
	return nil
}
