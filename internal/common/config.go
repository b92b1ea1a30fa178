package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Thresholds ThresholdConfig
	Limits     LimitConfig
	Export     ExportConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	PageWorkers int
	MaxRetries  int
	RetryDelay  time.Duration
}

// LLMConfig holds external-model configuration
type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float64
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxCallsPerJob int
	StripPII       bool
}

// ThresholdConfig holds the calibrated decision thresholds. Tunable via
// env so tests can exercise alternate calibrations.
type ThresholdConfig struct {
	FlagFloor       float64 // below this a required field triggers fallback
	AutoAccept      float64 // at or above this a field (and the early-exit) auto-accepts
	NearDupRatio    float64 // near-duplicate similarity threshold
	MaxTotalAmount  float64 // absolute total-amount sanity ceiling
	AmountTolerance float64 // subtotal+tax vs total tolerance
	SlowPipeline    time.Duration
}

// LimitConfig holds per-call-class rate budgets and queue bounds.
type LimitConfig struct {
	Window       time.Duration
	OCRMaxCalls  int
	LLMMaxCalls  int
	DocAIMax     int
	MaxQueueSize int
	Workers      int
	QueueSize    int
	JobTimeout   time.Duration
}

// ExportConfig holds export-related configuration
type ExportConfig struct {
	VendorsCSV string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        getEnv("DB_PATH", "rexcan.db"),
			BusyTimeout: getEnvAsDuration("DB_BUSY_TIMEOUT", 5*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			PageWorkers: getEnvAsInt("OCR_PAGE_WORKERS", 3),
			MaxRetries:  getEnvAsInt("OCR_MAX_RETRIES", 2),
			RetryDelay:  getEnvAsDuration("OCR_RETRY_DELAY", time.Second),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			Temperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.1),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
			MaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 2),
			RetryDelay:     getEnvAsDuration("LLM_RETRY_DELAY", 500*time.Millisecond),
			MaxCallsPerJob: getEnvAsInt("LLM_MAX_CALLS_PER_JOB", 10),
			StripPII:       getEnvAsBool("PII_DETECTION_ENABLED", true),
		},
		Thresholds: ThresholdConfig{
			FlagFloor:       getEnvAsFloat("CONF_FLAG_FLOOR", 0.5),
			AutoAccept:      getEnvAsFloat("CONF_AUTO_ACCEPT", 0.85),
			NearDupRatio:    getEnvAsFloat("NEAR_DUP_RATIO", 0.95),
			MaxTotalAmount:  getEnvAsFloat("MAX_TOTAL_AMOUNT", 1_000_000),
			AmountTolerance: getEnvAsFloat("AMOUNT_TOLERANCE", 0.01),
			SlowPipeline:    getEnvAsDuration("SLOW_PIPELINE", 10*time.Second),
		},
		Limits: LimitConfig{
			Window:       getEnvAsDuration("RATE_WINDOW", time.Minute),
			OCRMaxCalls:  getEnvAsInt("RATE_OCR_MAX", 20),
			LLMMaxCalls:  getEnvAsInt("RATE_LLM_MAX", 30),
			DocAIMax:     getEnvAsInt("RATE_DOCAI_MAX", 10),
			MaxQueueSize: getEnvAsInt("RATE_QUEUE_MAX", 100),
			Workers:      getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:    getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			JobTimeout:   getEnvAsDuration("PIPELINE_JOB_TIMEOUT", 3*time.Minute),
		},
		Export: ExportConfig{
			VendorsCSV: getEnv("VENDORS_CSV", "data/vendors.csv"),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "DB_PATH is required", ErrInvalidInput)
	}
	if c.Thresholds.FlagFloor >= c.Thresholds.AutoAccept {
		return NewAppError("CONFIG_ERROR", "CONF_FLAG_FLOOR must be below CONF_AUTO_ACCEPT", ErrInvalidInput)
	}
	return nil
}
