package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	OCR      OCRConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPAddr string
}

// StorageConfig holds object storage configuration. BaseURL is an afs URL
// (file:///var/lib/docintel, s3://bucket/prefix, gs://bucket/prefix, ...).
type StorageConfig struct {
	BaseURL string
	HashKey string // hex-encoded 32-byte highwayhash key
}

// OCRConfig selects and configures the OCR provider.
type OCRConfig struct {
	Provider string // "documentai" | "azure" | "tesseract"

	// Google Document AI.
	GoogleProjectID   string
	GoogleLocation    string
	GoogleProcessorID string

	// Azure Computer Vision.
	AzureEndpoint string
	AzureAPIKey   string

	// Local Tesseract engine.
	TesseractLangs string
	TesseractDPI   int
}

// WorkerConfig tunes the async processing pool.
type WorkerConfig struct {
	Workers         int
	QueueSize       int
	ProcessTimeout  time.Duration
	MaxAttempts     int
	ReviewThreshold float32
}

// LoadConfig loads configuration from environment variables.
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
		Storage: StorageConfig{
			BaseURL: getEnv("STORAGE_BASE_URL", "file:///var/lib/docintel"),
			HashKey: getEnv("STORAGE_HASH_KEY", ""),
		},
		OCR: OCRConfig{
			Provider:          getEnv("OCR_PROVIDER", "tesseract"),
			GoogleProjectID:   getEnv("GOOGLE_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
			GoogleLocation:    getEnv("GOOGLE_LOCATION", "us"),
			GoogleProcessorID: getEnv("GOOGLE_PROCESSOR_ID", ""),
			AzureEndpoint:     getEnv("AZURE_CV_ENDPOINT", ""),
			AzureAPIKey:       getEnv("AZURE_CV_API_KEY", ""),
			TesseractLangs:    getEnv("TESSERACT_LANGS", "eng"),
			TesseractDPI:      getEnvAsInt("TESSERACT_DPI", 300),
		},
		Worker: WorkerConfig{
			Workers:         getEnvAsInt("WORKERS", 4),
			QueueSize:       getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout:  getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
			MaxAttempts:     getEnvAsInt("MAX_ATTEMPTS", 3),
			ReviewThreshold: getEnvAsFloat32("REVIEW_THRESHOLD", 0.60),
		},
	}
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewValidationError("DB_URL", "is required")
	}
	if c.Server.HTTPAddr == "" {
		return NewValidationError("HTTP_ADDR", "is required")
	}
	if c.Storage.BaseURL == "" {
		return NewValidationError("STORAGE_BASE_URL", "is required")
	}
	return nil
}

// Helper functions for environment variable parsing.
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
