package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Archive    ArchiveConfig
	Server     ServerConfig
	OCR        OCRConfig
	Compliance ComplianceConfig
	Detector   DetectorConfig
	Risk       RiskConfig
	Notify     NotifyConfig
}

// ArchiveConfig selects and tunes the analysis-record store.
type ArchiveConfig struct {
	Driver           string // "postgres" or "sqlite"
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
	Addr           string
	MaxUploadBytes int64
}

// OCRConfig holds the text-detection collaborator configuration.
type OCRConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	MaxWait      time.Duration
	StoreBaseURL string
}

// ComplianceConfig holds the tax-compliance collaborator configuration.
type ComplianceConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	APIVersion string
	Timeout    time.Duration
}

// DetectorConfig tunes the duplicate detector.
type DetectorConfig struct {
	Threshold  float64
	WindowDays int
}

// RiskConfig selects the tier threshold pair.
type RiskConfig struct {
	HighThreshold   int
	MediumThreshold int
}

// NotifyConfig holds the chat-delivery collaborator configuration.
type NotifyConfig struct {
	BotToken     string
	AlertChannel string
	Workers      int
	QueueSize    int
	SendTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Archive: ArchiveConfig{
			Driver:           getEnv("ARCHIVE_DRIVER", "sqlite"),
			DSN:              getEnv("ARCHIVE_DSN", "invoicelens.db"),
			MaxConns:         getEnvAsInt32("ARCHIVE_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("ARCHIVE_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("ARCHIVE_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("ARCHIVE_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("ARCHIVE_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("ARCHIVE_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 16<<20)),
		},
		OCR: OCRConfig{
			BaseURL:      getEnv("OCR_BASE_URL", ""),
			APIKey:       getEnv("OCR_API_KEY", ""),
			PollInterval: getEnvAsDuration("OCR_POLL_INTERVAL", 2*time.Second),
			MaxWait:      getEnvAsDuration("OCR_MAX_WAIT", 90*time.Second),
			StoreBaseURL: getEnv("DOC_STORE_BASE_URL", ""),
		},
		Compliance: ComplianceConfig{
			BaseURL:    getEnv("SANDBOX_BASE_URL", "https://api.sandbox.co.in"),
			APIKey:     getEnv("SANDBOX_API_KEY", ""),
			APISecret:  getEnv("SANDBOX_API_SECRET", ""),
			APIVersion: getEnv("SANDBOX_API_VERSION", "1.0"),
			Timeout:    getEnvAsDuration("SANDBOX_TIMEOUT", 15*time.Second),
		},
		Detector: DetectorConfig{
			Threshold:  getEnvAsFloat64("DUPLICATE_THRESHOLD", 0.1),
			WindowDays: getEnvAsInt("DUPLICATE_WINDOW_DAYS", 90),
		},
		Risk: RiskConfig{
			HighThreshold:   getEnvAsInt("RISK_HIGH_THRESHOLD", 60),
			MediumThreshold: getEnvAsInt("RISK_MEDIUM_THRESHOLD", 30),
		},
		Notify: NotifyConfig{
			BotToken:     getEnv("TELEGRAM_TOKEN", ""),
			AlertChannel: getEnv("FRAUD_ALERT_CHANNEL", ""),
			Workers:      getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 64),
			SendTimeout:  getEnvAsDuration("NOTIFY_SEND_TIMEOUT", 10*time.Second),
		},
	}
}

// Validate checks the loaded configuration for required keys.
func (c *Config) Validate() error {
	if c.Archive.DSN == "" {
		return NewAppError("CONFIG_ERROR", "ARCHIVE_DSN is required", ErrInvalidInput)
	}
	if c.Archive.Driver != "postgres" && c.Archive.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "ARCHIVE_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Compliance.APIKey == "" || c.Compliance.APISecret == "" {
		return NewAppError("CONFIG_ERROR", "SANDBOX_API_KEY and SANDBOX_API_SECRET are required", ErrInvalidInput)
	}
	return nil
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
