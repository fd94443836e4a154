/**
 * Configuration for the Passport OCR Worker
 *
 * Loads configuration from environment variables (optionally preloaded from
 * .env by the caller) through viper.
 */

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// OCR engines
const (
	EngineOCRSpace  = "ocrspace"
	EngineTesseract = "tesseract"
)

// Queue backends
const (
	QueueBackendRedis = "redis"
	QueueBackendAsynq = "asynq"
	QueueBackendNone  = "none"
)

// Config holds worker configuration
type Config struct {
	// OCR configuration
	OCREngine         string        `mapstructure:"OCR_ENGINE"`
	OCRSpaceAPIKey    string        `mapstructure:"OCR_SPACE_API_KEY"`
	OCRSpaceURL       string        `mapstructure:"OCR_SPACE_URL"`
	OCRTimeout        time.Duration `mapstructure:"OCR_TIMEOUT"`
	TesseractLanguage string        `mapstructure:"TESSERACT_LANGUAGE"`

	// Redis / queue configuration
	RedisURL     string        `mapstructure:"REDIS_URL"`
	QueueBackend string        `mapstructure:"QUEUE_BACKEND"`
	QueueName    string        `mapstructure:"QUEUE_NAME"`
	ResultTTL    time.Duration `mapstructure:"RESULT_TTL"`

	// PostgreSQL job tracking. Empty disables tracking.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Worker configuration
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	ProcessingTimeout time.Duration `mapstructure:"PROCESSING_TIMEOUT"`
	MaxFileSize       int64         `mapstructure:"MAX_FILE_SIZE"`

	// HTTP API
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`
	NodeEnv  string `mapstructure:"NODE_ENV"`
}

var keys = []string{
	"OCR_ENGINE", "OCR_SPACE_API_KEY", "OCR_SPACE_URL", "OCR_TIMEOUT", "TESSERACT_LANGUAGE",
	"REDIS_URL", "QUEUE_BACKEND", "QUEUE_NAME", "RESULT_TTL",
	"DATABASE_URL",
	"WORKER_CONCURRENCY", "PROCESSING_TIMEOUT", "MAX_FILE_SIZE",
	"HTTP_ADDR",
	"LOG_LEVEL", "NODE_ENV",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.OCREngine = strings.ToLower(cfg.OCREngine)
	cfg.QueueBackend = strings.ToLower(cfg.QueueBackend)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OCR_ENGINE", EngineOCRSpace)
	v.SetDefault("OCR_SPACE_API_KEY", "")
	v.SetDefault("OCR_SPACE_URL", "https://api.ocr.space/parse/image")
	v.SetDefault("OCR_TIMEOUT", 60*time.Second)
	v.SetDefault("TESSERACT_LANGUAGE", "eng")

	v.SetDefault("REDIS_URL", "redis://nexus-redis:6379")
	v.SetDefault("QUEUE_BACKEND", QueueBackendRedis)
	v.SetDefault("QUEUE_NAME", "passport-ocr")
	v.SetDefault("RESULT_TTL", 24*time.Hour)

	v.SetDefault("DATABASE_URL", "")

	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("PROCESSING_TIMEOUT", 2*time.Minute)
	v.SetDefault("MAX_FILE_SIZE", int64(10*1024*1024)) // 10MB

	v.SetDefault("HTTP_ADDR", ":8097")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("NODE_ENV", "development")
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineOCRSpace:
		if c.OCRSpaceAPIKey == "" {
			return fmt.Errorf("OCR_SPACE_API_KEY is required when OCR_ENGINE=%s", EngineOCRSpace)
		}
		if c.OCRSpaceURL == "" {
			return fmt.Errorf("OCR_SPACE_URL is required when OCR_ENGINE=%s", EngineOCRSpace)
		}
	case EngineTesseract:
	default:
		return fmt.Errorf("OCR_ENGINE must be %s or %s, got %q", EngineOCRSpace, EngineTesseract, c.OCREngine)
	}

	switch c.QueueBackend {
	case QueueBackendRedis, QueueBackendAsynq:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when QUEUE_BACKEND=%s", c.QueueBackend)
		}
		if c.QueueName == "" {
			return fmt.Errorf("QUEUE_NAME is required when QUEUE_BACKEND=%s", c.QueueBackend)
		}
	case QueueBackendNone:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be redis, asynq or none, got %q", c.QueueBackend)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 52428800 { // 1KB to 50MB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 50MB, got %d", c.MaxFileSize)
	}

	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive, got %v", c.OCRTimeout)
	}

	if c.ProcessingTimeout < c.OCRTimeout {
		return fmt.Errorf("PROCESSING_TIMEOUT (%v) must not be shorter than OCR_TIMEOUT (%v)", c.ProcessingTimeout, c.OCRTimeout)
	}

	return nil
}

// Development reports whether the worker runs outside production
func (c *Config) Development() bool {
	return c.NodeEnv != "production"
}

// QueueEnabled reports whether a background queue consumer should run
func (c *Config) QueueEnabled() bool {
	return c.QueueBackend != QueueBackendNone
}
