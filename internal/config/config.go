package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ocrapi/internal/logger"
)

// Cache backend and OCR provider selectors.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	ProviderVision     = "vision"
	ProviderDocumentAI = "documentai"
	ProviderTesseract  = "tesseract"
)

type Config struct {
	// Server Configuration
	Port           int
	RequestTimeout int // seconds

	// Upload Validation
	MaxFileSizeMB     int
	AllowedExtensions []string
	AllowedMimeTypes  []string

	// Result Cache
	CacheBackend    string
	CacheMaxEntries int
	CacheTTLSeconds int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Batch Processing
	MaxBatchSize int
	BatchWorkers int

	// OCR Provider
	OCRProvider           string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Auth (static bearer token; off by default)
	AuthEnabled bool
	APIToken    string

	// Rate Limiting (off by default)
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		Port:                  getEnvInt("PORT", 8080),
		RequestTimeout:        getEnvInt("REQUEST_TIMEOUT_SECONDS", 60),
		MaxFileSizeMB:         getEnvInt("MAX_FILE_SIZE_MB", 10),
		AllowedExtensions:     getEnvList("ALLOWED_EXTENSIONS", "jpg,jpeg,png"),
		AllowedMimeTypes:      getEnvList("ALLOWED_MIME_TYPES", "image/jpeg,image/png"),
		CacheBackend:          getEnv("CACHE_BACKEND", CacheBackendMemory),
		CacheMaxEntries:       getEnvInt("CACHE_MAX_ENTRIES", 100),
		CacheTTLSeconds:       getEnvInt("CACHE_TTL_SECONDS", 3600),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		MaxBatchSize:          getEnvInt("MAX_BATCH_SIZE", 10),
		BatchWorkers:          getEnvInt("BATCH_WORKERS", 4),
		OCRProvider:           getEnv("OCR_PROVIDER", ProviderVision),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		AuthEnabled:           getEnvBool("AUTH_ENABLED", false),
		APIToken:              getEnv("API_TOKEN", ""),
		RateLimitEnabled:      getEnvBool("RATE_LIMIT_ENABLED", false),
		RateLimitRPS:          getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:        getEnvInt("RATE_LIMIT_BURST", 20),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}
	if len(c.AllowedMimeTypes) == 0 {
		return fmt.Errorf("ALLOWED_MIME_TYPES must not be empty")
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive")
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive")
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive")
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend)
	}
	switch c.OCRProvider {
	case ProviderVision, ProviderDocumentAI, ProviderTesseract:
	default:
		return fmt.Errorf("OCR_PROVIDER must be one of %q, %q, %q, got %q",
			ProviderVision, ProviderDocumentAI, ProviderTesseract, c.OCRProvider)
	}
	if c.OCRProvider == ProviderDocumentAI && c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required when OCR_PROVIDER=documentai")
	}
	if c.AuthEnabled && c.APIToken == "" {
		return fmt.Errorf("API_TOKEN is required when AUTH_ENABLED=true")
	}
	return nil
}

// MaxFileSizeBytes returns the upload size limit in bytes.
func (c *Config) MaxFileSizeBytes() int {
	return c.MaxFileSizeMB * 1024 * 1024
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
