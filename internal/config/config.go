/**
 * Configuration for the PhotoScan Worker
 *
 * Loads configuration from environment variables matching .env.photoscan.
 * Pipeline tunables (dedup threshold, embossed discount, acceptance floor,
 * strategy timeouts) are carried here so recognition and attribute behavior
 * can be adjusted without touching engine logic.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL       string
	QueueName      string
	LegacyQueueKey string // non-empty bridges the old LIST-based queue

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL        string
	QdrantCollection string

	// Service URLs (classifier and matting are optional collaborators)
	EmbeddingServiceURL string
	EmbeddingAPIKey     string
	ClassifierURL       string
	MattingURL          string
	CatalogURL          string

	// Worker configuration
	WorkerConcurrency int // 0 means auto-size from host resources
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds, whole-job limit

	// Recognition configuration
	TesseractLangs    string
	MultilingualLangs string
	VerticalRotations []int
	StrategyTimeout   int // seconds, applied to each strategy individually
	ClassifierTimeout int // seconds

	// Consolidation and attribute tunables
	DedupThreshold     float64
	EmbossedDiscount   float64
	AcceptanceFloor    float64
	CorroborationBonus float64
	KeywordLimit       int
	MaxImageDimension  int
	RenderDPI          int // raster density for PDF product sheets

	// Optional lexicon catalog override (YAML)
	LexiconPath string

	// Deployment environment
	Environment string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://shelfwise-redis:6379"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "photoscan"),
		LegacyQueueKey:      getEnvOrDefault("LEGACY_QUEUE_KEY", ""),
		DatabaseURL:         getEnvOrThrow("DATABASE_URL"),
		QdrantURL:           getEnvOrDefault("QDRANT_URL", "shelfwise-qdrant:6334"),
		QdrantCollection:    getEnvOrDefault("QDRANT_COLLECTION", "photoscan_transcripts"),
		EmbeddingServiceURL: getEnvOrDefault("EMBEDDING_SERVICE_URL", "http://shelfwise-embeddings:8085"),
		EmbeddingAPIKey:     getEnvOrDefault("EMBEDDING_API_KEY", ""),
		ClassifierURL:       getEnvOrDefault("CLASSIFIER_URL", ""),
		MattingURL:          getEnvOrDefault("MATTING_URL", ""),
		CatalogURL:          getEnvOrDefault("CATALOG_URL", ""),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 0),
		MaxFileSize:         getEnvAsInt64OrDefault("MAX_FILE_SIZE", 52428800), // 50MB
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		TesseractLangs:      getEnvOrDefault("TESSERACT_LANGS", "eng"),
		MultilingualLangs:   getEnvOrDefault("MULTILINGUAL_LANGS", "eng+spa+fra+deu"),
		VerticalRotations:   getEnvAsAnglesOrDefault("VERTICAL_ROTATIONS", []int{90, 270}),
		StrategyTimeout:     getEnvAsIntOrDefault("STRATEGY_TIMEOUT_SECONDS", 20),
		ClassifierTimeout:   getEnvAsIntOrDefault("CLASSIFIER_TIMEOUT_SECONDS", 5),
		DedupThreshold:      getEnvAsFloatOrDefault("DEDUP_THRESHOLD", 0.85),
		EmbossedDiscount:    getEnvAsFloatOrDefault("EMBOSSED_DISCOUNT", 0.80),
		AcceptanceFloor:     getEnvAsFloatOrDefault("ACCEPTANCE_FLOOR", 0.50),
		CorroborationBonus:  getEnvAsFloatOrDefault("CORROBORATION_BONUS", 0.05),
		KeywordLimit:        getEnvAsIntOrDefault("KEYWORD_LIMIT", 10),
		MaxImageDimension:   getEnvAsIntOrDefault("MAX_IMAGE_DIMENSION", 2048),
		RenderDPI:           getEnvAsIntOrDefault("RENDER_DPI", 150),
		LexiconPath:         getEnvOrDefault("LEXICON_PATH", ""),
		Environment:         getEnvOrDefault("ENVIRONMENT", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency < 0 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 0 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.DedupThreshold < 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be between 0 and 1, got %f", c.DedupThreshold)
	}

	if c.EmbossedDiscount <= 0 || c.EmbossedDiscount > 1 {
		return fmt.Errorf("EMBOSSED_DISCOUNT must be in (0, 1], got %f", c.EmbossedDiscount)
	}

	if c.AcceptanceFloor < 0 || c.AcceptanceFloor > 1 {
		return fmt.Errorf("ACCEPTANCE_FLOOR must be between 0 and 1, got %f", c.AcceptanceFloor)
	}

	if c.CorroborationBonus < 0 || c.CorroborationBonus > 0.5 {
		return fmt.Errorf("CORROBORATION_BONUS must be between 0 and 0.5, got %f", c.CorroborationBonus)
	}

	if c.StrategyTimeout < 1 {
		return fmt.Errorf("STRATEGY_TIMEOUT_SECONDS must be at least 1, got %d", c.StrategyTimeout)
	}

	if c.KeywordLimit < 1 || c.KeywordLimit > 100 {
		return fmt.Errorf("KEYWORD_LIMIT must be between 1 and 100, got %d", c.KeywordLimit)
	}

	if c.MaxImageDimension < 256 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be at least 256, got %d", c.MaxImageDimension)
	}

	if c.RenderDPI < 72 || c.RenderDPI > 600 {
		return fmt.Errorf("RENDER_DPI must be between 72 and 600, got %d", c.RenderDPI)
	}

	if len(c.VerticalRotations) == 0 {
		return fmt.Errorf("VERTICAL_ROTATIONS must list at least one angle")
	}
	for _, angle := range c.VerticalRotations {
		if angle != 90 && angle != 180 && angle != 270 {
			return fmt.Errorf("VERTICAL_ROTATIONS accepts only 90, 180 and 270, got %d", angle)
		}
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsAnglesOrDefault parses a comma-separated list of rotation angles
func getEnvAsAnglesOrDefault(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	angles := make([]int, 0, len(parts))
	for _, part := range parts {
		angle, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		angles = append(angles, angle)
	}

	if len(angles) == 0 {
		return defaultValue
	}
	return angles
}
