package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Provider configuration
	GeminiAPIKey string
	GeminiTier   string
	DefaultModel string

	// Markdown conversion (parallel converter)
	MarkdownMaxWorkers     int
	MarkdownWorkerKind     string // "thread" or "process"; both run goroutine pools
	MarkdownTimeoutPerFile int    // seconds

	// AI processing (dispatcher + extractor)
	AIMaxConcurrentItems int
	AITimeoutPerBatch    int // seconds, applied per extraction
	AIRetryAttempts      int
	EnablePartialResults bool

	// Summarization
	SummarizationTokenThreshold int
	SummarizationModel          string

	// Result cache
	CacheEnabled         bool
	CacheDBPath          string
	CacheTTLHours        int
	CacheMaxEntries      int
	CacheHashAlgorithm   string // sha256, sha1, md5
	CacheMaxEntrySize    int
	CacheCleanupInterval int // hours

	// File lifecycle
	FileCleanupStrategy      string // "reference_counting" or "stream_complete"
	MaxFileRetention         int    // seconds
	FileCleanupCheckInterval int    // seconds
	UploadsDir               string
	TempExtractDir           string

	// Run ledger
	LogsDBEnabled bool
	LogsDBPath    string

	// PDF classifier
	PDFMinCharsPerPage          int
	PDFTextPageThresholdPercent int
	OCREnabled                  bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB per upload

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),
		DefaultModel: getEnv("DEFAULT_MODEL", "gemini-2.0-flash"),

		MarkdownMaxWorkers:     getEnvInt("MARKDOWN_MAX_WORKERS", 4),
		MarkdownWorkerKind:     getEnv("MARKDOWN_WORKER_KIND", "thread"),
		MarkdownTimeoutPerFile: getEnvInt("MARKDOWN_TIMEOUT_PER_FILE", 120),

		AIMaxConcurrentItems: getEnvInt("AI_MAX_CONCURRENT_ITEMS", 3),
		AITimeoutPerBatch:    getEnvInt("AI_TIMEOUT_PER_BATCH", 300),
		AIRetryAttempts:      getEnvInt("AI_RETRY_ATTEMPTS", 3),
		EnablePartialResults: getEnvBool("STREAMING_ENABLE_PARTIAL", true),

		SummarizationTokenThreshold: getEnvInt("SUMMARIZATION_TOKEN_THRESHOLD", 200000),
		SummarizationModel:          getEnv("SUMMARIZATION_MODEL", "gemini-2.0-flash"),

		CacheEnabled:         getEnvBool("RESULT_CACHE_ENABLED", true),
		CacheDBPath:          getEnv("RESULT_CACHE_DB_PATH", "./data/result_cache.db"),
		CacheTTLHours:        getEnvInt("RESULT_CACHE_TTL_HOURS", 24),
		CacheMaxEntries:      getEnvInt("RESULT_CACHE_MAX_ENTRIES", 1000),
		CacheHashAlgorithm:   getEnv("RESULT_CACHE_HASH_ALGORITHM", "sha256"),
		CacheMaxEntrySize:    getEnvInt("RESULT_CACHE_MAX_ENTRY_SIZE_BYTES", 1048576),
		CacheCleanupInterval: getEnvInt("RESULT_CACHE_CLEANUP_INTERVAL_HOURS", 6),

		FileCleanupStrategy:      getEnv("FILE_CLEANUP_STRATEGY", "stream_complete"),
		MaxFileRetention:         getEnvInt("MAX_FILE_RETENTION", 3600),
		FileCleanupCheckInterval: getEnvInt("FILE_CLEANUP_CHECK_INTERVAL", 300),
		UploadsDir:               getEnv("UPLOADS_DIR", "./storage/uploads"),
		TempExtractDir:           getEnv("TEMP_EXTRACT_DIR", "./storage/temp_extract"),

		LogsDBEnabled: getEnvBool("PROCESSING_LOGS_ENABLED", true),
		LogsDBPath:    getEnv("PROCESSING_LOGS_DB_PATH", "./data/processing_logs.db"),

		PDFMinCharsPerPage:          getEnvInt("PDF_MIN_CHARS_PER_PAGE", 50),
		PDFTextPageThresholdPercent: getEnvInt("PDF_TEXT_PAGE_THRESHOLD_PERCENT", 70),
		OCREnabled:                  getEnvBool("OCR_ENABLED", true),
	}

	// Validate enumerated options
	switch cfg.CacheHashAlgorithm {
	case "sha256", "sha1", "md5":
	default:
		return nil, fmt.Errorf("RESULT_CACHE_HASH_ALGORITHM must be sha256, sha1 or md5 (got %q)", cfg.CacheHashAlgorithm)
	}

	switch cfg.FileCleanupStrategy {
	case "reference_counting", "stream_complete":
	default:
		return nil, fmt.Errorf("FILE_CLEANUP_STRATEGY must be reference_counting or stream_complete (got %q)", cfg.FileCleanupStrategy)
	}

	switch cfg.MarkdownWorkerKind {
	case "thread", "process":
	default:
		return nil, fmt.Errorf("MARKDOWN_WORKER_KIND must be thread or process (got %q)", cfg.MarkdownWorkerKind)
	}

	return cfg, nil
}

var envSubstRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv substitutes ${NAME} and ${NAME:-default} references inside a
// config string value.
func ExpandEnv(value string) string {
	return envSubstRe.ReplaceAllStringFunc(value, func(match string) string {
		groups := envSubstRe.FindStringSubmatch(match)
		if v := os.Getenv(groups[1]); v != "" {
			return v
		}
		return groups[3]
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return ExpandEnv(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
