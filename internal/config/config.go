package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings. LocalDev selects the SQLite file at DatabasePath,
	// otherwise DatabaseURL is a PostgreSQL connection string.
	LocalDev     bool
	DatabaseURL  string
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Court settings
	County       string
	CourtBaseURL string

	// Fetcher settings
	FetchBackend   string
	FixtureDir     string
	ScraperTimeout time.Duration
	HeadlessMode   bool
	UserAgent      string
	BrowserPath    string

	// Retry settings for the fetch stage
	FetchMaxRetries     int
	FetchInitialBackoff time.Duration
	FetchMaxBackoff     time.Duration

	// Concurrency settings
	MaxConcurrentScrapes int
	WorkerPoolSize       int

	// Matching settings. VocabularyFile replaces the embedded vocabulary.
	VocabularyFile            string
	MatchThreshold            float64
	OverwriteDispositionAudit bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "8080"),
		LocalDev:     getBool("LOCAL_DEV", false),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DatabasePath: getEnv("DATABASE_PATH", "./data/eviction_hearings.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		County:       strings.ToLower(getEnv("COUNTY", "travis")),
		CourtBaseURL: getEnv("COURT_BASE_URL", ""),
		FetchBackend: strings.ToLower(getEnv("FETCH_BACKEND", "rod")),
		FixtureDir:   getEnv("FIXTURE_DIR", "./testdata/pages"),
		UserAgent:    getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		BrowserPath:  getEnv("ROD_BROWSER_PATH", ""),
		HeadlessMode: getBool("HEADLESS_MODE", true),

		VocabularyFile:            getEnv("VOCABULARY_FILE", ""),
		OverwriteDispositionAudit: getBool("OVERWRITE_DISPOSITION_AUDIT", false),
	}

	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	scraperTimeout, err := strconv.Atoi(getEnv("SCRAPER_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
	}
	cfg.ScraperTimeout = time.Duration(scraperTimeout) * time.Second

	cfg.MaxConcurrentScrapes, err = strconv.Atoi(getEnv("MAX_CONCURRENT_SCRAPES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_SCRAPES: %w", err)
	}

	cfg.WorkerPoolSize, err = strconv.Atoi(getEnv("WORKER_POOL_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: %w", err)
	}

	cfg.FetchMaxRetries, err = strconv.Atoi(getEnv("FETCH_MAX_RETRIES", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_MAX_RETRIES: %w", err)
	}

	initialBackoff, err := strconv.Atoi(getEnv("FETCH_INITIAL_BACKOFF", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INITIAL_BACKOFF: %w", err)
	}
	cfg.FetchInitialBackoff = time.Duration(initialBackoff) * time.Millisecond

	maxBackoff, err := strconv.Atoi(getEnv("FETCH_MAX_BACKOFF", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_MAX_BACKOFF: %w", err)
	}
	cfg.FetchMaxBackoff = time.Duration(maxBackoff) * time.Millisecond

	cfg.MatchThreshold, err = strconv.ParseFloat(getEnv("MATCH_THRESHOLD", "0.8"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_THRESHOLD: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !c.LocalDev && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required unless LOCAL_DEV=true")
	}
	if c.MaxConcurrentScrapes < 1 {
		return fmt.Errorf("MAX_CONCURRENT_SCRAPES must be at least 1, got %d", c.MaxConcurrentScrapes)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0, 1], got %v", c.MatchThreshold)
	}
	switch c.FetchBackend {
	case "rod", "chromedp", "fixture":
	default:
		return fmt.Errorf("unknown FETCH_BACKEND %q", c.FetchBackend)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
