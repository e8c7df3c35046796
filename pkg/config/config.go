package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the scanner
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Quote provider
	Provider ProviderConfig

	// Pipeline knobs
	Cache     CacheConfig
	Scan      ScanConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig

	// Strategy thresholds (YAML)
	StrategyConfigPath string

	// Symbol universe
	Universe UniverseConfig

	// Optional infrastructure
	Database DatabaseConfig
	Redis    RedisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// ProviderConfig holds the delayed quote provider settings
type ProviderConfig struct {
	Timeout time.Duration // per request, rounded up to whole seconds
}

// CacheConfig holds quote cache settings
type CacheConfig struct {
	TTL           time.Duration
	SweepSchedule string // cron expression (with seconds)
}

// ScanConfig holds batch orchestration settings
type ScanConfig struct {
	BatchSize  int
	BatchPause time.Duration
	Workers    int
	Schedule   string // cron expression for the scheduled scan, empty = disabled
	Timeout    time.Duration
}

// RateLimitConfig holds outbound throttling settings
type RateLimitConfig struct {
	RequestsPerMinute int
	MinInterval       time.Duration
}

// RetryConfig holds retry/backoff settings for provider calls
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      float64 // fraction of the wait, e.g. 0.1 = up to +10%
}

// UniverseConfig selects where the symbol universe comes from
type UniverseConfig struct {
	Source string // embedded, file, postgres
	File   string
}

// DatabaseConfig holds PostgreSQL configuration (universe source only)
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration (shared rate window)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Universe sources
const (
	UniverseEmbedded = "embedded"
	UniverseFile     = "file"
	UniversePostgres = "postgres"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Provider: ProviderConfig{
			Timeout: getEnvAsDuration("PROVIDER_TIMEOUT", "15s"),
		},

		Cache: CacheConfig{
			TTL:           getEnvAsDuration("CACHE_TTL", "15m"),
			SweepSchedule: getEnv("CACHE_SWEEP_SCHEDULE", "0 */10 * * * *"),
		},

		Scan: ScanConfig{
			BatchSize:  getEnvAsInt("SCAN_BATCH_SIZE", 50),
			BatchPause: getEnvAsDuration("SCAN_BATCH_PAUSE", "500ms"),
			Workers:    getEnvAsInt("SCAN_WORKERS", 5),
			Schedule:   getEnv("SCAN_SCHEDULE", ""),
			Timeout:    getEnvAsDuration("SCAN_TIMEOUT", "30m"),
		},

		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
			MinInterval:       getEnvAsDuration("RATE_MIN_INTERVAL", "200ms"),
		},

		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
			InitialWait: getEnvAsDuration("RETRY_INITIAL_WAIT", "500ms"),
			MaxWait:     getEnvAsDuration("RETRY_MAX_WAIT", "30s"),
			Jitter:      getEnvAsFloat("RETRY_JITTER", 0.1),
		},

		StrategyConfigPath: getEnv("STRATEGY_CONFIG", ""),

		Universe: UniverseConfig{
			Source: getEnv("UNIVERSE_SOURCE", UniverseEmbedded),
			File:   getEnv("UNIVERSE_FILE", ""),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be positive")
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("SCAN_WORKERS must be positive")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("RETRY_JITTER must be within [0, 1]")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	switch c.Universe.Source {
	case UniverseEmbedded:
	case UniverseFile:
		if c.Universe.File == "" {
			return fmt.Errorf("UNIVERSE_FILE is required when UNIVERSE_SOURCE=file")
		}
	case UniversePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when UNIVERSE_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("UNIVERSE_SOURCE must be one of: embedded, file, postgres")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
