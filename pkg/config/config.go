package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Only this package reads environment variables.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	Store StoreConfig

	// Database (optional snapshot archive)
	Database DatabaseConfig

	// Redis (optional live cache)
	Redis RedisConfig

	// Upstream feeds
	Feeds FeedsConfig

	// Request dispatching
	Dispatch DispatchConfig

	// Retry policy
	Retry RetryConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// StoreConfig holds the dual-location artifact store configuration.
type StoreConfig struct {
	PrimaryDir string
	BackupDir  string
}

// DatabaseConfig holds PostgreSQL configuration. The archive is optional;
// it is enabled only when URL is set.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether the Postgres archive is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FeedsConfig holds upstream quote feed configuration.
type FeedsConfig struct {
	ShanghaiBaseURL  string
	EastmoneyBaseURL string
	Timeout          time.Duration
	PageSize         int
}

// DispatchConfig holds request scheduler configuration.
type DispatchConfig struct {
	MaxConcurrent int
	PaceMin       time.Duration
	PaceMax       time.Duration
	Burst         int
	BurstWindow   time.Duration
}

// RetryConfig holds retry coordinator configuration.
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Store: StoreConfig{
			PrimaryDir: getEnv("STORE_PRIMARY_DIR", "data"),
			BackupDir:  getEnv("STORE_BACKUP_DIR", "data_backup"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
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

		Feeds: FeedsConfig{
			ShanghaiBaseURL:  getEnv("FEED_SH_BASE_URL", "https://yunhq.sse.com.cn:32042"),
			EastmoneyBaseURL: getEnv("FEED_EM_BASE_URL", "https://push2.eastmoney.com"),
			Timeout:          getEnvAsDuration("FEED_TIMEOUT", "15s"),
			PageSize:         getEnvAsInt("FEED_PAGE_SIZE", 200),
		},

		Dispatch: DispatchConfig{
			MaxConcurrent: getEnvAsInt("DISPATCH_MAX_CONCURRENT", 3),
			PaceMin:       getEnvAsDuration("DISPATCH_PACE_MIN", "200ms"),
			PaceMax:       getEnvAsDuration("DISPATCH_PACE_MAX", "800ms"),
			Burst:         getEnvAsInt("DISPATCH_BURST", 10),
			BurstWindow:   getEnvAsDuration("DISPATCH_BURST_WINDOW", "10s"),
		},

		Retry: RetryConfig{
			MaxAttempts:       getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:         getEnvAsDuration("RETRY_BASE_DELAY", "1s"),
			MaxDelay:          getEnvAsDuration("RETRY_MAX_DELAY", "30s"),
			BackoffMultiplier: getEnvAsFloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are consistent.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Store.PrimaryDir == "" || c.Store.BackupDir == "" {
		return fmt.Errorf("STORE_PRIMARY_DIR and STORE_BACKUP_DIR are required")
	}
	if c.Store.PrimaryDir == c.Store.BackupDir {
		return fmt.Errorf("primary and backup store directories must differ")
	}

	if c.Dispatch.MaxConcurrent < 1 {
		return fmt.Errorf("DISPATCH_MAX_CONCURRENT must be at least 1")
	}
	if c.Dispatch.PaceMax < c.Dispatch.PaceMin {
		return fmt.Errorf("DISPATCH_PACE_MAX must be >= DISPATCH_PACE_MIN")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be >= 1.0")
	}

	return nil
}

// Helper functions (private, only used within this file)

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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
