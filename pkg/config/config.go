package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for the application.
// Strategy parameters (scoring weights, sizing, exit rules) live in the
// strategy YAML file, not here; see internal/strategy.
type Config struct {
	// Process
	Env  string // development, staging, production
	Mode string // paper, live

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Disclosure source
	Scraper ScraperConfig

	// Price provider
	Pricing PricingConfig

	// Status API
	APIPort string

	// Strategy file
	StrategyFile string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// ScraperConfig holds the OpenInsider disclosure source configuration
type ScraperConfig struct {
	BaseURL       string
	UserAgent     string
	PageSize      int
	CycleInterval time.Duration // how often the ingestion cycle runs
}

// PricingConfig holds the daily price source configuration
type PricingConfig struct {
	BaseURL        string
	RequestsPerSec float64
	CacheTTL       time.Duration
}

// Load reads configuration from environment variables.
// This is the only place that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Mode: getEnv("TRADING_MODE", "paper"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Scraper: ScraperConfig{
			BaseURL:       getEnv("OPENINSIDER_BASE_URL", "http://openinsider.com"),
			UserAgent:     getEnv("SCRAPER_USER_AGENT", "insiderbot/1.0"),
			PageSize:      getEnvAsInt("SCRAPER_PAGE_SIZE", 100),
			CycleInterval: getEnvAsDuration("CYCLE_INTERVAL", "4h"),
		},

		Pricing: PricingConfig{
			BaseURL:        getEnv("PRICE_BASE_URL", "https://stooq.com"),
			RequestsPerSec: getEnvAsFloat("PRICE_REQUESTS_PER_SEC", 2.0),
			CacheTTL:       getEnvAsDuration("PRICE_CACHE_TTL", "15m"),
		},

		APIPort:      getEnv("API_PORT", "8087"),
		StrategyFile: getEnv("STRATEGY_FILE", "config/strategy.yaml"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Mode != "paper" && c.Mode != "live" {
		return fmt.Errorf("TRADING_MODE must be one of: paper, live")
	}
	return nil
}

// IsLive reports whether the process trades against a real broker
func (c *Config) IsLive() bool {
	return c.Mode == "live"
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
