package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string

	// JWT (validation only, tokens are issued elsewhere)
	JWTSecret string

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string

	// Source locks. Without REDIS_ADDRESS an in-process lock is used.
	RedisAddress string
	LockTTL      time.Duration
	LockWait     time.Duration

	// Ledger
	BaseCurrency  string
	StatsCacheTTL time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		RedisAddress:   getEnv("REDIS_ADDRESS", ""),
		LockTTL:        time.Duration(getEnvAsInt("LOCK_TTL_SECONDS", 30)) * time.Second,
		LockWait:       time.Duration(getEnvAsInt("LOCK_WAIT_SECONDS", 5)) * time.Second,
		BaseCurrency:   strings.ToUpper(getEnv("BASE_CURRENCY", "AED")),
		StatsCacheTTL:  time.Duration(getEnvAsInt("STATS_CACHE_TTL_MINUTES", 15)) * time.Minute,
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if len(cfg.BaseCurrency) != 3 {
		return nil, fmt.Errorf("BASE_CURRENCY must be a 3-letter code, got %q", cfg.BaseCurrency)
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
