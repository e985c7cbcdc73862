// Package config provides configuration management for the wallet sync
// application. It loads configuration from environment variables and .env
// files.
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
	Server    ServerConfig
	Database  DatabaseConfig
	Providers ProvidersConfig
	Pricing   PricingConfig
	Backfill  BackfillConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ProvidersConfig holds per-ecosystem data provider configuration
type ProvidersConfig struct {
	EVM    ProviderConfig
	UTXO   ProviderConfig
	Solana ProviderConfig
}

// ProviderConfig holds configuration for one ecosystem provider
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	// RatePerSecond and Burst bound every outbound call to this provider;
	// workers acquire a permit before each request.
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// PricingConfig holds pricing provider configuration
type PricingConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	RefreshInterval time.Duration // how often the catalog's market data is refreshed
}

// BackfillConfig holds backfill coordination configuration
type BackfillConfig struct {
	MaxChunks      int           // chunks per range-capable plan
	Workers        int           // chunk worker pool size
	MaxRetries     int           // per-chunk retry budget for transient errors
	LeaseDuration  time.Duration // worker lease before a chunk counts as stalled
	ReaperInterval time.Duration // how often stalled chunks are requeued
	SweepInterval  time.Duration // how often incomplete wallets are re-driven
	PageSize       int           // provider page size per fetch
	RetentionDays  int           // how long finished chunk records are kept
}

// WebhookConfig holds live notification ingestion configuration
type WebhookConfig struct {
	SharedSecret string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "wallet_sync"),
				User:           getEnv("POSTGRES_USER", "wallet_sync"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "wallet_sync"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Providers: ProvidersConfig{
			EVM:    loadProviderConfig("EVM_PROVIDER", 10, 20),
			UTXO:   loadProviderConfig("UTXO_PROVIDER", 5, 10),
			Solana: loadProviderConfig("SOLANA_PROVIDER", 10, 20),
		},
		Pricing: PricingConfig{
			BaseURL:         getEnv("PRICING_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:          getEnv("PRICING_API_KEY", ""),
			Timeout:         getEnvAsDuration("PRICING_TIMEOUT", 10*time.Second),
			RefreshInterval: getEnvAsDuration("PRICING_REFRESH_INTERVAL", 15*time.Minute),
		},
		Backfill: BackfillConfig{
			MaxChunks:      getEnvAsInt("BACKFILL_MAX_CHUNKS", 10),
			Workers:        getEnvAsInt("BACKFILL_WORKERS", 5),
			MaxRetries:     getEnvAsInt("BACKFILL_MAX_RETRIES", 3),
			LeaseDuration:  getEnvAsDuration("BACKFILL_LEASE_DURATION", 5*time.Minute),
			ReaperInterval: getEnvAsDuration("BACKFILL_REAPER_INTERVAL", 30*time.Second),
			SweepInterval:  getEnvAsDuration("BACKFILL_SWEEP_INTERVAL", 5*time.Minute),
			PageSize:       getEnvAsInt("BACKFILL_PAGE_SIZE", 100),
			RetentionDays:  getEnvAsInt("BACKFILL_RETENTION_DAYS", 7),
		},
		Webhook: WebhookConfig{
			SharedSecret: getEnv("WEBHOOK_SHARED_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// loadProviderConfig loads one provider's settings from a prefixed set of
// environment variables.
func loadProviderConfig(prefix string, defaultRate float64, defaultBurst int) ProviderConfig {
	prefix = strings.ToUpper(prefix)
	return ProviderConfig{
		BaseURL:       getEnv(prefix+"_BASE_URL", ""),
		APIKey:        getEnv(prefix+"_API_KEY", ""),
		RatePerSecond: getEnvAsFloat(prefix+"_RATE_PER_SECOND", defaultRate),
		Burst:         getEnvAsInt(prefix+"_BURST", defaultBurst),
		Timeout:       getEnvAsDuration(prefix+"_TIMEOUT", 30*time.Second),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
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

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
