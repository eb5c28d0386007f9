// Package config provides configuration management for the flipscan pipeline.
// It loads configuration from environment variables and .env files.
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
	Scraper   ScraperConfig
	Estimator EstimatorConfig
	Comps     CompsConfig
	Queue     QueueConfig
	Platforms PlatformsConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
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

// ScraperConfig holds browser-session and adapter configuration
type ScraperConfig struct {
	MaxSessions    int           // cap on concurrent browser sessions
	NavTimeout     time.Duration // per navigation/extraction step
	MaxItems       int           // per-job item cap
	ChromePath     string        // optional explicit browser binary
	RequestsPerSec float64       // politeness limit per platform
	ScanSchedule   string        // cron expression for scheduled scans, empty disables
}

// EstimatorConfig holds value-estimation tunables. The algorithm shape is
// fixed; these constants are configuration, not domain law.
type EstimatorConfig struct {
	MarketplaceFeePct    float64 // assumed selling fee, e.g. 0.12
	RangeBandPct         float64 // estimatedLow/High band around the point estimate
	OpportunityThreshold int     // valueScore at which a new listing becomes an opportunity
	NegotiationOfferPct  float64 // opening offer as a fraction of asking price
}

// CompsConfig holds comparable-sales configuration
type CompsConfig struct {
	MinSamples      int           // below this, no market value is produced
	MediumSamples   int           // sample size for medium confidence
	HighSamples     int           // sample size for high confidence
	OutlierMultiple float64       // discard comps beyond median*mult or median/mult
	RecencyHalfLife time.Duration // comp weight halves every interval of age
	LookbackWindow  time.Duration // how far back to consider sold records
	CacheTTL        time.Duration // market-value cache TTL
}

// QueueConfig holds posting-queue configuration
type QueueConfig struct {
	DefaultMaxRetries int
	PollInterval      time.Duration
	ClaimBatchSize    int
	RetryBaseDelay    time.Duration
}

// PlatformsConfig holds per-platform adapter configuration
type PlatformsConfig struct {
	Enabled   []string
	Platforms map[string]PlatformConfig
}

// PlatformConfig holds configuration for a specific marketplace
type PlatformConfig struct {
	BaseURL      string
	APIKey       string
	AgentBaseURL string // browser-agent endpoint for agent-strategy platforms
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
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
				Database:       getEnv("POSTGRES_DB", "flipscan"),
				User:           getEnv("POSTGRES_USER", "flipscan"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "flipscan"),
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
		Scraper: ScraperConfig{
			MaxSessions:    getEnvAsInt("SCRAPER_MAX_SESSIONS", 3),
			NavTimeout:     getEnvAsDuration("SCRAPER_NAV_TIMEOUT", 45*time.Second),
			MaxItems:       getEnvAsInt("SCRAPER_MAX_ITEMS", 50),
			ChromePath:     getEnv("SCRAPER_CHROME_PATH", ""),
			RequestsPerSec: getEnvAsFloat("SCRAPER_REQUESTS_PER_SEC", 0.5),
			ScanSchedule:   getEnv("SCRAPER_SCAN_SCHEDULE", ""),
		},
		Estimator: EstimatorConfig{
			MarketplaceFeePct:    getEnvAsFloat("ESTIMATOR_FEE_PCT", 0.12),
			RangeBandPct:         getEnvAsFloat("ESTIMATOR_RANGE_BAND_PCT", 0.20),
			OpportunityThreshold: getEnvAsInt("ESTIMATOR_OPPORTUNITY_THRESHOLD", 70),
			NegotiationOfferPct:  getEnvAsFloat("ESTIMATOR_NEGOTIATION_OFFER_PCT", 0.85),
		},
		Comps: CompsConfig{
			MinSamples:      getEnvAsInt("COMPS_MIN_SAMPLES", 3),
			MediumSamples:   getEnvAsInt("COMPS_MEDIUM_SAMPLES", 5),
			HighSamples:     getEnvAsInt("COMPS_HIGH_SAMPLES", 10),
			OutlierMultiple: getEnvAsFloat("COMPS_OUTLIER_MULTIPLE", 3.0),
			RecencyHalfLife: getEnvAsDuration("COMPS_RECENCY_HALF_LIFE", 30*24*time.Hour),
			LookbackWindow:  getEnvAsDuration("COMPS_LOOKBACK_WINDOW", 180*24*time.Hour),
			CacheTTL:        getEnvAsDuration("COMPS_CACHE_TTL", 6*time.Hour),
		},
		Queue: QueueConfig{
			DefaultMaxRetries: getEnvAsInt("QUEUE_DEFAULT_MAX_RETRIES", 3),
			PollInterval:      getEnvAsDuration("QUEUE_POLL_INTERVAL", 10*time.Second),
			ClaimBatchSize:    getEnvAsInt("QUEUE_CLAIM_BATCH_SIZE", 5),
			RetryBaseDelay:    getEnvAsDuration("QUEUE_RETRY_BASE_DELAY", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Platforms = loadPlatformConfigs()

	return config, nil
}

// loadPlatformConfigs loads marketplace-specific configurations
func loadPlatformConfigs() PlatformsConfig {
	enabled := strings.Split(getEnv("ENABLED_PLATFORMS", "craigslist,offerup,facebook,mercari"), ",")

	platforms := make(map[string]PlatformConfig)
	for _, platform := range enabled {
		platform = strings.TrimSpace(platform)
		if platform == "" {
			continue
		}

		prefix := strings.ToUpper(platform)
		platforms[platform] = PlatformConfig{
			BaseURL:      getEnv(prefix+"_BASE_URL", defaultBaseURL(platform)),
			APIKey:       getEnv(prefix+"_API_KEY", ""),
			AgentBaseURL: getEnv(prefix+"_AGENT_BASE_URL", ""),
		}
	}

	return PlatformsConfig{
		Enabled:   enabled,
		Platforms: platforms,
	}
}

// defaultBaseURL returns the public site root for known marketplaces
func defaultBaseURL(platform string) string {
	switch platform {
	case "craigslist":
		return "https://craigslist.org"
	case "offerup":
		return "https://offerup.com"
	case "facebook":
		return "https://www.facebook.com/marketplace"
	case "mercari":
		return "https://api.mercari.com"
	default:
		return ""
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
