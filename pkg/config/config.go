package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/pkg/types"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Tweet metrics provider (twitterapi.io)
	TwitterAPIURL string
	TwitterAPIKey string
	TwitterTimeout time.Duration
	TweetCacheTTL  time.Duration // 0 disables the creation-time snapshot cache

	// Circuit breaker around the provider
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// Resolver
	ResolverEnabled     bool
	ResolverInterval    time.Duration
	ResolverGracePeriod time.Duration

	// Authorization
	OracleAddress     string
	RequireSignatures bool
	SignatureMaxAge   time.Duration // accepted X-Timestamp drift

	// Faucet
	FaucetEnabled bool
	FaucetAmount  string // decimal collateral units

	// Event streaming
	EventBufferSize int
	WSPingInterval  time.Duration
	WSWriteTimeout  time.Duration
	BookCacheTTL    time.Duration

	// Storage
	StorageMode  string // "console", "postgres" or "redis"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisChannelPrefix string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Provider defaults
		TwitterAPIURL:  getEnvOrDefault("TWITTER_API_URL", "https://api.twitterapi.io"),
		TwitterAPIKey:  os.Getenv("TWITTER_API_KEY"),
		TwitterTimeout: getDurationOrDefault("TWITTER_TIMEOUT", 10*time.Second),
		TweetCacheTTL:  getDurationOrDefault("TWEET_CACHE_TTL", 30*time.Second),

		BreakerFailureThreshold: getIntOrDefault("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         getDurationOrDefault("BREAKER_COOLDOWN", time.Minute),

		// Resolver defaults
		ResolverEnabled:     getBoolOrDefault("RESOLVER_ENABLED", true),
		ResolverInterval:    getDurationOrDefault("RESOLVER_INTERVAL", 30*time.Second),
		ResolverGracePeriod: getDurationOrDefault("RESOLVER_GRACE_PERIOD", 24*time.Hour),

		// Authorization defaults
		OracleAddress:     os.Getenv("ORACLE_ADDRESS"),
		RequireSignatures: getBoolOrDefault("REQUIRE_SIGNATURES", true),
		SignatureMaxAge:   getDurationOrDefault("SIGNATURE_MAX_AGE", 5*time.Minute),

		// Faucet defaults
		FaucetEnabled: getBoolOrDefault("FAUCET_ENABLED", false),
		FaucetAmount:  getEnvOrDefault("FAUCET_AMOUNT", "1000"),

		// Event streaming defaults
		EventBufferSize: getIntOrDefault("EVENT_BUFFER_SIZE", 1024),
		WSPingInterval:  getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSWriteTimeout:  getDurationOrDefault("WS_WRITE_TIMEOUT", 5*time.Second),
		BookCacheTTL:    getDurationOrDefault("BOOK_CACHE_TTL", time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "bangr"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "bangr"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "bangr_engine"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getIntOrDefault("REDIS_DB", 0),
		RedisChannelPrefix: getEnvOrDefault("REDIS_CHANNEL_PREFIX", "bangr"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.TwitterAPIURL == "" {
		return fmt.Errorf("TWITTER_API_URL cannot be empty")
	}

	if c.BreakerFailureThreshold <= 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be positive, got %d", c.BreakerFailureThreshold)
	}

	if c.BreakerCooldown <= 0 {
		return fmt.Errorf("BREAKER_COOLDOWN must be positive, got %v", c.BreakerCooldown)
	}

	if c.TweetCacheTTL < 0 {
		return fmt.Errorf("TWEET_CACHE_TTL cannot be negative, got %v", c.TweetCacheTTL)
	}

	if c.RequireSignatures && c.SignatureMaxAge <= 0 {
		return fmt.Errorf("SIGNATURE_MAX_AGE must be positive, got %v", c.SignatureMaxAge)
	}

	if c.ResolverEnabled && c.ResolverInterval <= 0 {
		return fmt.Errorf("RESOLVER_INTERVAL must be positive, got %v", c.ResolverInterval)
	}

	if c.ResolverGracePeriod < 0 {
		return fmt.Errorf("RESOLVER_GRACE_PERIOD cannot be negative, got %v", c.ResolverGracePeriod)
	}

	if c.OracleAddress != "" && !common.IsHexAddress(c.OracleAddress) {
		return fmt.Errorf("ORACLE_ADDRESS is not a hex address: %q", c.OracleAddress)
	}

	if c.FaucetEnabled {
		amount, err := types.ParseUnits(c.FaucetAmount, types.CollateralDecimals)
		if err != nil || amount.IsZero() {
			return fmt.Errorf("FAUCET_AMOUNT must be a positive decimal, got %q", c.FaucetAmount)
		}
	}

	if c.EventBufferSize <= 0 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive, got %d", c.EventBufferSize)
	}

	switch c.StorageMode {
	case "console", "postgres", "redis":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'console', 'postgres' or 'redis', got %q", c.StorageMode)
	}

	return nil
}

// Oracle returns the configured oracle account, if any.
func (c *Config) Oracle() (common.Address, bool) {
	if c.OracleAddress == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.OracleAddress), true
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// FaucetCollateral returns the faucet amount in collateral base units.
func (c *Config) FaucetCollateral() (types.Amount, error) {
	return types.ParseUnits(c.FaucetAmount, types.CollateralDecimals)
}
