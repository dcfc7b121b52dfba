// Package config provides configuration management for the marketplace OAuth service.
// It handles loading configuration from environment variables with sensible defaults
// and validates the configuration to ensure the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 10000)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Optional log file, stdout when empty
//
// Marketplace OAuth Client:
//   - ML_CLIENT_ID, ML_CLIENT_SECRET, ML_REDIRECT_URI: Application credentials (required)
//   - ML_AUTH_URL: Authorization page (default: https://auth.mercadolivre.com.br/authorization)
//   - ML_TOKEN_URL: Token endpoint (default: https://api.mercadolibre.com/oauth/token)
//   - ML_API_URL: Marketplace API base (default: https://api.mercadolibre.com)
//   - STATE_SECRET: Signs the authorization state cookie (required, minimum 32 characters)
//   - TOKEN_REFRESH_MARGIN: Refresh tokens expiring within this window (default: 2m)
//   - HTTP_TIMEOUT: Timeout applied to every outbound call (default: 15s)
//   - API_RATE_LIMIT_RPS / API_RATE_LIMIT_BURST: Outbound call budget (default: 10 / 20)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite", "postgres", "redis" or "memory" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./tokens.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//   - TOKEN_ENCRYPTION_KEY: Encrypts stored tokens when set (32 characters)
//
// Redis Configuration (token store and refresh locks):
//   - REDIS_ADDRESS: Redis server address, Redis is disabled when empty
//   - REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE (default: 10)
//
// Inbound Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable per-client rate limiting (default: true)
//   - RATE_LIMIT_RPS / RATE_LIMIT_BURST: Requests per second and burst (default: 5 / 20)
//   - TRUSTED_PROXIES: Comma separated IPs or CIDR ranges whose X-Forwarded-For
//     and X-Real-IP headers are believed (default: none, clients are keyed by peer address)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Config holds all configuration values for the service. Field tags name the
// environment variable each value comes from, which is also the name used in
// validation errors.
type Config struct {
	// Application settings
	Port     int    `env:"PORT" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFile  string `env:"LOG_FILE"`

	// TLS is enabled when both files are set
	TLSCertFile string `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`

	// Marketplace application credentials
	ClientID     string `env:"ML_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"ML_CLIENT_SECRET" validate:"required"`
	RedirectURI  string `env:"ML_REDIRECT_URI" validate:"required,url"`

	// Marketplace endpoints
	AuthURL  string `env:"ML_AUTH_URL" validate:"required,url"`
	TokenURL string `env:"ML_TOKEN_URL" validate:"required,url"`
	APIURL   string `env:"ML_API_URL" validate:"required,url"`

	StateSecret string `env:"STATE_SECRET" validate:"required,min=32"`
	// CookieSecure marks the state cookie Secure; defaults on for https redirects
	CookieSecure bool `env:"COOKIE_SECURE"`

	RefreshMargin time.Duration `env:"TOKEN_REFRESH_MARGIN"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT"`

	// Outbound call budget towards the marketplace
	APIRateLimitRPS   float64 `env:"API_RATE_LIMIT_RPS" validate:"gt=0"`
	APIRateLimitBurst int     `env:"API_RATE_LIMIT_BURST" validate:"min=1"`

	// Inbound rate limiting
	RateLimitEnabled bool     `env:"RATE_LIMIT_ENABLED"`
	RateLimitRPS     float64  `env:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `env:"RATE_LIMIT_BURST"`
	TrustedProxies   []string `env:"TRUSTED_PROXIES" validate:"dive,cidr|ip"`

	// Token storage
	DatabaseType     string `env:"DATABASE_TYPE" validate:"oneof=sqlite postgres redis memory"`
	DatabasePath     string `env:"DATABASE_PATH" validate:"required_if=DatabaseType sqlite"`
	PostgresHost     string `env:"POSTGRES_HOST" validate:"required_if=DatabaseType postgres"`
	PostgresPort     int    `env:"POSTGRES_PORT" validate:"min=1,max=65535"`
	PostgresDB       string `env:"POSTGRES_DB" validate:"required_if=DatabaseType postgres"`
	PostgresUser     string `env:"POSTGRES_USER" validate:"required_if=DatabaseType postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `env:"POSTGRES_SSL_MODE" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// Redis configuration for the redis store and distributed refresh locks
	RedisAddress  string `env:"REDIS_ADDRESS" validate:"required_if=DatabaseType redis"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" validate:"min=0,max=15"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" validate:"min=1"`

	// Encryption of tokens at rest, disabled when empty
	EncryptionKey string `env:"TOKEN_ENCRYPTION_KEY" validate:"omitempty,len=32"`
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, or does not parse, the default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	databaseType := strings.ToLower(getEnv("DATABASE_TYPE", "sqlite"))
	if databaseType == "postgresql" {
		databaseType = "postgres"
	}

	redirectURI := getEnv("ML_REDIRECT_URI", "")

	return &Config{
		Port:     getIntEnv("PORT", 10000),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		ClientID:     getEnv("ML_CLIENT_ID", ""),
		ClientSecret: getEnv("ML_CLIENT_SECRET", ""),
		RedirectURI:  redirectURI,

		AuthURL:  getEnv("ML_AUTH_URL", "https://auth.mercadolivre.com.br/authorization"),
		TokenURL: getEnv("ML_TOKEN_URL", "https://api.mercadolibre.com/oauth/token"),
		APIURL:   strings.TrimRight(getEnv("ML_API_URL", "https://api.mercadolibre.com"), "/"),

		StateSecret:  getEnv("STATE_SECRET", ""),
		CookieSecure: getBoolEnv("COOKIE_SECURE", strings.HasPrefix(redirectURI, "https://")),

		RefreshMargin: getDurationEnv("TOKEN_REFRESH_MARGIN", 2*time.Minute),
		HTTPTimeout:   getDurationEnv("HTTP_TIMEOUT", 15*time.Second),

		APIRateLimitRPS:   getFloatEnv("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst: getIntEnv("API_RATE_LIMIT_BURST", 20),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getFloatEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst:   getIntEnv("RATE_LIMIT_BURST", 20),
		TrustedProxies:   getListEnv("TRUSTED_PROXIES"),

		DatabaseType:     databaseType,
		DatabasePath:     getEnv("DATABASE_PATH", "./tokens.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getIntEnv("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "marketplace_oauth"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		EncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
	}
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// TLSEnabled reports whether the server should listen with TLS
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// RedisEnabled reports whether a Redis server is configured
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// PostgresDSN builds the connection string for the pgx driver
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blank entries
func getListEnv(key string) []string {
	parts := strings.Split(os.Getenv(key), ",")
	return lo.Compact(lo.Map(parts, func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
// Any value strconv.ParseBool rejects falls back to the default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90s", "2m") or a bare number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
//
// Struct tags cover required fields and formats; the checks below cover values
// that depend on each other.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})

	if err := validate.Struct(c); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			return describe(validationErrors[0])
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.RefreshMargin < 0 {
		return fmt.Errorf("TOKEN_REFRESH_MARGIN must not be negative")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be a positive duration (e.g., '15s')")
	}

	if c.RateLimitEnabled {
		if c.RateLimitRPS <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be a positive number")
		}
		if c.RateLimitBurst < 1 {
			return fmt.Errorf("RATE_LIMIT_BURST must be a positive number")
		}
	}

	return nil
}

func describe(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s environment variable is required", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Errorf("%s must be at least %s characters long", name, fe.Param())
		}
		return fmt.Errorf("%s must be at least %s", name, fe.Param())
	case "required_with":
		return fmt.Errorf("%s environment variable is required when TLS is configured", name)
	case "max":
		return fmt.Errorf("%s must be at most %s", name, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", name, fe.Param())
	case "len":
		return fmt.Errorf("%s must be exactly %s characters when provided", name, fe.Param())
	case "url":
		return fmt.Errorf("%s must be a valid URL", name)
	case "cidr|ip":
		return fmt.Errorf("%s must be an IP address or CIDR range", name)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}
