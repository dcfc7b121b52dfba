package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_FILE", "TLS_CERT_FILE", "TLS_KEY_FILE", "COOKIE_SECURE",
	"ML_CLIENT_ID", "ML_CLIENT_SECRET", "ML_REDIRECT_URI",
	"ML_AUTH_URL", "ML_TOKEN_URL", "ML_API_URL", "STATE_SECRET",
	"TOKEN_REFRESH_MARGIN", "HTTP_TIMEOUT",
	"API_RATE_LIMIT_RPS", "API_RATE_LIMIT_BURST",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TRUSTED_PROXIES",
	"DATABASE_TYPE", "DATABASE_PATH",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_SSL_MODE",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"TOKEN_ENCRYPTION_KEY",
}

// clearTestEnvVars blanks every variable Load reads; empty values fall back to defaults.
func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func setValidEnv(t *testing.T) {
	t.Helper()
	clearTestEnvVars(t)
	t.Setenv("ML_CLIENT_ID", "123456")
	t.Setenv("ML_CLIENT_SECRET", "shh")
	t.Setenv("ML_REDIRECT_URI", "https://example.com/callback")
	t.Setenv("STATE_SECRET", "this-is-a-very-long-state-secret-for-tests")
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	cfg := Load()

	assert.Equal(t, 10000, cfg.Port)
	assert.Equal(t, ":10000", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://auth.mercadolivre.com.br/authorization", cfg.AuthURL)
	assert.Equal(t, "https://api.mercadolibre.com/oauth/token", cfg.TokenURL)
	assert.Equal(t, "https://api.mercadolibre.com", cfg.APIURL)
	assert.Equal(t, 2*time.Minute, cfg.RefreshMargin)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, float64(10), cfg.APIRateLimitRPS)
	assert.Equal(t, 20, cfg.APIRateLimitBurst)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "./tokens.db", cfg.DatabasePath)
	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, 10, cfg.RedisPoolSize)
	assert.Empty(t, cfg.EncryptionKey)
	assert.False(t, cfg.TLSEnabled())
	assert.False(t, cfg.CookieSecure)
}

func TestLoad_CookieSecureFollowsRedirectScheme(t *testing.T) {
	setValidEnv(t)
	assert.True(t, Load().CookieSecure)

	t.Setenv("ML_REDIRECT_URI", "http://localhost:10000/callback")
	assert.False(t, Load().CookieSecure)

	t.Setenv("COOKIE_SECURE", "true")
	assert.True(t, Load().CookieSecure)
}

func TestLoad_Overrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ML_API_URL", "http://localhost:9999/")
	t.Setenv("TOKEN_REFRESH_MARGIN", "300")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("DATABASE_TYPE", "PostgreSQL")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.168.1.1 ")

	cfg := Load()

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:9999", cfg.APIURL)
	assert.Equal(t, 5*time.Minute, cfg.RefreshMargin)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 0, cfg.RedisDB, "unparseable values fall back to the default")
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "db",
		PostgresPort:     5433,
		PostgresDB:       "tokens",
		PostgresUser:     "svc",
		PostgresPassword: "pw",
		PostgresSSLMode:  "require",
	}

	assert.Equal(t, "host=db port=5433 dbname=tokens user=svc password=pw sslmode=require", cfg.PostgresDSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name: "valid configuration",
		},
		{
			name:    "missing client id",
			env:     map[string]string{"ML_CLIENT_ID": ""},
			wantErr: "ML_CLIENT_ID environment variable is required",
		},
		{
			name:    "redirect uri must be a url",
			env:     map[string]string{"ML_REDIRECT_URI": "not a url"},
			wantErr: "ML_REDIRECT_URI must be a valid URL",
		},
		{
			name:    "short state secret",
			env:     map[string]string{"STATE_SECRET": "short"},
			wantErr: "STATE_SECRET must be at least 32 characters long",
		},
		{
			name:    "port out of range",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "PORT must be at most 65535",
		},
		{
			name:    "unknown database type",
			env:     map[string]string{"DATABASE_TYPE": "mysql"},
			wantErr: "DATABASE_TYPE must be one of: sqlite, postgres, redis, memory",
		},
		{
			name:    "redis store needs an address",
			env:     map[string]string{"DATABASE_TYPE": "redis"},
			wantErr: "REDIS_ADDRESS environment variable is required",
		},
		{
			name: "postgres with defaults",
			env:  map[string]string{"DATABASE_TYPE": "postgres"},
		},
		{
			name:    "postgres ssl mode",
			env:     map[string]string{"POSTGRES_SSL_MODE": "sometimes"},
			wantErr: "POSTGRES_SSL_MODE must be one of: disable, allow, prefer, require, verify-ca, verify-full",
		},
		{
			name:    "encryption key length",
			env:     map[string]string{"TOKEN_ENCRYPTION_KEY": "too-short"},
			wantErr: "TOKEN_ENCRYPTION_KEY must be exactly 32 characters when provided",
		},
		{
			name:    "negative refresh margin",
			env:     map[string]string{"TOKEN_REFRESH_MARGIN": "-1m"},
			wantErr: "TOKEN_REFRESH_MARGIN must not be negative",
		},
		{
			name:    "inbound rate limit must be positive when enabled",
			env:     map[string]string{"RATE_LIMIT_RPS": "0"},
			wantErr: "RATE_LIMIT_RPS must be a positive number",
		},
		{
			name:    "tls key without certificate",
			env:     map[string]string{"TLS_KEY_FILE": "/etc/tls/key.pem"},
			wantErr: "TLS_CERT_FILE environment variable is required when TLS is configured",
		},
		{
			name: "tls with both files",
			env:  map[string]string{"TLS_CERT_FILE": "/etc/tls/cert.pem", "TLS_KEY_FILE": "/etc/tls/key.pem"},
		},
		{
			name: "trusted proxies",
			env:  map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,::1"},
		},
		{
			name:    "trusted proxy must be an address",
			env:     map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,proxy.internal"},
			wantErr: "TRUSTED_PROXIES[1] must be an IP address or CIDR range",
		},
		{
			name: "inbound rate limit ignored when disabled",
			env:  map[string]string{"RATE_LIMIT_ENABLED": "false", "RATE_LIMIT_RPS": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
