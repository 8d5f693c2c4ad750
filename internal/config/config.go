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
	Server        ServerConfig
	Database      DatabaseConfig
	Identity      IdentityConfig
	Session       SessionConfig
	CSRF          CSRFConfig
	Gate          GateConfig
	Settings      SettingsConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
// Forwarded headers are honoured only when TrustProxy is set.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	TrustProxy        bool
	TrustedProxies    []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AdminUIDir   string
}

// DatabaseConfig holds database configuration.
// ElevatedRole is the role assumed for authorization lookups; it must carry BYPASSRLS.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ElevatedRole    string
}

// IdentityConfig holds the external identity provider settings
type IdentityConfig struct {
	URL           string
	AnonKey       string
	Timeout       time.Duration
	RefreshMargin time.Duration
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	AccessCookieName  string
	RefreshCookieName string
	CookieDomain      string
	CookiePath        string
	CookieSecure      bool
	CookieSameSite    string
	Lifetime          time.Duration
}

// CSRFConfig holds CSRF cookie configuration
type CSRFConfig struct {
	CookieName string
	HeaderName string
	MaxAge     time.Duration
}

// GateConfig holds the admin route policy and authorization cache settings
type GateConfig struct {
	ProtectedPrefix   string
	LoginPath         string
	ResetPasswordPath string
	ManagerHome       string
	AuthCacheTTL      time.Duration
	AuthCacheSize     int
}

// SettingsConfig holds site settings cache configuration
type SettingsConfig struct {
	CacheTTL time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	OTELEndpoint   string
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			AdminUIDir:   getEnv("ADMIN_UI_DIR", "web/admin"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "postgres"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
			ElevatedRole:    getEnv("DB_ELEVATED_ROLE", "service_role"),
		},
		Identity: IdentityConfig{
			URL:           getEnv("IDENTITY_URL", ""),
			AnonKey:       getEnv("IDENTITY_ANON_KEY", ""),
			Timeout:       parseDuration("IDENTITY_TIMEOUT", "10s"),
			RefreshMargin: parseDuration("IDENTITY_REFRESH_MARGIN", "30s"),
		},
		Session: SessionConfig{
			AccessCookieName:  getEnv("SESSION_ACCESS_COOKIE_NAME", "sb-access-token"),
			RefreshCookieName: getEnv("SESSION_REFRESH_COOKIE_NAME", "sb-refresh-token"),
			CookieDomain:      getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookiePath:        getEnv("SESSION_COOKIE_PATH", "/"),
			CookieSecure:      parseBool("SESSION_COOKIE_SECURE", false),
			CookieSameSite:    getEnv("SESSION_COOKIE_SAME_SITE", "Lax"),
			Lifetime:          parseDuration("SESSION_LIFETIME", "168h"),
		},
		CSRF: CSRFConfig{
			CookieName: getEnv("CSRF_COOKIE_NAME", "__csrf_token"),
			HeaderName: getEnv("CSRF_HEADER_NAME", "X-CSRF-Token"),
			MaxAge:     parseDuration("CSRF_MAX_AGE", "24h"),
		},
		Gate: GateConfig{
			ProtectedPrefix:   getEnv("GATE_PROTECTED_PREFIX", "/admin"),
			LoginPath:         getEnv("GATE_LOGIN_PATH", "/admin/login"),
			ResetPasswordPath: getEnv("GATE_RESET_PASSWORD_PATH", "/admin/reset-password"),
			ManagerHome:       getEnv("GATE_MANAGER_HOME", "/admin/engine-sounds"),
			AuthCacheTTL:      parseDuration("GATE_AUTH_CACHE_TTL", "0s"),
			AuthCacheSize:     parseInt("GATE_AUTH_CACHE_SIZE", 1024),
		},
		Settings: SettingsConfig{
			CacheTTL: parseDuration("SETTINGS_CACHE_TTL", "60s"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			OTELEndpoint:   getEnv("OTEL_TRACES_ENDPOINT", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "admingate"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
			TrustProxy:        parseBool("RATE_LIMIT_TRUST_PROXY", false),
			TrustedProxies:    parseList("RATE_LIMIT_TRUSTED_PROXIES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Identity.URL == "" {
		return fmt.Errorf("IDENTITY_URL is required")
	}
	if c.Identity.AnonKey == "" {
		return fmt.Errorf("IDENTITY_ANON_KEY is required")
	}
	if c.Gate.AuthCacheTTL > 0 && c.Gate.AuthCacheSize <= 0 {
		return fmt.Errorf("GATE_AUTH_CACHE_SIZE must be positive when the auth cache is enabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
