// Package config loads stockroom settings from the environment.
// Values are read once at startup, defaulted, and validated so that a bad
// deployment fails before the first request is served.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Stock    StockConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds every handler, including its SQL (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// DB_URL is accepted as a fallback.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SecurityConfig holds authentication and proxy settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys are accepted in the X-API-Key header as an alternative to a
	// browser session.
	APIKeys []string `env:"API_KEYS"`

	// SessionTTL is how long a login stays valid (default: 12h)
	SessionTTL time.Duration `env:"SESSION_TTL" default:"12h"`

	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" default:"false"`

	// RateLimitPerMinute is the per-IP request budget; 0 disables limiting.
	RateLimitPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// StockConfig holds inventory defaults.
type StockConfig struct {
	// DefaultMinimum is used for new products created without a minimum.
	DefaultMinimum int `env:"STOCK_DEFAULT_MINIMUM" default:"5"`
}

// AuditConfig holds audit log retention settings used by stockctl audit purge.
type AuditConfig struct {
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"365"`
	PurgeBatch    int `env:"AUDIT_PURGE_BATCH" default:"5000"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
