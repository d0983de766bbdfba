// Package config loads the service configuration from environment variables.
// Every setting has a default except the optional database URL, and the
// whole configuration is validated on startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Upload    UploadConfig
	Ops       OpsConfig
	Preview   PreviewConfig
	Retention RetentionConfig
	Database  DatabaseConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" default:"8000"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining running operations.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// AppConfig is reported by the root endpoint.
type AppConfig struct {
	Name    string `env:"APP_NAME" default:"Excel Tools API"`
	Version string `env:"APP_VERSION" default:"1.0.0"`
}

// UploadConfig limits what can be uploaded.
type UploadConfig struct {
	// MaxFileSize is the maximum file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// AllowedExtensions is a comma-separated list of accepted extensions.
	AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" default:".xlsx,.xlsm,.csv"`
}

// OpsConfig bounds concurrent uploads and transformations.
type OpsConfig struct {
	MaxConcurrent int           `env:"OPS_MAX_CONCURRENT" default:"8"`
	MaxWaitTime   time.Duration `env:"OPS_MAX_WAIT_TIME" default:"30s"`
}

// PreviewConfig bounds the preview endpoint.
type PreviewConfig struct {
	DefaultRows int `env:"PREVIEW_DEFAULT_ROWS" default:"50"`
	MaxRows     int `env:"PREVIEW_MAX_ROWS" default:"1000"`
}

// RetentionConfig controls how long versions and audit entries are kept.
type RetentionConfig struct {
	FileRetention  time.Duration `env:"FILE_RETENTION" default:"24h"`
	AuditRetention time.Duration `env:"AUDIT_RETENTION" default:"720h"`
	CheckInterval  time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"1h"`
}

// DatabaseConfig holds PostgreSQL settings. The database is optional: without
// a URL the audit log is kept in memory.
type DatabaseConfig struct {
	// URL supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL is configured.
func (c *DatabaseConfig) Enabled() bool { return c.URL != "" }

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:8000"`

	// RequireAPIKey enables X-API-Key authentication on /api routes.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys.
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// SeqURL, when set, also ships logs to a Seq server.
	SeqURL string `env:"LOG_SEQ_URL"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
