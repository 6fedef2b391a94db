// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Runs     RunConfig
	Fetch    FetchConfig
	Extract  ExtractConfig
	Schemas  SchemaConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`

	// MaxBodySize caps uploaded documents in bytes (default: 32MB)
	MaxBodySize int64 `env:"SERVER_MAX_BODY_SIZE" default:"32MB"`

	// Header is sent as the Server response header; empty disables it
	Header string `env:"SERVER_HEADER" default:"statements/1"`

	// DocsDir is an optional directory served under /docs/files/
	DocsDir string `env:"DOCS_DIR"`
}

// DatabaseConfig holds database connection settings.
// Persistence is optional: without a URL, schemas live in memory and no run
// history is kept.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// RunRetention is how long run history is kept (default: 720h)
	RunRetention time.Duration `env:"RUN_RETENTION" default:"720h"`

	// RetentionInterval is how often old runs are purged (default: 24h)
	RetentionInterval time.Duration `env:"RUN_RETENTION_INTERVAL" default:"24h"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// Enabled controls whether normalize responses are cached (default: true)
	Enabled bool `env:"CACHE_ENABLED" default:"true"`

	// RedisAddr selects Redis when set; otherwise an in-memory cache is used
	RedisAddr string `env:"REDIS_ADDR" envAlt:"REDIS_URL"`

	// RedisPassword is the Redis AUTH password
	RedisPassword string `env:"REDIS_PASSWORD"`

	// RedisDB is the Redis database number (default: 0)
	RedisDB int `env:"REDIS_DB" default:"0"`

	// TTL is how long a cached response is served (default: 60s)
	TTL time.Duration `env:"CACHE_TTL" default:"60s"`

	// MaxEntries bounds the in-memory cache (default: 1000)
	MaxEntries int `env:"CACHE_MAX_ENTRIES" default:"1000"`
}

// RunConfig holds pipeline execution settings.
type RunConfig struct {
	// MaxConcurrent is the maximum number of parallel runs (default: 8)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long to wait for a run slot (default: 10s)
	MaxWaitTime time.Duration `env:"RUN_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for a single run (default: 60s)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"60s"`

	// CastPolicy is fail-fast or isolate (default: fail-fast)
	CastPolicy string `env:"CAST_POLICY" default:"fail-fast"`
}

// FetchConfig holds document retrieval settings.
type FetchConfig struct {
	// Timeout bounds a single download (default: 30s)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"30s"`

	// MaxBytes caps fetched documents (default: 32MB)
	MaxBytes int64 `env:"FETCH_MAX_BYTES" default:"32MB"`

	// AllowLocal permits reading local paths in /api/normalize/url (default: false)
	AllowLocal bool `env:"FETCH_ALLOW_LOCAL" default:"false"`

	// DownloadDir is where /api/proxy/download stores files (default: ./cache)
	DownloadDir string `env:"DOWNLOAD_DIR" default:"./cache"`
}

// ExtractConfig holds free-text extraction settings.
type ExtractConfig struct {
	// PDFToText is the pdftotext binary name or path (default: pdftotext)
	PDFToText string `env:"PDFTOTEXT_BIN" default:"pdftotext"`
}

// SchemaConfig holds dynamic schema settings.
type SchemaConfig struct {
	// File is a JSON, YAML or TOML schema list loaded at startup
	File string `env:"SCHEMAS_FILE"`

	// Watch reloads File when it changes (default: true)
	Watch bool `env:"SCHEMAS_WATCH" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// NormalizeLimit is requests per minute for normalize endpoints (default: 20)
	NormalizeLimit int `env:"RATE_LIMIT_NORMALIZE" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// CORSOrigins is a comma-separated list of allowed origins (default: *)
	CORSOrigins []string `env:"CORS_ORIGINS" default:"*"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
