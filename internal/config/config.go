// Package config provides centralized configuration management for the
// restore service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	Platform    PlatformConfig
	Restore     RestoreConfig
	Cache       CacheConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, bounded by RequestTimeout)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 60s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"60s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// DatabaseConfig holds database connection settings. Without a URL the
// deployment history and metadata cache live in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Object store backends.
const (
	BackendS3     = "s3"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// ObjectStoreConfig selects and configures the archive store.
type ObjectStoreConfig struct {
	// Backend is s3, local or memory (default: s3)
	Backend string `env:"OBJECT_STORE_BACKEND" default:"s3"`

	// Bucket holds archived, active and backup documents (default: assetkeeper)
	Bucket string `env:"OBJECT_STORE_BUCKET" default:"assetkeeper"`

	// Endpoint is the S3-compatible endpoint URL (s3 backend)
	Endpoint string `env:"OBJECT_STORE_ENDPOINT" envAlt:"S3_ENDPOINT_URL"`

	// AccessKeyID and SecretAccessKey authenticate to the endpoint (s3 backend)
	AccessKeyID     string `env:"OBJECT_STORE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"OBJECT_STORE_SECRET_ACCESS_KEY"`

	// Region is the bucket region (default: us-east-1)
	Region string `env:"OBJECT_STORE_REGION" default:"us-east-1"`

	// UseSSL forces TLS regardless of the endpoint scheme (default: false)
	UseSSL bool `env:"OBJECT_STORE_USE_SSL" default:"false"`

	// LocalRoot is the directory used by the local backend
	LocalRoot string `env:"OBJECT_STORE_LOCAL_ROOT" default:"./data"`
}

// PlatformConfig configures the QuickSight client.
type PlatformConfig struct {
	// Region is the QuickSight region (default: us-east-1)
	Region string `env:"AWS_REGION" envAlt:"AWS_DEFAULT_REGION" default:"us-east-1"`

	// AccountID is the AWS account owning the assets
	AccountID string `env:"AWS_ACCOUNT_ID"`

	// Namespace is the QuickSight namespace for groups (default: default)
	Namespace string `env:"QUICKSIGHT_NAMESPACE" default:"default"`

	// Static credentials; when unset the default AWS credential chain applies
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

// RestoreConfig holds restore concurrency settings.
type RestoreConfig struct {
	// MaxConcurrent is the maximum number of restores in flight (default: 4)
	MaxConcurrent int `env:"RESTORE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a restore waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"RESTORE_MAX_WAIT_TIME" default:"30s"`

	// BatchParallelism is the default parallelism of concurrent batches (default: 4)
	BatchParallelism int `env:"RESTORE_BATCH_PARALLELISM" default:"4"`

	// MaxManifestSize is the maximum batch manifest size in bytes (default: 1MB)
	MaxManifestSize int64 `env:"RESTORE_MAX_MANIFEST_SIZE" default:"1048576"`

	// MaxArchiveSize is the maximum inline archive size in bytes (default: 32MB)
	MaxArchiveSize int64 `env:"RESTORE_MAX_ARCHIVE_SIZE" default:"33554432"`
}

// CacheConfig holds asset listing cache maintenance settings.
type CacheConfig struct {
	// RebuildOnStart rebuilds every kind before serving (default: true)
	RebuildOnStart bool `env:"CACHE_REBUILD_ON_START" default:"true"`

	// RebuildInterval is how often the cache is rebuilt; 0 disables (default: 24h)
	RebuildInterval time.Duration `env:"CACHE_REBUILD_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// RestoreLimit is requests per minute for restore endpoints (default: 20)
	RestoreLimit int `env:"RATE_LIMIT_RESTORE" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HasDatabase reports whether a Postgres URL is configured.
func (c *DatabaseConfig) HasDatabase() bool {
	return c.URL != ""
}
