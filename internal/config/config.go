// Package config loads and validates application configuration.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"     validate:"required"`
	Database  DatabaseConfig            `mapstructure:"database"   validate:"required"`
	Auth      AuthConfig                `mapstructure:"auth"       validate:"required"`
	Worker    WorkerConfig              `mapstructure:"worker"     validate:"required"`
	Cache     CacheConfig               `mapstructure:"cache"      validate:"required"`
	RateLimit map[string]RateClassConfig `mapstructure:"rate_limit" validate:"dive"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains token verification settings. Token issuance is
// handled by the identity service; this application only validates
// tokens and extracts the caller's user ID and scope claims.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// WorkerConfig controls the background report job worker.
type WorkerConfig struct {
	// PollInterval is the worker cadence in seconds. Every tick the worker
	// attempts to claim and process one pending job.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`

	// ResultDir is the directory where encoded report payloads are written.
	ResultDir string `mapstructure:"result_dir" validate:"required"`
}

// CacheConfig controls the in-process report cache.
type CacheConfig struct {
	// DefaultTTLSeconds is the TTL applied to cached report views.
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds" validate:"required,gt=0"`
}

// RateClassConfig configures the token bucket for one route class
// (e.g., "reporting_heavy").
type RateClassConfig struct {
	Capacity        int     `mapstructure:"capacity"          validate:"required,gt=0"`
	RefillPerSecond float64 `mapstructure:"refill_per_second" validate:"gte=0"`
}
