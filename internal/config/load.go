package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values
// and use the REPORTD_ prefix with underscores for nesting, e.g.
// REPORTD_SERVER_PORT or REPORTD_WORKER_POLL_INTERVAL_SECONDS.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/reportd")

	v.SetEnvPrefix("REPORTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; env vars and defaults still apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv values reach
	// Unmarshal; validation still requires real values.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("worker.result_dir", "/var/lib/reportd/results")
	v.SetDefault("cache.default_ttl_seconds", 300)
	v.SetDefault("rate_limit.reporting_heavy.capacity", 10)
	v.SetDefault("rate_limit.reporting_heavy.refill_per_second", 1.0)
}
