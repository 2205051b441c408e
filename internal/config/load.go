package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SCRY_SERVER_PORT.
const EnvPrefix = "SCRY"

// keys without defaults that may still come from the environment
var envOnlyKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"llm.vertex_project",
	"llm.vertex_location",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.default_provider", "gemini")
	v.SetDefault("llm.structure_model", "gemini-2.0-flash")
	v.SetDefault("llm.content_model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.call_timeout", "120s")

	v.SetDefault("curriculum.max_attempts", 3)
	v.SetDefault("curriculum.base_backoff", "2s")
	v.SetDefault("curriculum.max_backoff", "30s")
	v.SetDefault("curriculum.breaker_threshold", 3)
	v.SetDefault("curriculum.auto_approve", false)
}

// newViper builds a viper instance reading defaults, an optional config.yaml
// from the working directory, and SCRY_ environment variables, in increasing
// order of precedence.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	return v, nil
}

func unmarshal() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	cfg, err := unmarshal()
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadGeneration loads the same sources as Load but validates only the
// sections a standalone generation run needs (llm and curriculum), so the
// CLI works without database or auth settings.
func LoadGeneration() (*Config, error) {
	cfg, err := unmarshal()
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg.LLM); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := validate.Struct(cfg.Curriculum); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := validate.Var(cfg.Server.LogLevel, "oneof=debug info warn error"); err != nil {
		return nil, fmt.Errorf("config validation failed: log_level: %w", err)
	}

	return cfg, nil
}
