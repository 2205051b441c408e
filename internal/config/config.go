package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm"        validate:"required"`
	Curriculum CurriculumConfig `mapstructure:"curriculum" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0,lte=525600"`
}

// LLMConfig contains all LLM integration related settings.
// The Gemini API backend needs an API key; the Vertex AI backend needs a
// project and location and uses application default credentials.
type LLMConfig struct {
	DefaultProvider string        `mapstructure:"default_provider" validate:"required,oneof=gemini vertex"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"   validate:"required_without=VertexProject"`
	VertexProject   string        `mapstructure:"vertex_project"`
	VertexLocation  string        `mapstructure:"vertex_location"  validate:"required_with=VertexProject"`
	StructureModel  string        `mapstructure:"structure_model"  validate:"required"`
	ContentModel    string        `mapstructure:"content_model"    validate:"required"`
	Temperature     float32       `mapstructure:"temperature"      validate:"gte=0,lte=2"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"gt=0"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"     validate:"gt=0"`
}

// CurriculumConfig tunes the batch curriculum engine.
type CurriculumConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"      validate:"gte=1,lte=10"`
	BaseBackoff      time.Duration `mapstructure:"base_backoff"      validate:"gte=0"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"       validate:"gtefield=BaseBackoff"`
	BreakerThreshold int           `mapstructure:"breaker_threshold" validate:"gte=1,lte=100"`
	AutoApprove      bool          `mapstructure:"auto_approve"`
}
