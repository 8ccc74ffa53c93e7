package config

import (
	"time"

	"github.com/phrazzld/bespoke/internal/domain/srs"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Audio      AudioConfig      `mapstructure:"audio" validate:"required"`
	Language   LanguageConfig   `mapstructure:"language" validate:"required"`
	Session    SessionConfig    `mapstructure:"session" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	SRS        srs.ParamsConfig `mapstructure:"srs"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects and configures the card store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres"`
	// URL is a file path for sqlite and a connection URL for postgres.
	URL string `mapstructure:"url" validate:"required_unless=Driver memory"`
}

// LLMConfig contains all LLM integration related settings.
// The API key is only needed by the deck generator.
type LLMConfig struct {
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	TextModel      string        `mapstructure:"text_model" validate:"required"`
	SpeechModel    string        `mapstructure:"speech_model" validate:"required"`
	Voice          string        `mapstructure:"voice"`
	Temperature    float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
}

// AudioConfig configures where generated audio clips are stored.
type AudioConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// LanguageConfig points at the vocabulary and grammar lists.
type LanguageConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

// SessionConfig holds defaults for learning sessions.
type SessionConfig struct {
	NewCardLimit  int      `mapstructure:"new_card_limit" validate:"gte=0"`
	RecencyWindow int      `mapstructure:"recency_window" validate:"gte=0"`
	DefaultModes  []string `mapstructure:"default_modes" validate:"dive,oneof=listen speak read write"`
}

// GenerationConfig tunes deck building.
type GenerationConfig struct {
	CardsPerUnit int `mapstructure:"cards_per_unit" validate:"gt=0"`
	CardsPerCall int `mapstructure:"cards_per_call" validate:"gt=0"`
	Workers      int `mapstructure:"workers" validate:"gt=0"`
	QueueSize    int `mapstructure:"queue_size" validate:"gt=0"`
}
