package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. BESPOKE_SERVER_PORT.
const EnvPrefix = "BESPOKE"

// defaults applied before any file or environment override.
var defaults = map[string]any{
	"server.port":               8080,
	"server.log_level":          "info",
	"server.allowed_origins":    []string{"http://localhost:5173"},
	"server.shutdown_timeout":   "10s",
	"database.driver":           "sqlite",
	"database.url":              "bespoke.db",
	"llm.gemini_api_key":        "",
	"llm.text_model":            "gemini-2.0-flash",
	"llm.speech_model":          "gemini-2.5-flash-preview-tts",
	"llm.voice":                 "Kore",
	"llm.temperature":           1.0,
	"llm.max_retries":           3,
	"llm.retry_base_delay":      "2s",
	"audio.dir":                 "cards/audio",
	"language.data_dir":         "data",
	"session.new_card_limit":    10,
	"session.recency_window":    5,
	"session.default_modes":     []string{"listen", "speak", "read", "write"},
	"generation.cards_per_unit": 3,
	"generation.cards_per_call": 5,
	"generation.workers":        4,
	"generation.queue_size":     100,
}

// envOnlyKeys have no default but can still be set from the environment.
var envOnlyKeys = []string{
	"srs.initial_ease_factor",
	"srs.min_ease_factor",
	"srs.max_ease_factor",
	"srs.again_ease_adjustment",
	"srs.hard_ease_adjustment",
	"srs.easy_ease_adjustment",
	"srs.hard_interval_modifier",
	"srs.easy_interval_modifier",
	"srs.first_review_hard_interval",
	"srs.first_review_good_interval",
	"srs.first_review_easy_interval",
	"srs.min_interval",
	"srs.min_growth_factor",
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first if present, then
// config.yaml from the working directory or ./config. Environment variables
// take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the config against its validate tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// RequireGeminiKey reports an error when the Gemini API key is missing.
// Only commands that call the model need it.
func (c *Config) RequireGeminiKey() error {
	if strings.TrimSpace(c.LLM.GeminiAPIKey) == "" {
		return fmt.Errorf("config validation failed: %s_LLM_GEMINI_API_KEY is required", EnvPrefix)
	}
	return nil
}
