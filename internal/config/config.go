package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Datastore DatastoreConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int `validate:"min=1,max=65535"`
	APIToken string
}

type UpstreamConfig struct {
	BaseURL      string `validate:"required,url"`
	Model        string `validate:"required"`
	OpenAIAPIKey string
}

type DatastoreConfig struct {
	Driver     string `validate:"oneof=sqlite mysql rest none"`
	DataDir    string
	DSN        string `validate:"required_if=Driver mysql"`
	URL        string `validate:"omitempty,url"`
	ServiceKey string
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4000,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Datastore: DatastoreConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/bizassist/config.json, then applies BIZASSIST_* environment
// overrides. Secrets are read from the environment only; the platform names
// OPENAI_API_KEY, SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are honoured when
// the BIZASSIST_* variant is unset.
//
// A missing OpenAI key is not an error here; the assistant reports it per
// request.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
