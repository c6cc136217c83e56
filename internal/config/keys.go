package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key      string
	typ      keyType
	env      string
	fallback string // platform-standard env name consulted when env is unset
	secret   bool
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "BIZASSIST_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "BIZASSIST_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "BIZASSIST_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "upstream.base_url", typ: kString, env: "BIZASSIST_UPSTREAM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Upstream.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.BaseURL },
	},
	{
		key: "upstream.model", typ: kString, env: "BIZASSIST_UPSTREAM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Upstream.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.Model },
	},
	{
		key: "upstream.openai_api_key", typ: kString, env: "BIZASSIST_OPENAI_API_KEY", fallback: "OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Upstream.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.OpenAIAPIKey },
	},
	{
		key: "datastore.driver", typ: kString, env: "BIZASSIST_DATASTORE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Datastore.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Datastore.Driver },
	},
	{
		key: "datastore.data_dir", typ: kString, env: "BIZASSIST_DATASTORE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Datastore.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Datastore.DataDir },
	},
	{
		key: "datastore.dsn", typ: kString, env: "BIZASSIST_DATASTORE_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Datastore.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Datastore.DSN },
	},
	{
		key: "datastore.url", typ: kString, env: "BIZASSIST_DATASTORE_URL", fallback: "SUPABASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Datastore.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Datastore.URL },
	},
	{
		key: "datastore.service_key", typ: kString, env: "BIZASSIST_DATASTORE_SERVICE_KEY", fallback: "SUPABASE_SERVICE_ROLE_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Datastore.ServiceKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Datastore.ServiceKey },
	},
	{
		key: "log.level", typ: kString, env: "BIZASSIST_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func lookupEnv(s keySpec) (string, string) {
	if raw := os.Getenv(s.env); raw != "" {
		return s.env, raw
	}
	if s.fallback != "" {
		if raw := os.Getenv(s.fallback); raw != "" {
			return s.fallback, raw
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name, raw := lookupEnv(s)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
