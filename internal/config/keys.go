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
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DQC_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "DQC_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "ollama.base_url", typ: kString, env: "DQC_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "DQC_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "database.path", typ: kString, env: "DQC_DATABASE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Database.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.Path },
	},
	{
		key: "policy.default_limit", typ: kInt, env: "DQC_POLICY_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Policy.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Policy.DefaultLimit },
	},
	{
		key: "policy.max_limit", typ: kInt, env: "DQC_POLICY_MAX_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Policy.MaxLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Policy.MaxLimit },
	},
	{
		key: "policy.disallow_with", typ: kBool, env: "DQC_POLICY_DISALLOW_WITH",
		apply:   func(cfg *Config, v any) { cfg.Policy.DisallowWith = v.(bool) },
		extract: func(cfg Config) any { return cfg.Policy.DisallowWith },
	},
	{
		key: "policy.disallow_select_star", typ: kBool, env: "DQC_POLICY_DISALLOW_SELECT_STAR",
		apply:   func(cfg *Config, v any) { cfg.Policy.DisallowSelectStar = v.(bool) },
		extract: func(cfg Config) any { return cfg.Policy.DisallowSelectStar },
	},
	{
		key: "executor.timeout_ms", typ: kInt, env: "DQC_EXECUTOR_TIMEOUT_MS",
		apply:   func(cfg *Config, v any) { cfg.Executor.TimeoutMs = v.(int) },
		extract: func(cfg Config) any { return cfg.Executor.TimeoutMs },
	},
	{
		key: "executor.max_rows", typ: kInt, env: "DQC_EXECUTOR_MAX_ROWS",
		apply:   func(cfg *Config, v any) { cfg.Executor.MaxRows = v.(int) },
		extract: func(cfg Config) any { return cfg.Executor.MaxRows },
	},
	{
		key: "retry.max_attempts", typ: kInt, env: "DQC_RETRY_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Retry.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Retry.MaxAttempts },
	},
	{
		key: "retry.stop_on_repeat_sql", typ: kBool, env: "DQC_RETRY_STOP_ON_REPEAT_SQL",
		apply:   func(cfg *Config, v any) { cfg.Retry.StopOnRepeatSQL = v.(bool) },
		extract: func(cfg Config) any { return cfg.Retry.StopOnRepeatSQL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DQC_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "DQC_LOG_LEVEL",
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
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
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
