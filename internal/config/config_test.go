package config

import (
	"testing"
)

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, _ := v.(int)
	return i, true, nil
}

func (b *memBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *memBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Policy.DefaultLimit != 200 || cfg.Policy.MaxLimit != 1000 {
		t.Errorf("policy limits = %d/%d", cfg.Policy.DefaultLimit, cfg.Policy.MaxLimit)
	}
	if cfg.Retry.MaxAttempts != 3 || !cfg.Retry.StopOnRepeatSQL {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Executor.TimeoutMs != 5000 || cfg.Executor.MaxRows != 1000 {
		t.Errorf("executor = %+v", cfg.Executor)
	}
}

func TestLoad_BackendOverridesDefaults(t *testing.T) {
	b := newMemBackend()
	b.SetInt("server.port", 9999)
	b.SetString("ollama.model", "duckdb-nsql")
	b.SetInt("retry.max_attempts", 5)
	b.SetString("policy.disallow_with", "true")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "duckdb-nsql" {
		t.Errorf("Ollama.Model = %q", cfg.Ollama.Model)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d", cfg.Retry.MaxAttempts)
	}
	if !cfg.Policy.DisallowWith {
		t.Error("Policy.DisallowWith = false")
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	b := newMemBackend()
	b.SetString("database.path", "/from/backend.db")

	t.Setenv("DQC_DATABASE_PATH", "/from/env.db")
	t.Setenv("DQC_EXECUTOR_MAX_ROWS", "42")
	t.Setenv("DQC_RETRY_STOP_ON_REPEAT_SQL", "false")
	t.Setenv("DQC_API_TOKEN", "sekrit")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want env value", cfg.Database.Path)
	}
	if cfg.Executor.MaxRows != 42 {
		t.Errorf("Executor.MaxRows = %d", cfg.Executor.MaxRows)
	}
	if cfg.Retry.StopOnRepeatSQL {
		t.Error("Retry.StopOnRepeatSQL = true, want env override false")
	}
	if cfg.Server.Token != "sekrit" {
		t.Errorf("Server.Token = %q, want env value", cfg.Server.Token)
	}
}

func TestLoad_BadEnvValueKeepsDefault(t *testing.T) {
	t.Setenv("DQC_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default after bad env", cfg.Server.Port)
	}
}

func TestQueryPolicy(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	cfg.Policy.DefaultLimit = 100
	cfg.Policy.MaxLimit = 500
	cfg.Policy.DisallowSelectStar = true

	p := cfg.QueryPolicy()
	if p.DefaultLimit != 100 || p.MaxLimit != 500 {
		t.Errorf("limits = %d/%d", p.DefaultLimit, p.MaxLimit)
	}
	if !p.DisallowSelectStar {
		t.Error("DisallowSelectStar not carried")
	}
	// Hard guarantees always on.
	if !p.AllowOnlySelect || !p.DisallowSemicolons || !p.DisallowWrites {
		t.Errorf("hard guarantees off: %+v", p)
	}
}

func TestSetKeyAndShowAll(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) == 0 {
		t.Fatal("ShowAll returned nothing")
	}
	for _, info := range infos {
		if info.Key == "server.token" {
			t.Error("ShowAll leaked a secret key")
		}
	}

	keys := ValidKeys()
	found := false
	for _, k := range keys {
		if k == "ollama.model" {
			found = true
		}
		if k == "server.token" {
			t.Error("ValidKeys includes a secret key")
		}
	}
	if !found {
		t.Errorf("ValidKeys missing ollama.model: %v", keys)
	}
}
