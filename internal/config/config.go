package config

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Database DatabaseConfig
	Policy   PolicyConfig
	Executor ExecutorConfig
	Retry    RetryConfig
	Storage  StorageConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type DatabaseConfig struct {
	Path string
}

type PolicyConfig struct {
	DefaultLimit       int
	MaxLimit           int
	DisallowWith       bool
	DisallowSelectStar bool
}

type ExecutorConfig struct {
	TimeoutMs int
	MaxRows   int
}

type RetryConfig struct {
	MaxAttempts     int
	StopOnRepeatSQL bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "sqlcoder",
		},
		Database: DatabaseConfig{
			Path: "data.db",
		},
		Policy: PolicyConfig{
			DefaultLimit: 200,
			MaxLimit:     1000,
		},
		Executor: ExecutorConfig{
			TimeoutMs: 5000,
			MaxRows:   1000,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			StopOnRepeatSQL: true,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/dqc/config.json with environment variables (DQC_*)
// overriding backend values. The API token is env-only and is validated by
// the serve command, not here; every other command works without it.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
