package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults.
const (
	DefaultMaxRounds           = 12
	DefaultCheapFixRule        = "errorCount <= 2"
	DefaultCollaboratorRetries = 2
	DefaultRetryDelayMs        = 500
	DefaultBackend             = "jsonschema"
	DefaultStorageDriver       = "memory"
	DefaultParallelism         = 4
)

// Load reads ./configs/config.yaml (or ./config.yaml), merges
// config.<APP_ENVIRONMENT>.yaml when present, and applies .env and
// environment overrides. A missing base file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile reads one explicit config file plus environment overrides.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}
	return finish(v)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("JSONFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can override keys the
// file does not mention.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "jsonforge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("engine.max_rounds", DefaultMaxRounds)
	v.SetDefault("engine.cheap_fix_rule", DefaultCheapFixRule)
	v.SetDefault("engine.collaborator_retries", DefaultCollaboratorRetries)
	v.SetDefault("engine.retry_delay_ms", DefaultRetryDelayMs)
	v.SetDefault("engine.call_timeout_ms", 0)
	v.SetDefault("validation.backend", DefaultBackend)
	v.SetDefault("storage.driver", DefaultStorageDriver)
	v.SetDefault("storage.redis.address", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.prefix", "jsonforge:")
	v.SetDefault("llm.provider", "genai")
	v.SetDefault("llm.genai.api_key", "")
	v.SetDefault("llm.genai.model", "gemini-2.5-flash")
	v.SetDefault("llm.genai.thinking_model", "gemini-2.5-pro")
	v.SetDefault("llm.http.base_url", "")
	v.SetDefault("llm.http.api_key", "")
	v.SetDefault("llm.http.model", "")
	v.SetDefault("llm.http.thinking_model", "")
	v.SetDefault("llm.http.timeout_ms", 60000)
	v.SetDefault("llm.http.max_retries", 2)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("batch.parallelism", DefaultParallelism)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars resolves ${VAR} references in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		if expanded := os.ExpandEnv(s); expanded != s {
			v.Set(key, expanded)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "jsonforge"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Engine.MaxRounds == 0 {
		cfg.Engine.MaxRounds = DefaultMaxRounds
	}
	if strings.TrimSpace(cfg.Engine.CheapFixRule) == "" {
		cfg.Engine.CheapFixRule = DefaultCheapFixRule
	}
	if cfg.Engine.RetryDelayMs == 0 {
		cfg.Engine.RetryDelayMs = DefaultRetryDelayMs
	}
	if cfg.Validation.Backend == "" {
		cfg.Validation.Backend = DefaultBackend
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.Redis.PoolSize == 0 {
		cfg.Storage.Redis.PoolSize = 10
	}
	if cfg.LLM.HTTP.TimeoutMs == 0 {
		cfg.LLM.HTTP.TimeoutMs = 60000
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}
	if cfg.Batch.Parallelism == 0 {
		cfg.Batch.Parallelism = DefaultParallelism
	}
}

// overrideFromEnv fills provider keys from their conventional variables.
func overrideFromEnv(cfg *Config) {
	if cfg.LLM.GenAI.APIKey == "" {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.LLM.GenAI.APIKey = val
				break
			}
		}
	}
	if cfg.Storage.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Storage.Redis.Password = val
		}
	}
}

func validateConfig(cfg *Config) error {
	var problems []string
	if cfg.Engine.MaxRounds < 0 {
		problems = append(problems, "engine.max_rounds must not be negative")
	}
	if cfg.Engine.CollaboratorRetries < 0 {
		problems = append(problems, "engine.collaborator_retries must not be negative")
	}
	if cfg.Engine.RetryDelayMs < 0 || cfg.Engine.CallTimeoutMs < 0 {
		problems = append(problems, "engine delays must not be negative")
	}
	switch cfg.Validation.Backend {
	case "jsonschema", "gojsonschema":
	default:
		problems = append(problems, fmt.Sprintf("validation.backend %q is not supported", cfg.Validation.Backend))
	}
	switch cfg.Storage.Driver {
	case "memory":
	case "redis":
		if cfg.Storage.Redis.Address == "" {
			problems = append(problems, "storage.redis.address is required for the redis driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q is not supported", cfg.Storage.Driver))
	}
	switch cfg.LLM.Provider {
	case "", "genai", "http":
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", cfg.LLM.Provider))
	}
	for node, family := range cfg.LLM.Routing.Nodes {
		if family != "generative" && family != "thinking" {
			problems = append(problems, fmt.Sprintf("llm.routing.nodes.%s: unknown family %q", node, family))
		}
	}
	if cfg.Batch.Parallelism < 0 {
		problems = append(problems, "batch.parallelism must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
