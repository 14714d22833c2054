package config

import "time"

// Config is the application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Validation ValidationConfig `mapstructure:"validation"`
	Storage    StorageConfig    `mapstructure:"storage"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Batch      BatchConfig      `mapstructure:"batch"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	MaxRounds           int    `mapstructure:"max_rounds"`
	CheapFixRule        string `mapstructure:"cheap_fix_rule"`
	CollaboratorRetries int    `mapstructure:"collaborator_retries"`
	RetryDelayMs        int    `mapstructure:"retry_delay_ms"`  // milliseconds
	CallTimeoutMs       int    `mapstructure:"call_timeout_ms"` // milliseconds, 0 disables
}

// RetryDelay returns the pause between collaborator retries.
func (e EngineConfig) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelayMs) * time.Millisecond
}

// CallTimeout returns the per-call deadline, zero when disabled.
func (e EngineConfig) CallTimeout() time.Duration {
	return time.Duration(e.CallTimeoutMs) * time.Millisecond
}

type ValidationConfig struct {
	Backend string `mapstructure:"backend"` // "jsonschema" or "gojsonschema"
}

type StorageConfig struct {
	Driver string      `mapstructure:"driver"` // "memory" or "redis"
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Prefix   string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // "genai" or "http"
	GenAI    GenAIConfig   `mapstructure:"genai"`
	HTTP     HTTPConfig    `mapstructure:"http"`
	Routing  RoutingConfig `mapstructure:"routing"`
}

type GenAIConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	ThinkingModel string `mapstructure:"thinking_model"`
}

type HTTPConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	ThinkingModel string `mapstructure:"thinking_model"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// Timeout returns the HTTP client timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutMs) * time.Millisecond
}

// RoutingConfig maps workflow nodes to model families.
type RoutingConfig struct {
	Nodes map[string]string `mapstructure:"nodes"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type BatchConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}
