package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 12, cfg.Engine.MaxRounds)
	assert.Equal(t, "errorCount <= 2", cfg.Engine.CheapFixRule)
	assert.Equal(t, "jsonschema", cfg.Validation.Backend)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 4, cfg.Batch.Parallelism)
	assert.Equal(t, int64(500), cfg.Engine.RetryDelay().Milliseconds())
	assert.NoError(t, validateConfig(cfg))
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6380")
	path := writeConfig(t, `
logging:
  level: debug
engine:
  max_rounds: 5
  cheap_fix_rule: "errorCount <= 3"
storage:
  driver: redis
  redis:
    address: ${TEST_REDIS_ADDR}
llm:
  routing:
    nodes:
      Generate: thinking
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Engine.MaxRounds)
	assert.Equal(t, "errorCount <= 3", cfg.Engine.CheapFixRule)
	assert.Equal(t, 2, cfg.Engine.CollaboratorRetries)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "redis.internal:6380", cfg.Storage.Redis.Address)
	// viper folds map keys to lower case
	assert.Equal(t, "thinking", cfg.LLM.Routing.Nodes["generate"])
}

func TestLoadFromFileEnvOverride(t *testing.T) {
	t.Setenv("JSONFORGE_ENGINE_MAX_ROUNDS", "3")
	t.Setenv("JSONFORGE_VALIDATION_BACKEND", "gojsonschema")
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := writeConfig(t, "engine:\n  max_rounds: 9\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.MaxRounds)
	assert.Equal(t, "gojsonschema", cfg.Validation.Backend)
	assert.Equal(t, "from-env", cfg.LLM.GenAI.APIKey)
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "backend", body: "validation:\n  backend: ajv\n"},
		{name: "driver", body: "storage:\n  driver: postgres\n"},
		{name: "negative retries", body: "engine:\n  collaborator_retries: -1\n"},
		{name: "routing family", body: "llm:\n  routing:\n    nodes:\n      generate: creative\n"},
		{name: "provider", body: "llm:\n  provider: carrier-pigeon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRounds, cfg.Engine.MaxRounds)
}
