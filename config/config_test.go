package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "8000", c.Server.Port)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", c.Completion.Endpoint)
	assert.Equal(t, "mistralai/mistral-7b-instruct", c.Completion.Model)
	assert.Equal(t, "OpenRouter", c.Completion.Provider)
	assert.Equal(t, 30*time.Second, c.Completion.Timeout)
	assert.Equal(t, 1500, c.Completion.MaxTokens)
	assert.Equal(t, 2000, c.Generator.ChunkSize)
	assert.Equal(t, 1, c.Generator.Concurrency)
	assert.Zero(t, c.Generator.RequestTimeout)
	assert.Zero(t, c.Completion.BreakerThreshold)
	assert.False(t, c.RedisEnabled())
	assert.Equal(t, []string{"*"}, c.Security.CorsAllowedOrigins)
	assert.NoError(t, c.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("COMPLETION_MODEL", "openai/gpt-4o-mini")
	t.Setenv("COMPLETION_TIMEOUT", "45s")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("GENERATOR_CONCURRENCY", "4")
	t.Setenv("GENERATOR_REQUEST_TIMEOUT", "2m")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("COMPLETION_BREAKER_THRESHOLD", "5")
	t.Setenv("COMPLETION_BREAKER_COOLDOWN", "1m")
	t.Setenv("SECURITY_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c := Load()

	assert.Equal(t, "9000", c.Server.Port)
	assert.Equal(t, "sk-env", c.Completion.APIKey)
	assert.Equal(t, "openai/gpt-4o-mini", c.Completion.Model)
	assert.Equal(t, 45*time.Second, c.Completion.Timeout)
	assert.Equal(t, 500, c.Generator.ChunkSize)
	assert.Equal(t, 4, c.Generator.Concurrency)
	assert.Equal(t, 2*time.Minute, c.Generator.RequestTimeout)
	assert.True(t, c.RedisEnabled())
	assert.Equal(t, 5, c.Completion.BreakerThreshold)
	assert.Equal(t, time.Minute, c.Completion.BreakerCooldown)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Security.CorsAllowedOrigins)
}

func TestInvalidEnvironmentValuesFallBack(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "big")
	t.Setenv("COMPLETION_TIMEOUT", "soon")
	t.Setenv("METRICS_ENABLED", "maybe")

	c := Load()
	assert.Equal(t, 2000, c.Generator.ChunkSize)
	assert.Equal(t, 30*time.Second, c.Completion.Timeout)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codescribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8100"
completion:
  model: anthropic/claude-3-haiku
  timeout: 20s
generator:
  chunk_size: 1000
  concurrency: 2
logging:
  level: debug
`), 0644))

	t.Run("file values over defaults", func(t *testing.T) {
		c, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "8100", c.Server.Port)
		assert.Equal(t, "anthropic/claude-3-haiku", c.Completion.Model)
		assert.Equal(t, 20*time.Second, c.Completion.Timeout)
		assert.Equal(t, 1000, c.Generator.ChunkSize)
		assert.Equal(t, "debug", c.Logging.Level)
		// untouched sections keep defaults
		assert.Equal(t, 1500, c.Completion.MaxTokens)
		assert.NoError(t, c.Validate())
	})

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("CHUNK_SIZE", "300")
		c, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 300, c.Generator.ChunkSize)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0644))
		_, err := LoadFile(bad)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero chunk size", mutate: func(c *Config) { c.Generator.ChunkSize = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Generator.Concurrency = 0 }},
		{name: "concurrency above bound", mutate: func(c *Config) { c.Generator.Concurrency = 64 }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
		{name: "bad endpoint", mutate: func(c *Config) { c.Completion.Endpoint = "not a url" }},
		{name: "sub-second timeout", mutate: func(c *Config) { c.Completion.Timeout = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestMappings(t *testing.T) {
	c := Default()
	c.Completion.APIKey = "sk-test"
	c.Generator.RequestTimeout = time.Minute
	c.Redis.Host = "cache"

	opts := c.GeneratorOptions()
	assert.Equal(t, 2000, opts.ChunkSize)
	assert.Equal(t, 1500, opts.MaxTokens)
	assert.Equal(t, 1, opts.Concurrency)
	assert.Equal(t, time.Minute, opts.RequestTimeout)
	assert.Equal(t, "OpenRouter", opts.Provider)

	cc := c.CompletionClientConfig()
	assert.Equal(t, "sk-test", cc.APIKey)
	assert.Equal(t, c.Completion.Endpoint, cc.Endpoint)

	gc := c.CompletionGuardConfig()
	assert.Zero(t, gc.Threshold)
	assert.Equal(t, 30*time.Second, gc.Cooldown)

	sc := c.StorageConfig()
	assert.Equal(t, "cache:6379", sc.Addr())
	assert.Equal(t, "codescribe:limiter", sc.Namespace)

	assert.Equal(t, "info", c.LoggerConfig().Level)
	assert.Equal(t, 16, c.ValidatorConfig().MaxConcurrency)
}
