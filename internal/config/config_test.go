package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("openrouter:\n  enabled: true\n  api_key: sk-test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.OpenRouter.URL)
	assert.Equal(t, DefaultTemperature, cfg.OpenRouter.Temperature)
	assert.Equal(t, DefaultTopP, cfg.OpenRouter.TopP)
	assert.Equal(t, 2, cfg.OpenRouter.MaxConcurrentQueries)
	assert.Zero(t, cfg.OpenRouter.TopK)
	assert.Zero(t, cfg.OpenRouter.MaxTokens)
}

func TestParseFullConfig(t *testing.T) {
	data := []byte(`
server:
  port: 9090
app:
  env: production
  log_level: debug
openrouter:
  enabled: true
  api_key: sk-test
  url: https://example.com/v1/chat/completions
  model: some/model
  max_tokens: 512
  temperature: 0.3
  top_p: 0.8
  top_k: 40
  system_prompt: You are an NPC.
  seed: "1234"
  site_url: https://game.example.com
  site_name: Example Game
  max_concurrent_queries: 8
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "debug", cfg.App.LogLevel)

	or := cfg.OpenRouter
	assert.True(t, or.Enabled)
	assert.Equal(t, "sk-test", or.APIKey)
	assert.Equal(t, "https://example.com/v1/chat/completions", or.URL)
	assert.Equal(t, "some/model", or.Model)
	assert.Equal(t, 512, or.MaxTokens)
	assert.Equal(t, 0.3, or.Temperature)
	assert.Equal(t, 0.8, or.TopP)
	assert.Equal(t, 40, or.TopK)
	assert.Equal(t, "You are an NPC.", or.SystemPrompt)
	assert.Equal(t, "1234", or.Seed)
	assert.Equal(t, "https://game.example.com", or.SiteURL)
	assert.Equal(t, "Example Game", or.SiteName)
	assert.Equal(t, 8, or.MaxConcurrentQueries)
}

func TestParseExplicitZeroConcurrency(t *testing.T) {
	cfg, err := Parse([]byte("openrouter:\n  max_concurrent_queries: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.OpenRouter.MaxConcurrentQueries, "explicit 0 means unlimited, not the default")
}

func TestParseMissingAPIKeyIsNotAnError(t *testing.T) {
	cfg, err := Parse([]byte("openrouter:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.OpenRouter.APIKey)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-from-env")

	cfg, err := Parse([]byte("openrouter:\n  api_key: sk-from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.OpenRouter.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"enabled without url", func(c *Config) { c.OpenRouter.Enabled = true; c.OpenRouter.URL = " " }},
		{"enabled without model", func(c *Config) { c.OpenRouter.Enabled = true; c.OpenRouter.Model = "" }},
		{"temperature too high", func(c *Config) { c.OpenRouter.Temperature = 2.5 }},
		{"negative temperature", func(c *Config) { c.OpenRouter.Temperature = -0.1 }},
		{"top_p above one", func(c *Config) { c.OpenRouter.TopP = 1.5 }},
		{"negative top_k", func(c *Config) { c.OpenRouter.TopK = -1 }},
		{"negative max_tokens", func(c *Config) { c.OpenRouter.MaxTokens = -10 }},
		{"negative concurrency", func(c *Config) { c.OpenRouter.MaxConcurrentQueries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
