package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "google", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.False(t, cfg.Cascade.Enabled)
	assert.Equal(t, 10, cfg.Cascade.MissingThreshold)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "memory", cfg.Cache.Driver)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: google
  google_api_key: from-yaml
pipeline:
  concurrency: 2
`), 0o644))

	t.Setenv("PIPELINE_CONCURRENCY", "8")
	t.Setenv("CASCADE_ENABLED", "true")
	t.Setenv("CASCADE_THRESHOLD", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.LLM.GoogleAPIKey)
	// Environment overrides layer on top of the YAML file.
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Cascade.Enabled)
	assert.Equal(t, 12, cfg.Cascade.MissingThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }, "invalid llm provider"},
		{"missing google key", func(c *Config) { c.LLM.GoogleAPIKey = "" }, "google_api_key is required"},
		{
			"missing anthropic key",
			func(c *Config) { c.LLM.Provider = "anthropic"; c.LLM.AnthropicAPIKey = "" },
			"anthropic_api_key is required",
		},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "max_retries"},
		{"threshold out of range", func(c *Config) { c.Cascade.MissingThreshold = 40 }, "missing_threshold"},
		{"zero max file size", func(c *Config) { c.PDF.MaxFileSizeMB = 0 }, "max_file_size_mb"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "concurrency"},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "cache driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LLM.GoogleAPIKey = "key"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateVertexNeedsNoAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.UseVertex = true
	assert.NoError(t, cfg.Validate())
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/abs/prompts", ResolveRelativePath("/etc/app/config.yaml", "/abs/prompts"))
	assert.Equal(t, filepath.Join("/etc/app", "prompts"), ResolveRelativePath("/etc/app/config.yaml", "prompts"))
}
