// Package config provides unified configuration loading for the extraction
// pipeline. Supports YAML files, environment variable overrides, and
// programmatic defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the extraction pipeline.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Cascade       CascadeConfig       `yaml:"cascade"`
	PDF           PDFConfig           `yaml:"pdf"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Prompts       PromptsConfig       `yaml:"prompts"`
	Output        OutputConfig        `yaml:"output"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig selects the LLM provider/model pair and holds its credentials.
type LLMConfig struct {
	Provider         string `yaml:"provider"` // google or anthropic
	Model            string `yaml:"model"`
	GoogleAPIKey     string `yaml:"google_api_key"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	UseVertex        bool   `yaml:"use_vertex"`
	VertexProject    string `yaml:"vertex_project"`
	VertexRegion     string `yaml:"vertex_region"`
	VertexCredsPath  string `yaml:"vertex_credentials_path"`
	MaxRetries       int    `yaml:"max_retries"`
}

// CascadeConfig controls the optional cheap-model-first, expensive-model-
// on-too-many-missing-attributes cascade strategy.
type CascadeConfig struct {
	Enabled          bool   `yaml:"enabled"`
	CheapModel       string `yaml:"cheap_model"`
	ExpensiveModel   string `yaml:"expensive_model"`
	MissingThreshold int    `yaml:"missing_threshold"`
}

// PDFConfig bounds the Parser's input handling.
type PDFConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// PipelineConfig tunes batch execution.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// PromptsConfig locates the agent prompt template files.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// OutputConfig locates where batch results and exports are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds Redis (with in-memory fallback) settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	Addr       string        `yaml:"addr"`
	DB         int           `yaml:"db"`
	PoolSize   int           `yaml:"pool_size"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// ObservabilityConfig holds structured logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads a YAML config file (if path is non-empty), layers environment
// variable overrides on top, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "google",
			Model:      "gemini-2.5-flash",
			MaxRetries: 3,
		},
		Cascade: CascadeConfig{
			Enabled:          false,
			CheapModel:       "gemini-2.5-flash",
			ExpensiveModel:   "claude-sonnet-4@20250514",
			MissingThreshold: 10,
		},
		PDF: PDFConfig{
			MaxFileSizeMB: 20,
		},
		Pipeline: PipelineConfig{
			Concurrency: 4,
		},
		Prompts: PromptsConfig{
			Dir: "prompts",
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			Addr:       "localhost:6379",
			PoolSize:   10,
			TTL:        30 * time.Minute,
			MaxEntries: 10000,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LLM.Provider != "google" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("invalid llm provider: %s", c.LLM.Provider)
	}
	if c.LLM.Provider == "google" && c.LLM.GoogleAPIKey == "" && !c.LLM.UseVertex {
		return fmt.Errorf("google_api_key is required when llm.provider is google and use_vertex is false")
	}
	if c.LLM.Provider == "anthropic" && c.LLM.AnthropicAPIKey == "" && !c.LLM.UseVertex {
		return fmt.Errorf("anthropic_api_key is required when llm.provider is anthropic and use_vertex is false")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	if c.Cascade.MissingThreshold < 0 || c.Cascade.MissingThreshold > 33 {
		return fmt.Errorf("cascade.missing_threshold must be between 0 and 33")
	}
	if c.PDF.MaxFileSizeMB < 1 {
		return fmt.Errorf("pdf.max_file_size_mb must be positive")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.LLM.GoogleAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("USE_VERTEX"); v == "true" {
		cfg.LLM.UseVertex = true
	}
	if v := os.Getenv("VERTEX_PROJECT"); v != "" {
		cfg.LLM.VertexProject = v
	}
	if v := os.Getenv("VERTEX_REGION"); v != "" {
		cfg.LLM.VertexRegion = v
	}
	if v := os.Getenv("VERTEX_CREDENTIALS_PATH"); v != "" {
		cfg.LLM.VertexCredsPath = v
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxRetries = n
		}
	}
	if v := os.Getenv("CASCADE_ENABLED"); v == "true" {
		cfg.Cascade.Enabled = true
	}
	if v := os.Getenv("CASCADE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cascade.MissingThreshold = n
		}
	}
	if v := os.Getenv("CASCADE_CHEAP_MODEL"); v != "" {
		cfg.Cascade.CheapModel = v
	}
	if v := os.Getenv("CASCADE_EXPENSIVE_MODEL"); v != "" {
		cfg.Cascade.ExpensiveModel = v
	}
	if v := os.Getenv("PDF_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PDF.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("PIPELINE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Concurrency = n
		}
	}
	if v := os.Getenv("PROMPTS_DIR"); v != "" {
		cfg.Prompts.Dir = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves targetPath relative to configPath's
// directory, leaving absolute paths untouched.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
