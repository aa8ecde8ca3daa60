package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Documented OpenRouter sampling defaults. Parameters matching these values
// are omitted from outbound payloads.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

const (
	defaultPort          = 8080
	defaultURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel         = "mistralai/mistral-7b-instruct"
	defaultMaxConcurrent = 2
)

// Config represents the application configuration parsed from YAML, with
// selected fields overridable from the environment.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	App        AppConfig        `yaml:"app"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port" envconfig:"SERVER_PORT"`
}

// AppConfig carries process-level settings.
type AppConfig struct {
	Env      string `yaml:"env" envconfig:"APP_ENV"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// OpenRouterConfig captures authentication, model selection, and sampling
// parameters for the OpenRouter chat-completions endpoint. Values are read
// once at startup and never mutated afterwards.
type OpenRouterConfig struct {
	Enabled      bool    `yaml:"enabled"`
	APIKey       string  `yaml:"api_key" envconfig:"OPENROUTER_API_KEY"`
	URL          string  `yaml:"url"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	TopK         int     `yaml:"top_k"`
	SystemPrompt string  `yaml:"system_prompt"`
	Seed         string  `yaml:"seed"`
	SiteURL      string  `yaml:"site_url"`
	SiteName     string  `yaml:"site_name"`

	// MaxConcurrentQueries caps simultaneously in-flight exchanges.
	// 0 disables the cap entirely.
	MaxConcurrentQueries int `yaml:"max_concurrent_queries"`
}

// Default returns a Config pre-filled with documented defaults. Parsing
// layers file values on top, so keys absent from the file keep these
// values while explicit zero values survive.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: defaultPort},
		App: AppConfig{
			Env:      "development",
			LogLevel: "info",
		},
		OpenRouter: OpenRouterConfig{
			URL:                  defaultURL,
			Model:                defaultModel,
			Temperature:          DefaultTemperature,
			TopP:                 DefaultTopP,
			MaxConcurrentQueries: defaultMaxConcurrent,
		},
	}
}

// Load reads YAML configuration from disk, applies environment overrides
// (a .env file is honoured when present), and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes over the defaults and validates the result.
// Environment variables win over file values; the .env load is best
// effort and a missing file is not an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	_ = godotenv.Load()
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration. A missing
// API key is deliberately not an error here: the transport short-circuits
// unauthenticated queries with a fixed reply at request time.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	or := c.OpenRouter
	if or.Enabled {
		if strings.TrimSpace(or.URL) == "" {
			return fmt.Errorf("openrouter: url must be provided")
		}
		if strings.TrimSpace(or.Model) == "" {
			return fmt.Errorf("openrouter: model must be provided")
		}
	}
	if or.Temperature < 0 || or.Temperature > 2 {
		return fmt.Errorf("openrouter: temperature %v must be within [0, 2]", or.Temperature)
	}
	if or.TopP <= 0 || or.TopP > 1 {
		return fmt.Errorf("openrouter: top_p %v must be within (0, 1]", or.TopP)
	}
	if or.TopK < 0 {
		return fmt.Errorf("openrouter: top_k must not be negative, got %d", or.TopK)
	}
	if or.MaxTokens < 0 {
		return fmt.Errorf("openrouter: max_tokens must not be negative, got %d", or.MaxTokens)
	}
	if or.MaxConcurrentQueries < 0 {
		return fmt.Errorf("openrouter: max_concurrent_queries must not be negative, got %d", or.MaxConcurrentQueries)
	}
	return nil
}
