// Package config loads the coachd configuration from YAML with environment
// variable expansion, strict field checking, defaults, and validation.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for coachd.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Storage       StorageConfig       `yaml:"storage"`
	History       HistoryConfig       `yaml:"history"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig selects the generation provider and holds per-provider settings.
type LLMConfig struct {
	// Provider names the generation provider: anthropic or openai.
	Provider  string          `yaml:"provider"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`

	// MaxTokens caps handler completions.
	MaxTokens int `yaml:"max_tokens"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`

	// ClassifierModel is the low-latency model used for intent
	// classification. Defaults to gpt-4o-mini.
	ClassifierModel string `yaml:"classifier_model"`
}

type StorageConfig struct {
	// Driver is memory or sqlite.
	Driver string `yaml:"driver"`

	// Path is the SQLite database file, required for the sqlite driver.
	Path string `yaml:"path"`
}

type HistoryConfig struct {
	// Limit caps conversation turns loaded into a session context.
	Limit int `yaml:"limit"`
}

type AuthConfig struct {
	// JWTSecret enables bearer auth on the API when non-empty.
	JWTSecret string        `yaml:"jwt_secret"`
	Expiry    time.Duration `yaml:"expiry"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// OTLPEndpoint enables tracing when non-empty (e.g. "localhost:4317").
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
	Environment  string  `yaml:"environment"`
}

// applyDefaults fills zero values in place.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.History.Limit == 0 {
		c.History.Limit = 20
	}
	if c.Auth.Expiry == 0 {
		c.Auth.Expiry = 24 * time.Hour
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("llm.anthropic.api_key is required with the anthropic provider")
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("llm.openai.api_key is required with the openai provider")
		}
	default:
		return fmt.Errorf("llm.provider %q is not supported (anthropic, openai)", c.LLM.Provider)
	}

	// The classifier always runs on OpenAI regardless of generation provider.
	if c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("llm.openai.api_key is required for intent classification")
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required with the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (memory, sqlite)", c.Storage.Driver)
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must not be negative")
	}
	return nil
}
