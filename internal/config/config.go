package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Classifier modes shared by the intent and shield sections.
const (
	ModeOracle    = "oracle"
	ModeHeuristic = "heuristic"
)

// Config holds all configuration for the stancegate pipeline.
// It is loaded from ~/.stancegate/config.yaml and can be overridden by environment variables.
type Config struct {
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Intent      IntentConfig      `mapstructure:"intent" yaml:"intent"`
	Shield      ShieldConfig      `mapstructure:"shield" yaml:"shield"`
	Personality PersonalityConfig `mapstructure:"personality" yaml:"personality"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline" yaml:"pipeline"`
}

// LLMConfig contains configuration for the classification oracle and generator providers.
type LLMConfig struct {
	// DefaultProvider specifies which provider backs the oracle ("anthropic", "openai", "ollama", "gemini")
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	// MaxConcurrent bounds in-flight oracle calls across all requests (0 = unbounded)
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// ProviderConfig contains configuration for a specific LLM provider.
type ProviderConfig struct {
	// Endpoint is the API base URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key for the provider
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the specific model to use with this provider
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// TimeoutSec caps a single HTTP round trip
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// Timeout returns the provider timeout as a duration, zero when unset.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "console" or "json"
	Format string `mapstructure:"format" yaml:"format"`
	// File is an optional path for a persistent log sink
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// IntentConfig controls the intent classifier.
type IntentConfig struct {
	// Mode selects the implementation: "oracle" (with keyword fail-open) or "heuristic"
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Timeout is the deadline enforced around a single oracle call
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ShieldConfig controls the safety classifier.
type ShieldConfig struct {
	// Mode selects the implementation: "oracle" or "heuristic" (control patterns only)
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Timeout is the deadline enforced around a single oracle call
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PersonalityConfig controls generation constraints and the linguistic validator.
type PersonalityConfig struct {
	// BannedPhrases replaces the built-in banned phrase list when non-empty
	BannedPhrases []string `mapstructure:"banned_phrases" yaml:"banned_phrases,omitempty"`
	// MaxSelfReferences caps first-person plural pronoun usage in generated text
	MaxSelfReferences int `mapstructure:"max_self_references" yaml:"max_self_references"`
	// ActionThreshold is the score at which an action recommendation is reported
	ActionThreshold float64 `mapstructure:"action_threshold" yaml:"action_threshold"`
}

// PipelineConfig controls the orchestrator.
type PipelineConfig struct {
	// MaxRegenerations bounds regeneration attempts after a hard personality failure
	MaxRegenerations int `mapstructure:"max_regenerations" yaml:"max_regenerations"`
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
			Providers: map[string]ProviderConfig{
				"anthropic": {
					Endpoint:   "https://api.anthropic.com",
					Model:      "claude-3-5-haiku-20241022",
					TimeoutSec: 30,
				},
				"openai": {
					Endpoint:   "https://api.openai.com/v1",
					Model:      "gpt-4o-mini",
					TimeoutSec: 30,
				},
				"ollama": {
					Endpoint:   "http://127.0.0.1:11434",
					Model:      "llama3.2:3b",
					TimeoutSec: 60,
				},
				"gemini": {
					Model:      "gemini-2.5-flash",
					TimeoutSec: 30,
				},
			},
			MaxConcurrent: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Intent: IntentConfig{
			Mode:    ModeOracle,
			Timeout: 8 * time.Second,
		},
		Shield: ShieldConfig{
			Mode:    ModeOracle,
			Timeout: 8 * time.Second,
		},
		Personality: PersonalityConfig{
			MaxSelfReferences: 3,
			ActionThreshold:   0.5,
		},
		Pipeline: PipelineConfig{
			MaxRegenerations: 2,
		},
	}
}

// Load reads configuration from ~/.stancegate/config.yaml and merges with
// environment variables. If no config file exists, it creates one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".stancegate", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: STANCEGATE_LLM_PROVIDERS_OPENAI_API_KEY
	v.SetEnvPrefix("STANCEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills zero values left by partial config files.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = defaults.LLM.DefaultProvider
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = defaults.LLM.Providers
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Intent.Mode == "" {
		c.Intent.Mode = defaults.Intent.Mode
	}
	if c.Intent.Timeout == 0 {
		c.Intent.Timeout = defaults.Intent.Timeout
	}
	if c.Shield.Mode == "" {
		c.Shield.Mode = defaults.Shield.Mode
	}
	if c.Shield.Timeout == 0 {
		c.Shield.Timeout = defaults.Shield.Timeout
	}
	if c.Personality.MaxSelfReferences == 0 {
		c.Personality.MaxSelfReferences = defaults.Personality.MaxSelfReferences
	}
	if c.Personality.ActionThreshold == 0 {
		c.Personality.ActionThreshold = defaults.Personality.ActionThreshold
	}
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	return c.SaveToPath(c.GetConfigPath())
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the stancegate data directory path (~/.stancegate).
func (c *Config) GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".stancegate")
}

// GetConfigPath returns the full path to the config file.
func (c *Config) GetConfigPath() string {
	return filepath.Join(c.GetDataDir(), "config.yaml")
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}

	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	if c.LLM.MaxConcurrent < 0 {
		return fmt.Errorf("llm.max_concurrent cannot be negative")
	}

	validModes := map[string]bool{ModeOracle: true, ModeHeuristic: true}
	if !validModes[c.Intent.Mode] {
		return fmt.Errorf("invalid intent.mode '%s', must be one of: oracle, heuristic", c.Intent.Mode)
	}
	if !validModes[c.Shield.Mode] {
		return fmt.Errorf("invalid shield.mode '%s', must be one of: oracle, heuristic", c.Shield.Mode)
	}

	if c.Intent.Timeout < 0 || c.Shield.Timeout < 0 {
		return fmt.Errorf("classifier timeouts cannot be negative")
	}

	if c.Personality.MaxSelfReferences < 0 {
		return fmt.Errorf("personality.max_self_references cannot be negative")
	}

	if c.Personality.ActionThreshold <= 0 || c.Personality.ActionThreshold > 1 {
		return fmt.Errorf("personality.action_threshold must be in (0, 1]")
	}

	if c.Pipeline.MaxRegenerations < 0 {
		return fmt.Errorf("pipeline.max_regenerations cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format '%s', must be 'console' or 'json'", c.Logging.Format)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
