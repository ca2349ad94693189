// Package config provides configuration loading and validation for the
// agent. It handles YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Model constants for the Anthropic API.
const (
	ModelClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelClaudeOpus4   = "claude-opus-4-20250514"
)

// Default values applied when the config file omits a setting.
const (
	DefaultMaxTokens       = 4096
	DefaultImageRetention  = 10
	DefaultDisplayWidth    = 1024
	DefaultDisplayHeight   = 768
	DefaultDisplayNumber   = 1
	DefaultScreenshotStore = ".computer-use/screenshots"
)

// Config holds the agent's runtime configuration.
//
//nolint:govet // fieldalignment: fields grouped by concern
type Config struct {
	// Model is the Anthropic model identifier.
	Model string `yaml:"model"`

	// APIKey authenticates with the Anthropic API. Never written to the
	// config file; sourced from ANTHROPIC_API_KEY or interactive entry.
	APIKey string `yaml:"-"`

	// MaxTokens caps each model response.
	MaxTokens int `yaml:"max_tokens"`

	// ImageRetention bounds the screenshots kept in conversation context;
	// zero disables trimming.
	ImageRetention int `yaml:"image_retention"`

	// SystemPromptSuffix is appended to the built-in system prompt.
	SystemPromptSuffix string `yaml:"system_prompt_suffix"`

	// Display geometry of the X server the computer tool drives.
	DisplayWidth  int `yaml:"display_width"`
	DisplayHeight int `yaml:"display_height"`
	DisplayNumber int `yaml:"display_number"`

	// ScreenshotStore is the directory for the screenshot archive; empty
	// disables persistence.
	ScreenshotStore string `yaml:"screenshot_store"`

	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9190".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model:           ModelClaudeSonnet4,
		MaxTokens:       DefaultMaxTokens,
		ImageRetention:  DefaultImageRetention,
		DisplayWidth:    DefaultDisplayWidth,
		DisplayHeight:   DefaultDisplayHeight,
		DisplayNumber:   DefaultDisplayNumber,
		ScreenshotStore: DefaultScreenshotStore,
	}
}

// Load reads the config file at path (missing file is not an error), fills
// in defaults, and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DisplayWidth = n
		}
	}
	if v := os.Getenv("HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DisplayHeight = n
		}
	}
	if v := os.Getenv("DISPLAY_NUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DisplayNumber = n
		}
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.ImageRetention < 0 {
		return fmt.Errorf("image_retention must not be negative, got %d", c.ImageRetention)
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return fmt.Errorf("display geometry must be positive, got %dx%d", c.DisplayWidth, c.DisplayHeight)
	}
	if c.DisplayNumber < 0 {
		return fmt.Errorf("display_number must not be negative, got %d", c.DisplayNumber)
	}
	return nil
}

// DefaultPath returns the conventional config file location under the
// user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".computer-use", "config.yaml")
}
