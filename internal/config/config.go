// Package config loads runtime configuration from an optional YAML file,
// a .env file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for draft and apply runs.
type Config struct {
	AI struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"ai"`
	Run struct {
		Attempts       int    `yaml:"attempts"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		ContextFile    string `yaml:"context_file"`
		OutputRoot     string `yaml:"output_root"`
	} `yaml:"run"`
	Repo struct {
		Allowlist []string `yaml:"allowlist"`
		Denylist  []string `yaml:"denylist"`
	} `yaml:"repo"`
}

// Default returns the shipped defaults.
func Default() *Config {
	var cfg Config
	cfg.AI.Provider = "gemini"
	cfg.AI.Model = "gemini-2.5-flash"
	cfg.AI.Temperature = 0.1
	cfg.Run.Attempts = 3
	cfg.Run.TimeoutSeconds = 90
	cfg.Run.ContextFile = "additional-context.md"
	cfg.Run.OutputRoot = "outputs"
	return &cfg
}

// Load reads the optional YAML config, then .env, then environment
// overrides. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if key := os.Getenv("GOVDRAFT_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if provider := os.Getenv("GOVDRAFT_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("GOVDRAFT_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if attempts := os.Getenv("GOVDRAFT_ATTEMPTS"); attempts != "" {
		n, err := strconv.Atoi(attempts)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid GOVDRAFT_ATTEMPTS value %q", attempts)
		}
		cfg.Run.Attempts = n
	}
	return cfg, nil
}

// Timeout returns the per-attempt generation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Run.TimeoutSeconds) * time.Second
}
