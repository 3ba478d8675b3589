// Package config loads orchestrator configuration from the project home.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ApprovalPolicy decides who signs off a wave before the next one starts.
type ApprovalPolicy string

const (
	// ApprovalGate lets the quality gate approve waves automatically.
	ApprovalGate ApprovalPolicy = "gate"
	// ApprovalManual requires an explicit human sign-off per wave.
	ApprovalManual ApprovalPolicy = "manual"
)

// Config holds orchestrator configuration options.
type Config struct {
	// MaxConcurrency bounds how many tasks run at once within a wave.
	MaxConcurrency int `yaml:"max_concurrency"`

	// TaskTimeout is the maximum wall-clock time for one task attempt.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GenerateTimeout bounds each content-generation call.
	GenerateTimeout time.Duration `yaml:"generate_timeout"`

	// Model is the content-generation model identifier.
	Model string `yaml:"model"`

	// StorePath is the SQLite database location, relative to the home dir
	// unless absolute.
	StorePath string `yaml:"store_path"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// StrictGate applies the raised review thresholds to every wave.
	StrictGate bool `yaml:"strict_gate"`

	// Approval selects who signs off completed waves.
	Approval ApprovalPolicy `yaml:"approval"`

	// ListenAddr is the approval API bind address.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		MaxConcurrency:  4,
		TaskTimeout:     30 * time.Minute,
		GenerateTimeout: 2 * time.Minute,
		Model:           "gpt-4o-mini",
		StorePath:       "neuralaunch.db",
		LogLevel:        "info",
		StrictGate:      false,
		Approval:        ApprovalGate,
		ListenAddr:      "127.0.0.1:8321",
	}
}

// Load reads configuration from path, merging file values over defaults.
// A missing file returns defaults without error; a malformed file errors.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Durations arrive as strings ("30m", "2h"), so parse through an
	// intermediate shape.
	type yamlConfig struct {
		MaxConcurrency  int            `yaml:"max_concurrency"`
		TaskTimeout     string         `yaml:"task_timeout"`
		GenerateTimeout string         `yaml:"generate_timeout"`
		Model           string         `yaml:"model"`
		StorePath       string         `yaml:"store_path"`
		LogLevel        string         `yaml:"log_level"`
		StrictGate      bool           `yaml:"strict_gate"`
		Approval        ApprovalPolicy `yaml:"approval"`
		ListenAddr      string         `yaml:"listen_addr"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.TaskTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.TaskTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid task_timeout %q: %w", yamlCfg.TaskTimeout, err)
		}
		cfg.TaskTimeout = d
	}
	if yamlCfg.GenerateTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.GenerateTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid generate_timeout %q: %w", yamlCfg.GenerateTimeout, err)
		}
		cfg.GenerateTimeout = d
	}
	if yamlCfg.Model != "" {
		cfg.Model = yamlCfg.Model
	}
	if yamlCfg.StorePath != "" {
		cfg.StorePath = yamlCfg.StorePath
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.StrictGate {
		cfg.StrictGate = true
	}
	if yamlCfg.Approval != "" {
		cfg.Approval = yamlCfg.Approval
	}
	if yamlCfg.ListenAddr != "" {
		cfg.ListenAddr = yamlCfg.ListenAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive, got %s", c.TaskTimeout)
	}
	switch c.Approval {
	case ApprovalGate, ApprovalManual:
	default:
		return fmt.Errorf("approval must be %q or %q, got %q", ApprovalGate, ApprovalManual, c.Approval)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
