// Package config provides configuration loading for waved.
//
// Configuration comes from a YAML file with environment-variable
// overrides. Precedence (highest to lowest):
//  1. Environment variables (WAVED_STATE_PATH, WAVED_LOCK_ATTEMPTS, ...)
//  2. YAML config file (~/.config/waved/config.yaml)
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/waved/internal/logging"
)

// DefaultStatePath is the project-relative location of the state document.
const DefaultStatePath = ".orchestration/task-graph.json"

// Config holds the complete waved configuration.
type Config struct {
	State   StateConfig     `koanf:"state"`
	Lock    LockConfig      `koanf:"lock"`
	Session SessionConfig   `koanf:"session"`
	Tracker TrackerConfig   `koanf:"tracker"`
	Logging *logging.Config `koanf:"logging"`
}

// StateConfig locates the persisted task graph.
type StateConfig struct {
	// Path is resolved relative to the project root (the handler's working
	// directory) unless absolute.
	Path string `koanf:"path"`
}

// LockConfig bounds lock acquisition.
type LockConfig struct {
	Attempts int           `koanf:"attempts"`
	Delay    time.Duration `koanf:"delay"`
}

// SessionConfig locates the session registry.
type SessionConfig struct {
	// Dir is the shared temp directory for session files. Empty uses
	// {tmp}/waved-sessions.
	Dir string `koanf:"dir"`
}

// TrackerConfig configures best-effort issue-tracker sync.
type TrackerConfig struct {
	Enabled bool `koanf:"enabled"`

	// Owner/Repo identify the repository; the issue number lives in the
	// task graph's tracker linkage.
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`

	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `koanf:"token_env"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.State.Path == "" {
		return fmt.Errorf("state path must not be empty")
	}
	if c.Lock.Attempts < 0 {
		return fmt.Errorf("lock attempts must be >= 0, got %d", c.Lock.Attempts)
	}
	if c.Lock.Delay < 0 {
		return fmt.Errorf("lock delay must be >= 0, got %s", c.Lock.Delay)
	}
	if c.Tracker.Enabled {
		if c.Tracker.Owner == "" || c.Tracker.Repo == "" {
			return fmt.Errorf("tracker owner and repo are required when tracker sync is enabled")
		}
	}
	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.State.Path == "" {
		cfg.State.Path = DefaultStatePath
	}
	if cfg.Lock.Attempts == 0 {
		cfg.Lock.Attempts = 50
	}
	if cfg.Lock.Delay == 0 {
		cfg.Lock.Delay = 100 * time.Millisecond
	}
	if cfg.Tracker.TokenEnv == "" {
		cfg.Tracker.TokenEnv = "GITHUB_TOKEN"
	}
	if cfg.Logging == nil {
		cfg.Logging = logging.NewDefaultConfig()
	} else {
		defaults := logging.NewDefaultConfig()
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = defaults.Level
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = defaults.Format
		}
		if cfg.Logging.Fields == nil {
			cfg.Logging.Fields = defaults.Fields
		}
	}
}
