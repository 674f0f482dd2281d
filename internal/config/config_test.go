package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultStatePath, cfg.State.Path)
	assert.Equal(t, 50, cfg.Lock.Attempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Lock.Delay)
	assert.Equal(t, "GITHUB_TOKEN", cfg.Tracker.TokenEnv)
	assert.False(t, cfg.Tracker.Enabled)
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
state:
  path: /work/.orchestration/graph.json
lock:
  attempts: 10
  delay: 25ms
tracker:
  enabled: true
  owner: acme
  repo: widgets
logging:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/work/.orchestration/graph.json", cfg.State.Path)
	assert.Equal(t, 10, cfg.Lock.Attempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Lock.Delay)
	assert.True(t, cfg.Tracker.Enabled)
	assert.Equal(t, "acme", cfg.Tracker.Owner)
	assert.Equal(t, "widgets", cfg.Tracker.Repo)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
state:
  path: /from/file.json
`)
	t.Setenv("WAVED_STATE_PATH", "/from/env.json")
	t.Setenv("WAVED_LOCK_ATTEMPTS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.json", cfg.State.Path)
	assert.Equal(t, 7, cfg.Lock.Attempts)
}

func TestLoadRejectsOversizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, maxConfigFileSize+1), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "state: [unclosed\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "empty state path",
			mutate:  func(c *Config) { c.State.Path = "" },
			wantErr: "state path",
		},
		{
			name:    "negative lock attempts",
			mutate:  func(c *Config) { c.Lock.Attempts = -1 },
			wantErr: "lock attempts",
		},
		{
			name:    "negative lock delay",
			mutate:  func(c *Config) { c.Lock.Delay = -time.Second },
			wantErr: "lock delay",
		},
		{
			name:    "tracker enabled without repo",
			mutate:  func(c *Config) { c.Tracker.Enabled = true; c.Tracker.Owner = "acme" },
			wantErr: "owner and repo",
		},
		{
			name:    "bad logging level",
			mutate:  func(c *Config) { c.Logging.Level = "shouty" },
			wantErr: "logging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
