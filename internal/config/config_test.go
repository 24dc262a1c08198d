package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 25565, cfg.Server.Port)
	assert.Equal(t, 5, cfg.ReconnectBackoffSeconds)
	assert.Equal(t, 5, cfg.CommandDelaySeconds)
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Web.Enabled)
	assert.Equal(t, "127.0.0.1:8765", cfg.Web.Listen)
}

func TestLoadFromParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
theme = "system"
reconnect_backoff_seconds = 12

[server]
host = "play.example.org"
port = 25599
version = "1.20.4"

[log]
level = "debug"
format = "text"

[web]
enabled = true
listen = "127.0.0.1:9999"
`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "system", cfg.Theme)
	assert.Equal(t, 12, cfg.ReconnectBackoffSeconds)
	assert.Equal(t, "play.example.org", cfg.Server.Host)
	assert.Equal(t, 25599, cfg.Server.Port)
	assert.Equal(t, "1.20.4", cfg.Server.Version)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Web.Listen)

	// Unset numeric fields get backfilled, not left at zero.
	assert.Equal(t, 5, cfg.CommandDelaySeconds)
}

func TestLoadFromRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("theme = [unclosed"), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFromClampsNonPositiveDelays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
reconnect_backoff_seconds = -3
command_delay_seconds = 0
`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ReconnectBackoffSeconds)
	assert.Equal(t, 5, cfg.CommandDelaySeconds)
}
