// Package config loads the user-facing TOML configuration from
// ~/.botdeck/config.toml and resolves the botdeck data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML config file for user preferences.
const FileName = "config.toml"

// Config represents user-facing configuration in TOML format.
type Config struct {
	// Server holds the default connection target, merged into every
	// account's connect options unless the account overrides it.
	Server ServerSettings `toml:"server"`

	// ReconnectBackoffSeconds is the fixed delay before an automatic
	// reconnect attempt (default: 5).
	ReconnectBackoffSeconds int `toml:"reconnect_backoff_seconds"`

	// CommandDelaySeconds is the default delay between auto-login
	// commands (default: 5).
	CommandDelaySeconds int `toml:"command_delay_seconds"`

	// Theme sets the color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	// Log defines logging settings.
	Log LogSettings `toml:"log"`

	// Web defines the websocket event bridge settings.
	Web WebSettings `toml:"web"`
}

// ServerSettings is the default server to connect bots to.
type ServerSettings struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Version string `toml:"version"`
}

// LogSettings defines log file management.
type LogSettings struct {
	// Level is "debug", "info", "warn" or "error" (default: "info")
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// Disabled turns file logging off entirely.
	Disabled bool `toml:"disabled"`
}

// WebSettings defines the optional websocket event bridge.
type WebSettings struct {
	// Enabled starts the bridge alongside the TUI (default: false).
	Enabled bool `toml:"enabled"`

	// Listen is the bridge bind address (default: "127.0.0.1:8765").
	Listen string `toml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:                  ServerSettings{Port: 25565},
		ReconnectBackoffSeconds: 5,
		CommandDelaySeconds:     5,
		Theme:                   "dark",
		Log:                     LogSettings{Level: "info", Format: "json"},
		Web:                     WebSettings{Listen: "127.0.0.1:8765"},
	}
}

// Dir returns the botdeck data directory (~/.botdeck).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".botdeck"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the user config, applying defaults for anything unset.
// A missing file is not an error; the defaults are returned.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cfg.ReconnectBackoffSeconds <= 0 {
		cfg.ReconnectBackoffSeconds = 5
	}
	if cfg.CommandDelaySeconds <= 0 {
		cfg.CommandDelaySeconds = 5
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 25565
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8765"
	}
	return cfg, nil
}

// Save writes the config back to disk in TOML form.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
