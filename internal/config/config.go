package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.spotpanelrc, $XDG_CONFIG_HOME/spotpanel/config.toml, ~/.config/spotpanel/config.toml
func Load() (*Config, error) {
	path := findConfigFile()
	if path == "" {
		cfg := Default()
		cfg.ApplyDefaults()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from a specific file path. Keys missing from
// the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", panelerrors.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", panelerrors.ErrInvalidConfig, path, err)
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Path returns the config file Load would read, or "" if none exists.
func Path() string {
	return findConfigFile()
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".spotpanelrc"),
	}

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "spotpanel", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// dataPath returns name inside $XDG_DATA_HOME/spotpanel.
func dataPath(name string) string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return name
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "spotpanel", name)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Backend
	if v := os.Getenv("SPOTPANEL_BACKEND_TRANSPORT"); v != "" {
		cfg.Backend.Transport = v
	}
	if v := os.Getenv("SPOTPANEL_BACKEND_ADDRESS"); v != "" {
		cfg.Backend.Address = v
	}
	if v := os.Getenv("SPOTPANEL_BACKEND_TIMEOUT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Backend.Timeout = i
		}
	}

	// Service
	if v := os.Getenv("SPOTPANEL_SERVICE_UNIT"); v != "" {
		cfg.Service.Unit = v
	}

	// MPRIS
	if v := os.Getenv("SPOTPANEL_MPRIS_BUS_PREFIX"); v != "" {
		cfg.MPRIS.BusPrefix = v
	}
	if v := os.Getenv("SPOTPANEL_MPRIS_BUS_ADDRESS_FILE"); v != "" {
		cfg.MPRIS.BusAddressFile = v
	}

	// Engine
	if v := os.Getenv("SPOTPANEL_ENGINE_POLL_FALLBACK"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Engine.PollFallback = i
		}
	}
	if v := os.Getenv("SPOTPANEL_ENGINE_STATUS_INTERVAL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Engine.StatusInterval = i
		}
	}

	// Agent
	if v := os.Getenv("SPOTPANEL_AGENT_LISTEN"); v != "" {
		cfg.Agent.Listen = v
	}

	// TUI
	if v := os.Getenv("SPOTPANEL_TUI_THEME"); v != "" {
		cfg.TUI.Theme = v
	}

	// Log
	if v := os.Getenv("SPOTPANEL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SPOTPANEL_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
