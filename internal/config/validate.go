package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Service.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("service: %w", err))
	}
	if err := c.MPRIS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mpris: %w", err))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if err := c.Agent.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks BackendConfig for errors.
func (c *BackendConfig) Validate() error {
	switch c.Transport {
	case "", "http", "local":
		// valid
	default:
		return fmt.Errorf("invalid transport: %s (must be http or local)", c.Transport)
	}
	if c.Transport == "http" || c.Transport == "" {
		u, err := url.Parse(c.Address)
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		if c.Address != "" && u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid address: %s (must be an http:// or https:// URL)", c.Address)
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	if c.Retries < 0 {
		return errors.New("retries must be non-negative")
	}
	return nil
}

// Validate checks ServiceConfig for errors.
func (c *ServiceConfig) Validate() error {
	if c.Unit != "" && !strings.Contains(c.Unit, ".") {
		return fmt.Errorf("invalid unit: %s (must include a suffix such as .service)", c.Unit)
	}
	return nil
}

// Validate checks MPRISConfig for errors.
func (c *MPRISConfig) Validate() error {
	if c.BusPrefix != "" && !strings.HasPrefix(c.BusPrefix, "org.mpris.MediaPlayer2.") {
		return fmt.Errorf("invalid bus_prefix: %s (must start with org.mpris.MediaPlayer2.)", c.BusPrefix)
	}
	return nil
}

// Validate checks EngineConfig for errors.
func (c *EngineConfig) Validate() error {
	if c.Tick < 0 {
		return errors.New("tick must be non-negative")
	}
	if c.Debounce < 0 {
		return errors.New("debounce must be non-negative")
	}
	if c.PollFallback < 0 {
		return errors.New("poll_fallback must be non-negative")
	}
	if c.StatusInterval < 0 {
		return errors.New("status_interval must be non-negative")
	}
	return nil
}

// Validate checks AgentConfig for errors.
func (c *AgentConfig) Validate() error {
	if c.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.VolumeStep < 0 || c.VolumeStep > 100 {
		return errors.New("volume_step must be between 0 and 100")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
