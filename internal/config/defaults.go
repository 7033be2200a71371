package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Transport: "http",
			Address:   "http://127.0.0.1:7655",
			Timeout:   5000,
			Retries:   3,
		},
		Service: ServiceConfig{
			Unit: "decky-spotifyd.service",
		},
		MPRIS: MPRISConfig{
			BusPrefix: "org.mpris.MediaPlayer2.spotifyd",
		},
		Engine: EngineConfig{
			Tick:           1000,
			Debounce:       1500,
			PollFallback:   5000,
			StatusInterval: 30000,
		},
		Agent: AgentConfig{
			Listen: "127.0.0.1:7655",
		},
		TUI: TUIConfig{
			Theme:      "auto",
			VolumeStep: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
// Engine.PollFallback and Engine.StatusInterval are left alone: zero
// disables them.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Backend
	if c.Backend.Transport == "" {
		c.Backend.Transport = d.Backend.Transport
	}
	if c.Backend.Address == "" {
		c.Backend.Address = d.Backend.Address
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Backend.Retries == 0 {
		c.Backend.Retries = d.Backend.Retries
	}

	// Service
	if c.Service.Unit == "" {
		c.Service.Unit = d.Service.Unit
	}

	// MPRIS
	if c.MPRIS.BusPrefix == "" {
		c.MPRIS.BusPrefix = d.MPRIS.BusPrefix
	}

	// Speaker
	if c.Speaker.SettingsFile == "" {
		c.Speaker.SettingsFile = dataPath("settings.toml")
	}
	if c.Speaker.ConfigFile == "" {
		c.Speaker.ConfigFile = dataPath("spotifyd.conf")
	}

	// Engine
	if c.Engine.Tick == 0 {
		c.Engine.Tick = d.Engine.Tick
	}
	if c.Engine.Debounce == 0 {
		c.Engine.Debounce = d.Engine.Debounce
	}

	// Agent
	if c.Agent.Listen == "" {
		c.Agent.Listen = d.Agent.Listen
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.VolumeStep == 0 {
		c.TUI.VolumeStep = d.TUI.VolumeStep
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
