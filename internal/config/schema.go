package config

// Config is the root configuration structure.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Service ServiceConfig `toml:"service"`
	MPRIS   MPRISConfig   `toml:"mpris"`
	Speaker SpeakerConfig `toml:"speaker"`
	Engine  EngineConfig  `toml:"engine"`
	Agent   AgentConfig   `toml:"agent"`
	TUI     TUIConfig     `toml:"tui"`
	Log     LogConfig     `toml:"log"`
}

// BackendConfig selects how the panel reaches the speaker.
type BackendConfig struct {
	// Transport is "http" (talk to a spotpanel agent) or "local" (D-Bus).
	Transport string `toml:"transport"`
	Address   string `toml:"address"`
	// Timeout is the per-request timeout in milliseconds.
	Timeout int `toml:"timeout"`
	Retries int `toml:"retries"`
}

// ServiceConfig names the systemd user unit running the speaker.
type ServiceConfig struct {
	Unit string `toml:"unit"`
}

// MPRISConfig holds media player bus settings.
type MPRISConfig struct {
	BusPrefix string `toml:"bus_prefix"`
	// BusAddressFile optionally holds the address of a private bus the
	// speaker was started on.
	BusAddressFile string `toml:"bus_address_file"`
}

// SpeakerConfig holds paths for the speaker's persisted settings.
type SpeakerConfig struct {
	SettingsFile string `toml:"settings_file"`
	ConfigFile   string `toml:"config_file"`
	HookPath     string `toml:"hook_path"`
}

// EngineConfig holds state synchronization timings in milliseconds.
type EngineConfig struct {
	Tick         int `toml:"tick"`
	Debounce     int `toml:"debounce"`
	PollFallback int `toml:"poll_fallback"`
	// StatusInterval re-fetches the service state periodically.
	StatusInterval int `toml:"status_interval"`
}

// AgentConfig holds settings for the HTTP agent.
type AgentConfig struct {
	Listen string `toml:"listen"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme      string `toml:"theme"`
	VolumeStep int    `toml:"volume_step"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
