package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// SettingsStore persists speaker settings as TOML and renders the
// spotifyd configuration from them.
type SettingsStore struct {
	settingsFile string
	configFile   string
	hookPath     string
	log          *zap.Logger
}

// NewSettingsStore returns a store writing settingsFile and configFile.
func NewSettingsStore(settingsFile, configFile, hookPath string, log *zap.Logger) *SettingsStore {
	return &SettingsStore{
		settingsFile: settingsFile,
		configFile:   configFile,
		hookPath:     hookPath,
		log:          log.With(zap.String("component", "settings")),
	}
}

// Load returns the stored settings. Missing files and fields fall back to
// the defaults.
func (s *SettingsStore) Load() (core.Settings, error) {
	settings := core.DefaultSettings()
	if _, err := toml.DecodeFile(s.settingsFile, &settings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.DefaultSettings(), nil
		}
		return core.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	settings.ApplyDefaults()
	return settings, nil
}

// Save validates and writes settings, then rewrites the spotifyd
// configuration.
func (s *SettingsStore) Save(settings core.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", panelerrors.ErrInvalidSettings, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := writeFileAtomic(s.settingsFile, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	conf, err := RenderSpotifydConfig(settings, s.hookPath)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.configFile, conf); err != nil {
		return fmt.Errorf("failed to write spotifyd config: %w", err)
	}
	s.log.Info("settings saved",
		zap.String("speaker_name", settings.SpeakerName),
		zap.Int("bitrate", settings.Bitrate),
		zap.String("device_type", string(settings.DeviceType)),
		zap.Int("initial_volume", settings.InitialVolume))
	return nil
}

// FetchSettings implements core.SettingsStore.
func (s *SettingsStore) FetchSettings(ctx context.Context) (core.Settings, error) {
	return s.Load()
}

type spotifydConfig struct {
	Global spotifydGlobal `toml:"global"`
}

type spotifydGlobal struct {
	DeviceName       string `toml:"device_name"`
	DeviceType       string `toml:"device_type"`
	Bitrate          int    `toml:"bitrate"`
	InitialVolume    int    `toml:"initial_volume"`
	UseMPRIS         bool   `toml:"use_mpris"`
	DBusType         string `toml:"dbus_type"`
	OnSongChangeHook string `toml:"on_song_change_hook,omitempty"`
}

// RenderSpotifydConfig renders the spotifyd configuration for settings.
// MPRIS is always enabled on the session bus since the panel depends on it.
func RenderSpotifydConfig(settings core.Settings, hookPath string) ([]byte, error) {
	cfg := spotifydConfig{Global: spotifydGlobal{
		DeviceName:       settings.SpeakerName,
		DeviceType:       string(settings.DeviceType),
		Bitrate:          settings.Bitrate,
		InitialVolume:    settings.InitialVolume,
		UseMPRIS:         true,
		DBusType:         "session",
		OnSongChangeHook: hookPath,
	}}

	var buf bytes.Buffer
	buf.WriteString("# Generated by spotpanel. Edit with `spotpanel settings`.\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to render spotifyd config: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
