// Package local drives a speaker on this host: the systemd user manager for
// the service, MPRIS for playback, and files for its settings.
package local

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// Options locate the speaker's pieces.
type Options struct {
	Unit           string
	BusPrefix      string
	BusAddressFile string
	SettingsFile   string
	ConfigFile     string
	HookPath       string
	Logger         *zap.Logger
}

// Remote implements core.Remote against the local host.
type Remote struct {
	*Systemd
	*Player
	settings *SettingsStore
	log      *zap.Logger
}

var _ core.Remote = (*Remote)(nil)

// New creates a local remote.
func New(opts Options) *Remote {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "local"))
	return &Remote{
		Systemd:  NewSystemd(opts.Unit, log),
		Player:   NewPlayer(opts.BusPrefix, opts.BusAddressFile, log),
		settings: NewSettingsStore(opts.SettingsFile, opts.ConfigFile, opts.HookPath, log),
		log:      log,
	}
}

// FetchSettings returns the stored speaker settings.
func (r *Remote) FetchSettings(ctx context.Context) (core.Settings, error) {
	return r.settings.FetchSettings(ctx)
}

// SaveSettings persists settings and restarts the service if it is running
// so that spotifyd picks up the new configuration. Invalid settings are
// declined.
func (r *Remote) SaveSettings(ctx context.Context, settings core.Settings) (bool, error) {
	if err := r.settings.Save(settings); err != nil {
		if errors.Is(err, panelerrors.ErrInvalidSettings) {
			r.log.Warn("settings declined", zap.Error(err))
			return false, nil
		}
		return false, err
	}

	st, err := r.FetchServiceState(ctx)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return true, nil
	}
	r.log.Info("restarting speaker to apply settings")
	return r.Restart(ctx)
}
