package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// Family groups commands that share a busy flag.
type Family int

const (
	FamilyToggle Family = iota
	FamilyRestart
	FamilyPlayback
	FamilyAutostart
)

// Families lists every command family.
var Families = []Family{FamilyToggle, FamilyRestart, FamilyPlayback, FamilyAutostart}

func (f Family) String() string {
	switch f {
	case FamilyToggle:
		return "toggling"
	case FamilyRestart:
		return "restarting"
	case FamilyPlayback:
		return "controlling"
	case FamilyAutostart:
		return "autostart"
	default:
		return "unknown"
	}
}

// refreshes reports whether success should re-fetch the service state.
func (f Family) refreshes() bool {
	return f != FamilyPlayback
}

// Command is a single user action sent to the speaker.
type Command string

const (
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandRestart   Command = "restart"
	CommandEnable    Command = "enable"
	CommandDisable   Command = "disable"
	CommandPlayPause Command = "play-pause"
	CommandNext      Command = "next"
	CommandPrevious  Command = "previous"
)

// Family returns the busy family cmd belongs to.
func (c Command) Family() Family {
	switch c {
	case CommandStart, CommandStop:
		return FamilyToggle
	case CommandRestart:
		return FamilyRestart
	case CommandEnable, CommandDisable:
		return FamilyAutostart
	default:
		return FamilyPlayback
	}
}

type commandText struct {
	done string // success notice
	verb string // "Failed to <verb>"
}

var commandTexts = map[Command]commandText{
	CommandStart:     {"Speaker started", "start the speaker"},
	CommandStop:      {"Speaker stopped", "stop the speaker"},
	CommandRestart:   {"Speaker restarted", "restart the speaker"},
	CommandEnable:    {"Speaker will start on login", "enable the speaker"},
	CommandDisable:   {"Speaker will no longer start on login", "disable the speaker"},
	CommandPlayPause: {"Playback toggled", "toggle playback"},
	CommandNext:      {"Skipped to the next track", "skip to the next track"},
	CommandPrevious:  {"Back to the previous track", "go back a track"},
}

// call returns the facade operation behind cmd.
func call(remote commandRemote, cmd Command) (func(context.Context) (bool, error), error) {
	switch cmd {
	case CommandStart:
		return remote.Start, nil
	case CommandStop:
		return remote.Stop, nil
	case CommandRestart:
		return remote.Restart, nil
	case CommandEnable:
		return remote.Enable, nil
	case CommandDisable:
		return remote.Disable, nil
	case CommandPlayPause:
		return remote.PlayPause, nil
	case CommandNext:
		return remote.Next, nil
	case CommandPrevious:
		return remote.Previous, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

type commandRemote interface {
	core.ServiceController
	core.PlaybackController
}

// Exec runs cmd once against remote and folds the answer into an error.
// It bypasses busy tracking and is meant for one-shot callers.
func Exec(ctx context.Context, remote commandRemote, cmd Command) error {
	fn, err := call(remote, cmd)
	if err != nil {
		return err
	}
	ok, err := fn(ctx)
	return panelerrors.Result(string(cmd), ok, err)
}

// Dispatcher sends commands to the speaker with one in flight per family.
type Dispatcher struct {
	runner
	remote commandRemote
	log    *zap.Logger

	notify   func(Notice)
	refresh  func()
	onChange func()

	busy map[Family]bool
}

func newDispatcher(r runner, remote commandRemote, log *zap.Logger, notify func(Notice), refresh func(), onChange func()) *Dispatcher {
	return &Dispatcher{
		runner:   r,
		remote:   remote,
		log:      log,
		notify:   notify,
		refresh:  refresh,
		onChange: onChange,
		busy:     make(map[Family]bool),
	}
}

// Busy reports whether a command of family f is in flight.
func (d *Dispatcher) Busy(f Family) bool {
	return d.busy[f]
}

// BusySet returns a copy of the busy flags.
func (d *Dispatcher) BusySet() map[Family]bool {
	out := make(map[Family]bool, len(d.busy))
	for f, b := range d.busy {
		if b {
			out[f] = true
		}
	}
	return out
}

// Dispatch starts cmd. It fails with ErrBusy, without contacting the
// speaker, if a command of the same family is still in flight. The outcome
// is reported as a Notice; failures are never retried.
func (d *Dispatcher) Dispatch(cmd Command) error {
	fn, err := call(d.remote, cmd)
	if err != nil {
		return err
	}
	family := cmd.Family()
	if d.busy[family] {
		return fmt.Errorf("%s: %w", cmd, panelerrors.ErrBusy)
	}

	d.busy[family] = true
	d.changed()
	d.log.Debug("dispatching command", zap.String("command", string(cmd)))

	run(d.runner, fn, func(ok bool, err error) {
		defer d.release(family)

		if err := panelerrors.Result(string(cmd), ok, err); err != nil {
			d.log.Warn("command failed",
				zap.String("command", string(cmd)),
				zap.Stringer("kind", panelerrors.Kind(err)),
				zap.Error(err))
			d.notify(failureNotice(cmd, err))
			return
		}

		d.notify(successNotice(cmd))
		if family.refreshes() && d.refresh != nil {
			d.refresh()
		}
	})
	return nil
}

func (d *Dispatcher) release(f Family) {
	delete(d.busy, f)
	d.changed()
}

func (d *Dispatcher) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}
