package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
)

const (
	systemdDest      = "org.freedesktop.systemd1"
	systemdPath      = dbus.ObjectPath("/org/freedesktop/systemd1")
	systemdManager   = "org.freedesktop.systemd1.Manager"
	systemdUnit      = "org.freedesktop.systemd1.Unit"
	errNoSuchUnit    = "org.freedesktop.systemd1.NoSuchUnit"
	jobModeReplace   = "replace"
	jobResultDone    = "done"
	activeStateOn    = "active"
	unitFileEnabled  = "enabled"
	unknownUnitState = "unknown"
)

// busDialer opens a private bus connection. It is replaced in tests.
type busDialer func(ctx context.Context) (*dbus.Conn, error)

func sessionBus(ctx context.Context) (*dbus.Conn, error) {
	return dbus.ConnectSessionBus(dbus.WithContext(ctx))
}

// Systemd controls one unit of the user's systemd manager.
type Systemd struct {
	unit string
	dial busDialer
	run  commandRunner
	log  *zap.Logger
}

// NewSystemd returns a controller for unit on the session bus.
func NewSystemd(unit string, log *zap.Logger) *Systemd {
	return &Systemd{
		unit: unit,
		dial: sessionBus,
		run:  runCommand,
		log:  log.With(zap.String("unit", unit)),
	}
}

// Unit returns the controlled unit name.
func (s *Systemd) Unit() string {
	return s.unit
}

// FetchServiceState reads ActiveState and UnitFileState.
func (s *Systemd) FetchServiceState(ctx context.Context) (core.ServiceState, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return core.ServiceState{}, fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	manager := conn.Object(systemdDest, systemdPath)

	var unitPath dbus.ObjectPath
	if err := manager.CallWithContext(ctx, systemdManager+".LoadUnit", 0, s.unit).Store(&unitPath); err != nil {
		return core.ServiceState{}, fmt.Errorf("load unit: %w", err)
	}

	state := unknownUnitState
	v, err := conn.Object(systemdDest, unitPath).GetProperty(systemdUnit + ".ActiveState")
	if err != nil {
		return core.ServiceState{}, fmt.Errorf("active state: %w", err)
	}
	if str := asString(v); str != "" {
		state = str
	}

	var fileState string
	err = manager.CallWithContext(ctx, systemdManager+".GetUnitFileState", 0, s.unit).Store(&fileState)
	var dbusErr dbus.Error
	switch {
	case errors.As(err, &dbusErr) && dbusErr.Name == errNoSuchUnit:
		fileState = ""
	case err != nil:
		return core.ServiceState{}, fmt.Errorf("unit file state: %w", err)
	}

	return core.ServiceState{
		Running:  state == activeStateOn,
		Enabled:  fileState == unitFileEnabled,
		Name:     s.unit,
		RawState: state,
	}, nil
}

// Start starts the unit and waits for the job to finish.
func (s *Systemd) Start(ctx context.Context) (bool, error) {
	return s.job(ctx, "StartUnit")
}

// Stop stops the unit and waits for the job to finish.
func (s *Systemd) Stop(ctx context.Context) (bool, error) {
	return s.job(ctx, "StopUnit")
}

// Restart restarts the unit and waits for the job to finish.
func (s *Systemd) Restart(ctx context.Context) (bool, error) {
	return s.job(ctx, "RestartUnit")
}

// Enable enables the unit file and reloads the manager.
func (s *Systemd) Enable(ctx context.Context) (bool, error) {
	return s.unitFiles(ctx, func(manager dbus.BusObject) error {
		var carriesInstallInfo bool
		var changes []unitFileChange
		return manager.CallWithContext(ctx, systemdManager+".EnableUnitFiles", 0,
			[]string{s.unit}, false, true).Store(&carriesInstallInfo, &changes)
	})
}

// Disable disables the unit file and reloads the manager.
func (s *Systemd) Disable(ctx context.Context) (bool, error) {
	return s.unitFiles(ctx, func(manager dbus.BusObject) error {
		var changes []unitFileChange
		return manager.CallWithContext(ctx, systemdManager+".DisableUnitFiles", 0,
			[]string{s.unit}, false).Store(&changes)
	})
}

type unitFileChange struct {
	Type        string
	Filename    string
	Destination string
}

func (s *Systemd) unitFiles(ctx context.Context, call func(manager dbus.BusObject) error) (bool, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	manager := conn.Object(systemdDest, systemdPath)
	if err := call(manager); err != nil {
		return false, unitError(err)
	}
	if err := manager.CallWithContext(ctx, systemdManager+".Reload", 0).Err; err != nil {
		return false, fmt.Errorf("reload: %w", err)
	}
	return true, nil
}

// job queues a unit job and waits for its JobRemoved signal. A result other
// than "done" means the manager declined or the unit failed.
func (s *Systemd) job(ctx context.Context, method string) (bool, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(systemdPath),
		dbus.WithMatchInterface(systemdManager),
		dbus.WithMatchMember("JobRemoved"),
	); err != nil {
		return false, fmt.Errorf("watch jobs: %w", err)
	}

	manager := conn.Object(systemdDest, systemdPath)
	// Without Subscribe the manager does not emit job signals.
	if err := manager.CallWithContext(ctx, systemdManager+".Subscribe", 0).Err; err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	var job dbus.ObjectPath
	if err := manager.CallWithContext(ctx, systemdManager+"."+method, 0, s.unit, jobModeReplace).Store(&job); err != nil {
		return false, unitError(err)
	}
	s.log.Debug("job queued", zap.String("method", method), zap.String("job", string(job)))

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return false, errors.New("bus connection closed while waiting for job")
			}
			path, result, ok := jobRemoved(sig)
			if !ok || path != job {
				continue
			}
			s.log.Debug("job finished", zap.String("method", method), zap.String("result", result))
			return result == jobResultDone, nil
		}
	}
}

// jobRemoved decodes a JobRemoved(u id, o job, s unit, s result) signal.
func jobRemoved(sig *dbus.Signal) (dbus.ObjectPath, string, bool) {
	if sig == nil || sig.Name != systemdManager+".JobRemoved" || len(sig.Body) < 4 {
		return "", "", false
	}
	path, ok := sig.Body[1].(dbus.ObjectPath)
	if !ok {
		return "", "", false
	}
	result, ok := sig.Body[3].(string)
	if !ok {
		return "", "", false
	}
	return path, result, true
}

// unitError keeps "no such unit" distinguishable from bus failures.
func unitError(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) && dbusErr.Name == errNoSuchUnit {
		return fmt.Errorf("unit not installed: %w", err)
	}
	return err
}
