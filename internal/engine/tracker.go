package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// Status is the tracker's view of the speaker.
type Status int

const (
	// StatusLoading means the service state has never been fetched.
	StatusLoading Status = iota
	StatusStopped
	StatusDisconnected
	StatusConnectedNoTrack
	StatusConnectedWithTrack
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusStopped:
		return "stopped"
	case StatusDisconnected:
		return "disconnected"
	case StatusConnectedNoTrack:
		return "connected"
	case StatusConnectedWithTrack:
		return "playing"
	default:
		return "unknown"
	}
}

// Running reports whether the service is running in this status.
func (s Status) Running() bool {
	return s >= StatusDisconnected
}

// Tracker owns the service state and the now-playing subscription. The
// subscription exists exactly while the service is running.
type Tracker struct {
	runner
	service core.ServiceController
	source  core.NowPlayingSource
	log     *zap.Logger

	onSnapshot func(core.NowPlaying)
	onChange   func()

	loaded   bool
	state    core.ServiceState
	snapshot core.NowPlaying
	lastErr  error

	sub         core.Subscription
	subscribing bool
	// subGen changes whenever the subscription is torn down, so results and
	// pushes that belong to an older subscription are dropped.
	subGen   uint64
	watchdog *Watchdog
	// statusPoll re-fetches the service state after a quiet period, so a
	// service that stops or starts behind the panel's back is noticed.
	statusPoll *Watchdog
	closed     bool
}

func newTracker(r runner, service core.ServiceController, source core.NowPlayingSource, fallback time.Duration, log *zap.Logger, onSnapshot func(core.NowPlaying), onChange func()) *Tracker {
	t := &Tracker{
		runner:     r,
		service:    service,
		source:     source,
		log:        log,
		onSnapshot: onSnapshot,
		onChange:   onChange,
		snapshot:   core.Disconnected(),
	}
	t.watchdog = newWatchdog(r.sched, fallback, t.fallback)
	t.statusPoll = newWatchdog(r.sched, 0, t.Refresh)
	return t
}

// PollService re-fetches the service state every interval after the last
// fetch. Zero disables it.
func (t *Tracker) PollService(interval time.Duration) {
	t.statusPoll.Disarm()
	t.statusPoll = newWatchdog(t.sched, interval, t.Refresh)
	if t.loaded && !t.closed {
		t.statusPoll.Arm()
	}
}

// Status derives the current status.
func (t *Tracker) Status() Status {
	if !t.loaded {
		return StatusLoading
	}
	if !t.state.Running {
		return StatusStopped
	}
	c := t.snapshot.Connection()
	switch {
	case !c.Connected:
		return StatusDisconnected
	case !c.TrackPresent:
		return StatusConnectedNoTrack
	default:
		return StatusConnectedWithTrack
	}
}

// Service returns the last fetched service state.
func (t *Tracker) Service() (core.ServiceState, bool) {
	return t.state, t.loaded
}

// Snapshot returns the last adopted snapshot.
func (t *Tracker) Snapshot() core.NowPlaying {
	return t.snapshot
}

// Subscribed reports whether a subscription is held.
func (t *Tracker) Subscribed() bool {
	return t.sub != nil
}

// LastError returns the most recent fetch failure, cleared on success.
func (t *Tracker) LastError() error {
	return t.lastErr
}

// Refresh fetches the service state and reconciles the subscription with it.
// A failed fetch leaves the current state untouched.
func (t *Tracker) Refresh() {
	if t.closed {
		return
	}
	run(t.runner, t.service.FetchServiceState, func(st core.ServiceState, err error) {
		if t.closed {
			return
		}
		t.statusPoll.Arm()
		if err != nil {
			t.lastErr = panelerrors.Transport("fetch service state", err)
			t.log.Warn("service state fetch failed", zap.Error(err))
			t.changed()
			return
		}
		t.lastErr = nil
		t.ApplyService(st)
	})
}

// ApplyService replaces the service state and subscribes or unsubscribes to
// match it.
func (t *Tracker) ApplyService(st core.ServiceState) {
	wasRunning := t.loaded && t.state.Running
	t.state = st
	t.loaded = true

	switch {
	case st.Running:
		t.subscribe()
	case wasRunning || t.sub != nil || t.subscribing:
		t.log.Info("speaker service stopped", zap.String("state", st.RawState))
		t.teardown()
		t.reset()
	}
	t.changed()
}

// Close releases the subscription and stops the fallback and status
// timers. Later refreshes do nothing.
func (t *Tracker) Close() {
	t.closed = true
	t.statusPoll.Disarm()
	t.teardown()
}

func (t *Tracker) subscribe() {
	if t.sub != nil || t.subscribing {
		return
	}
	t.subscribing = true
	gen := t.subGen

	handler := func(np core.NowPlaying) {
		np = np.Clone()
		t.sched.Post(func() { t.receive(gen, np) })
	}

	run(t.runner, func(ctx context.Context) (core.Subscription, error) {
		return t.source.SubscribeNowPlaying(ctx, handler)
	}, func(sub core.Subscription, err error) {
		if gen != t.subGen {
			// Torn down while subscribing.
			if sub != nil {
				sub.Unsubscribe()
			}
			return
		}
		t.subscribing = false
		if err != nil {
			t.lastErr = panelerrors.Transport("subscribe", err)
			t.log.Warn("now playing subscription failed", zap.Error(err))
			t.changed()
			return
		}
		t.sub = sub
		t.log.Debug("subscribed to now playing")
		t.pull(gen)
	})
}

// pull fetches one snapshot outside the push stream.
func (t *Tracker) pull(gen uint64) {
	run(t.runner, t.source.FetchNowPlaying, func(np core.NowPlaying, err error) {
		if err != nil {
			t.log.Warn("now playing fetch failed", zap.Error(err))
			return
		}
		t.receive(gen, np)
	})
}

func (t *Tracker) receive(gen uint64, np core.NowPlaying) {
	if gen != t.subGen || !t.state.Running {
		return
	}
	t.snapshot = np
	if np.Connected {
		t.watchdog.Arm()
	} else {
		t.watchdog.Disarm()
	}
	t.onSnapshot(np)
	t.changed()
}

func (t *Tracker) fallback() {
	if t.sub == nil || !t.snapshot.Connected {
		return
	}
	t.log.Debug("no push received, polling now playing")
	t.pull(t.subGen)
	t.watchdog.Arm()
}

func (t *Tracker) teardown() {
	t.subGen++
	t.subscribing = false
	t.watchdog.Disarm()
	if t.sub != nil {
		sub := t.sub
		t.sub = nil
		sub.Unsubscribe()
		t.log.Debug("unsubscribed from now playing")
	}
}

// reset replaces the snapshot with a disconnected one and tells listeners.
func (t *Tracker) reset() {
	t.snapshot = core.Disconnected()
	t.onSnapshot(t.snapshot)
}

func (t *Tracker) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}
