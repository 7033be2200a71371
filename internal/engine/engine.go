// Package engine keeps a local view of a speaker consistent with its backend.
//
// All engine state lives on one goroutine (see Loop). Backend calls run on
// their own goroutines and hand results back to the loop; timers do the
// same. Public Engine methods are safe to call from any goroutine.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// ErrClosed is returned by calls made after the engine stopped.
var ErrClosed = errors.New("engine closed")

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	// Tick is the position extrapolation step.
	Tick time.Duration
	// Debounce is how long snapshot volumes are ignored after an edit.
	Debounce time.Duration
	// PollFallback pulls a snapshot when no push arrived for this long while
	// connected. Zero disables it.
	PollFallback time.Duration
	// StatusInterval re-fetches the service state this long after the last
	// fetch. Zero disables it.
	StatusInterval time.Duration
	// CallTimeout bounds each backend call.
	CallTimeout time.Duration
	// Scheduler replaces the default Loop.
	Scheduler Scheduler
	Logger    *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.Tick == 0 {
		o.Tick = time.Second
	}
	if o.Debounce == 0 {
		o.Debounce = 1500 * time.Millisecond
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// View is an immutable copy of everything the UI renders.
type View struct {
	Status     Status
	Service    core.ServiceState
	NowPlaying core.NowPlaying
	Connection core.ConnectionState
	// PositionMs is the extrapolated position.
	PositionMs int64
	// Volume is the reconciled volume percentage.
	Volume        int
	EditingVolume bool
	Busy          map[Family]bool
	LastError     error
}

// IsBusy reports whether family f has a command in flight.
func (v View) IsBusy(f Family) bool {
	return v.Busy[f]
}

// Engine ties the tracker, extrapolator, reconciler and dispatcher together.
type Engine struct {
	sched  Scheduler
	loop   *Loop
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	tracker    *Tracker
	position   *Extrapolator
	volume     *Reconciler
	dispatcher *Dispatcher

	mu   sync.RWMutex
	view View

	updates   chan View
	notices   chan Notice
	started   atomic.Bool
	closeOnce sync.Once
}

// New creates an engine for remote. Call Run to start it.
func New(remote core.Remote, opts Options) *Engine {
	opts.applyDefaults()

	e := &Engine{
		sched:   opts.Scheduler,
		log:     opts.Logger.With(zap.String("component", "engine")),
		updates: make(chan View, 1),
		notices: make(chan Notice, 16),
	}
	if e.sched == nil {
		e.loop = NewLoop()
		e.sched = e.loop
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	r := runner{sched: e.sched, ctx: e.ctx, timeout: opts.CallTimeout}
	e.position = NewExtrapolator(e.sched, opts.Tick, e.publish)
	e.volume = newReconciler(r, opts.Debounce, remote.SetVolume, e.log, e.publish)
	e.tracker = newTracker(r, remote, remote, opts.PollFallback, e.log, e.onSnapshot, e.publish)
	e.tracker.PollService(opts.StatusInterval)
	e.dispatcher = newDispatcher(r, remote, e.log, e.emit, e.tracker.Refresh, e.publish)

	e.view = e.buildView()
	return e
}

// Run starts the engine and blocks until ctx is done, then tears it down.
func (e *Engine) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	if e.loop != nil {
		e.started.Store(true)
		go e.loop.Run(loopCtx)
	}

	e.Start()
	<-ctx.Done()
	e.Close()

	if e.loop != nil {
		stopLoop()
		<-e.loop.Done()
	}
	return nil
}

// Start fetches the service state for the first time.
func (e *Engine) Start() {
	e.sched.Post(e.tracker.Refresh)
}

// Refresh re-fetches the service state.
func (e *Engine) Refresh() {
	e.sched.Post(e.tracker.Refresh)
}

// Close cancels every timer, releases the subscription and aborts in-flight
// backend calls. It is safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		defer e.cancel()
		if e.loop != nil && !e.started.Load() {
			return
		}
		done := make(chan struct{})
		if e.sched.Post(func() {
			e.tracker.Close()
			e.position.Stop()
			e.volume.Stop()
			close(done)
		}) {
			var loopDone <-chan struct{}
			if e.loop != nil {
				loopDone = e.loop.Done()
			}
			select {
			case <-done:
			case <-loopDone:
			}
		}
	})
}

// View returns the latest view.
func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

// Updates delivers the latest view after every change. Views that are not
// received in time are replaced by newer ones.
func (e *Engine) Updates() <-chan View {
	return e.updates
}

// Notices delivers command outcomes.
func (e *Engine) Notices() <-chan Notice {
	return e.notices
}

// Dispatch sends cmd through the dispatcher.
func (e *Engine) Dispatch(cmd Command) error {
	return e.do(func() error {
		return e.dispatcher.Dispatch(cmd)
	})
}

// ToggleService starts the service if it is stopped and stops it otherwise.
func (e *Engine) ToggleService() error {
	return e.do(func() error {
		st, ok := e.tracker.Service()
		if !ok {
			return errors.New("service state not loaded yet")
		}
		if st.Running {
			return e.dispatcher.Dispatch(CommandStop)
		}
		return e.dispatcher.Dispatch(CommandStart)
	})
}

// ToggleAutostart enables or disables starting the service on login.
func (e *Engine) ToggleAutostart() error {
	return e.do(func() error {
		st, ok := e.tracker.Service()
		if !ok {
			return errors.New("service state not loaded yet")
		}
		if st.Enabled {
			return e.dispatcher.Dispatch(CommandDisable)
		}
		return e.dispatcher.Dispatch(CommandEnable)
	})
}

// SetVolume sets the volume to percent.
func (e *Engine) SetVolume(percent int) error {
	return e.do(func() error {
		return e.editVolume(percent)
	})
}

// NudgeVolume changes the volume by delta percentage points.
func (e *Engine) NudgeVolume(delta int) error {
	return e.do(func() error {
		return e.editVolume(e.volume.Volume() + delta)
	})
}

func (e *Engine) editVolume(percent int) error {
	if !e.tracker.Snapshot().Connected {
		return panelerrors.ErrNotConnected
	}
	e.volume.Edit(percent)
	e.publish()
	return nil
}

// do runs fn on the loop and waits for its result.
func (e *Engine) do(fn func() error) error {
	errc := make(chan error, 1)
	if !e.sched.Post(func() { errc <- fn() }) {
		return ErrClosed
	}
	var loopDone <-chan struct{}
	if e.loop != nil {
		loopDone = e.loop.Done()
	}
	select {
	case err := <-errc:
		return err
	case <-loopDone:
		return ErrClosed
	}
}

func (e *Engine) onSnapshot(np core.NowPlaying) {
	e.position.Reset(np)
	e.volume.Observe(np)
}

func (e *Engine) emit(n Notice) {
	select {
	case e.notices <- n:
	default:
		e.log.Warn("notice dropped", zap.String("text", n.Text))
	}
}

// publish stores a fresh view and offers it on the updates channel.
func (e *Engine) publish() {
	v := e.buildView()

	e.mu.Lock()
	e.view = v
	e.mu.Unlock()

	// Only the loop sends, so after draining there is room.
	select {
	case <-e.updates:
	default:
	}
	e.updates <- v
}

func (e *Engine) buildView() View {
	st, _ := e.tracker.Service()
	np := e.tracker.Snapshot().Clone()
	return View{
		Status:        e.tracker.Status(),
		Service:       st,
		NowPlaying:    np,
		Connection:    np.Connection(),
		PositionMs:    e.position.Position(),
		Volume:        e.volume.Volume(),
		EditingVolume: e.volume.Mode() == VolumeEditing,
		Busy:          e.dispatcher.BusySet(),
		LastError:     e.tracker.LastError(),
	}
}
