package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// DefaultVolume is shown until the first connected snapshot arrives.
const DefaultVolume = 50

// VolumeMode is the reconciler's edit state.
type VolumeMode int

const (
	// VolumeIdle adopts the volume of every connected snapshot.
	VolumeIdle VolumeMode = iota
	// VolumeEditing ignores snapshot volumes until the deadline passes.
	VolumeEditing
)

func (m VolumeMode) String() string {
	if m == VolumeEditing {
		return "editing"
	}
	return "idle"
}

// Reconciler merges user volume edits with the volume reported by snapshots.
// After an edit, snapshots carry the old volume until the speaker catches up,
// so their volume is ignored for a debounce window.
type Reconciler struct {
	runner
	window    time.Duration
	setVolume func(ctx context.Context, fraction float64) (bool, error)
	log       *zap.Logger
	onChange  func()

	value    int
	mode     VolumeMode
	deadline time.Time
	timer    Timer
	gen      uint64

	// At most one SetVolume is in flight; later edits coalesce into pending.
	inflight bool
	pending  *float64
}

// newReconciler returns a reconciler in the idle state at DefaultVolume.
func newReconciler(r runner, window time.Duration, setVolume func(context.Context, float64) (bool, error), log *zap.Logger, onChange func()) *Reconciler {
	return &Reconciler{
		runner:    r,
		window:    window,
		setVolume: setVolume,
		log:       log,
		onChange:  onChange,
		value:     DefaultVolume,
	}
}

// Volume returns the displayed volume percentage.
func (r *Reconciler) Volume() int {
	return r.value
}

// Mode returns the current edit state.
func (r *Reconciler) Mode() VolumeMode {
	return r.mode
}

// Deadline returns when the current edit window closes.
func (r *Reconciler) Deadline() time.Time {
	return r.deadline
}

// Observe adopts the snapshot's volume unless an edit window is open.
// Disconnected snapshots carry no meaningful volume and are ignored.
func (r *Reconciler) Observe(np core.NowPlaying) {
	if !np.Connected {
		return
	}
	if r.mode == VolumeEditing {
		if r.sched.Now().Before(r.deadline) {
			return
		}
		// The expiry callback is queued behind this snapshot.
		r.settle()
	}
	r.value = np.VolumePercent()
}

// Edit records a user change, opens the edit window and sends the new
// volume to the speaker. Sending is fire-and-forget; failures are logged.
func (r *Reconciler) Edit(percent int) {
	r.value = core.ClampPercent(percent)
	r.mode = VolumeEditing
	r.deadline = r.sched.Now().Add(r.window)

	r.cancel()
	gen := r.gen
	r.timer = r.sched.AfterFunc(r.window, func() { r.expire(gen) })

	r.send(float64(r.value) / 100)
}

// Stop cancels the edit window and drops any unsent volume.
func (r *Reconciler) Stop() {
	r.cancel()
	r.pending = nil
}

func (r *Reconciler) expire(gen uint64) {
	if gen != r.gen {
		return
	}
	r.timer = nil
	r.mode = VolumeIdle
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *Reconciler) settle() {
	r.cancel()
	r.mode = VolumeIdle
}

func (r *Reconciler) cancel() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// send keeps at most one SetVolume in flight. Edits made meanwhile
// overwrite each other, and only the latest is sent once the call returns,
// whether or not it succeeded.
func (r *Reconciler) send(fraction float64) {
	if r.inflight {
		r.pending = &fraction
		return
	}
	r.inflight = true

	run(r.runner, func(ctx context.Context) (bool, error) {
		return r.setVolume(ctx, fraction)
	}, func(ok bool, err error) {
		r.inflight = false
		if err := panelerrors.Result("set volume", ok, err); err != nil {
			r.log.Warn("volume update failed",
				zap.Float64("volume", fraction),
				zap.Stringer("kind", panelerrors.Kind(err)),
				zap.Error(err))
		}
		if r.pending != nil {
			next := *r.pending
			r.pending = nil
			r.send(next)
		}
	})
}
