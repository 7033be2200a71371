package engine

import (
	"time"

	"github.com/tessro/spotpanel/internal/core"
)

// Extrapolator advances the displayed position between snapshots while a
// track is playing. Every snapshot is a hard reset.
type Extrapolator struct {
	sched    Scheduler
	interval time.Duration
	onTick   func()

	position int64
	duration int64
	timer    Timer
	gen      uint64
}

// NewExtrapolator returns an extrapolator that adds interval to the position
// every interval. onTick runs on the loop after each advance.
func NewExtrapolator(sched Scheduler, interval time.Duration, onTick func()) *Extrapolator {
	return &Extrapolator{sched: sched, interval: interval, onTick: onTick}
}

// Position returns the displayed position in milliseconds.
func (x *Extrapolator) Position() int64 {
	return x.position
}

// Ticking reports whether an advance is pending.
func (x *Extrapolator) Ticking() bool {
	return x.timer != nil
}

// Reset adopts the snapshot's position and restarts ticking if it is playing.
// With an unknown duration there is nothing to clamp against, so the
// position is held.
func (x *Extrapolator) Reset(np core.NowPlaying) {
	x.cancel()

	x.position = max(np.PositionMs, 0)
	x.duration = 0
	if np.Track != nil {
		x.duration = max(np.Track.DurationMs, 0)
	}
	if x.duration > 0 && x.position > x.duration {
		x.position = x.duration
	}

	if np.Playing() && x.duration > 0 && x.position < x.duration && x.interval > 0 {
		x.schedule()
	}
}

// Stop cancels any pending advance.
func (x *Extrapolator) Stop() {
	x.cancel()
}

func (x *Extrapolator) schedule() {
	gen := x.gen
	x.timer = x.sched.AfterFunc(x.interval, func() { x.tick(gen) })
}

func (x *Extrapolator) tick(gen uint64) {
	if gen != x.gen {
		return
	}
	x.timer = nil

	x.position += x.interval.Milliseconds()
	if x.position >= x.duration {
		x.position = x.duration
	} else {
		x.schedule()
	}

	if x.onTick != nil {
		x.onTick()
	}
}

// cancel stops the pending timer and invalidates any callback already queued.
func (x *Extrapolator) cancel() {
	x.gen++
	if x.timer != nil {
		x.timer.Stop()
		x.timer = nil
	}
}
