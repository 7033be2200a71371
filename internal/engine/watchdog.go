package engine

import "time"

// Watchdog fires when it has not been re-armed for a while. The tracker
// uses it to fall back to a one-shot pull when the push stream goes quiet,
// and to re-fetch the service state periodically.
type Watchdog struct {
	sched Scheduler
	after time.Duration
	fire  func()

	timer Timer
	gen   uint64
}

func newWatchdog(sched Scheduler, after time.Duration, fire func()) *Watchdog {
	return &Watchdog{sched: sched, after: after, fire: fire}
}

// Arm (re)starts the countdown. A zero duration disables the watchdog.
func (w *Watchdog) Arm() {
	w.Disarm()
	if w.after <= 0 {
		return
	}
	gen := w.gen
	w.timer = w.sched.AfterFunc(w.after, func() {
		if gen != w.gen {
			return
		}
		w.timer = nil
		w.fire()
	})
}

// Disarm cancels the countdown.
func (w *Watchdog) Disarm() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Armed reports whether a countdown is running.
func (w *Watchdog) Armed() bool {
	return w.timer != nil
}
