// Package tail turns the speaker's snapshot stream into playback events.
package tail

import (
	"context"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/tessro/spotpanel/internal/core"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventConnect EventType = iota
	EventDisconnect
	EventTrackChange
	EventTrackComplete
	EventTrackSkip
	EventPlay
	EventPause
	EventStop
	EventVolumeChange
	EventSeek
)

// seekTolerance is how far the reported position may drift from the
// expected one before it counts as a seek.
const seekTolerance = 3 * time.Second

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.NowPlaying
	Current   *core.NowPlaying
}

// Watcher follows a speaker's push stream and emits events.
type Watcher struct {
	source core.NowPlayingSource
	events chan Event
	now    func() time.Time

	prev     *core.NowPlaying
	prevAt   time.Time
	prevHash uint64
}

// NewWatcher creates a new watcher for source.
func NewWatcher(source core.NowPlayingSource) *Watcher {
	return &Watcher{
		source: source,
		events: make(chan Event, 16),
		now:    time.Now,
	}
}

// Events returns the channel of playback events. It is closed when Start
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start fetches the current snapshot, then follows the stream until ctx is
// done.
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.events)

	snapshots := make(chan core.NowPlaying, 16)
	sub, err := w.source.SubscribeNowPlaying(ctx, func(np core.NowPlaying) {
		select {
		case snapshots <- np.Clone():
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	if np, err := w.source.FetchNowPlaying(ctx); err == nil {
		w.observe(ctx, np)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case np := <-snapshots:
			w.observe(ctx, np)
		}
	}
}

func (w *Watcher) observe(ctx context.Context, np core.NowPlaying) {
	hash, err := hashstructure.Hash(np, hashstructure.FormatV2, nil)
	if err == nil && w.prev != nil && hash == w.prevHash {
		return
	}

	now := w.now()
	curr := np
	events := diffStates(w.prev, &curr, now.Sub(w.prevAt), now)
	w.prev, w.prevAt, w.prevHash = &curr, now, hash

	for _, e := range events {
		select {
		case w.events <- e:
		case <-ctx.Done():
			return
		}
	}
}

// diffStates compares two snapshots taken elapsed apart and returns the
// detected events.
func diffStates(prev, curr *core.NowPlaying, elapsed time.Duration, now time.Time) []Event {
	if curr == nil {
		return nil
	}
	event := func(t EventType) Event {
		return Event{Type: t, Timestamp: now, Previous: prev, Current: curr}
	}

	// First snapshot: report where we are.
	if prev == nil {
		if !curr.Connected {
			return nil
		}
		events := []Event{event(EventConnect)}
		if curr.Track != nil {
			events = append(events, event(EventTrackChange))
		}
		return events
	}

	if prev.Connected != curr.Connected {
		if !curr.Connected {
			return []Event{event(EventDisconnect)}
		}
		events := []Event{event(EventConnect)}
		if curr.Track != nil {
			events = append(events, event(EventTrackChange))
		}
		return events
	}
	if !curr.Connected {
		return nil
	}

	var events []Event
	changed := !prev.Track.SameAs(curr.Track)
	if changed {
		t := EventTrackChange
		if prev.Track != nil && curr.Track != nil {
			if wasCompleted(prev, elapsed) {
				t = EventTrackComplete
			} else {
				t = EventTrackSkip
			}
		}
		events = append(events, event(t))
	}

	if prev.Phase != curr.Phase {
		switch curr.Phase {
		case core.PhasePlaying:
			events = append(events, event(EventPlay))
		case core.PhasePaused:
			events = append(events, event(EventPause))
		case core.PhaseStopped:
			events = append(events, event(EventStop))
		}
	}

	if prev.VolumePercent() != curr.VolumePercent() {
		events = append(events, event(EventVolumeChange))
	}

	if !changed && seeked(prev, curr, elapsed) {
		events = append(events, event(EventSeek))
	}

	return events
}

// expectedPosition is where prev's track should be after elapsed.
func expectedPosition(prev *core.NowPlaying, elapsed time.Duration) int64 {
	pos := prev.PositionMs
	if prev.Playing() {
		pos += elapsed.Milliseconds()
	}
	if prev.Track != nil && prev.Track.DurationMs > 0 {
		pos = min(pos, prev.Track.DurationMs)
	}
	return pos
}

// wasCompleted returns true if the previous track likely ran out.
func wasCompleted(prev *core.NowPlaying, elapsed time.Duration) bool {
	if prev.Track == nil || prev.Track.DurationMs == 0 {
		return false
	}
	threshold := float64(prev.Track.DurationMs) * 0.95
	return float64(expectedPosition(prev, elapsed)) >= threshold
}

func seeked(prev, curr *core.NowPlaying, elapsed time.Duration) bool {
	if curr.Track == nil {
		return false
	}
	drift := curr.PositionMs - expectedPosition(prev, elapsed)
	if drift < 0 {
		drift = -drift
	}
	return drift > seekTolerance.Milliseconds()
}
