package tail

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tessro/spotpanel/internal/core"
)

var (
	songA = &core.Track{Name: "Alpha", Artists: []string{"Band"}, Album: "One", DurationMs: 200000}
	songB = &core.Track{Name: "Beta", Artists: []string{"Band", "Guest"}, Album: "One", DurationMs: 180000}
)

func snap(track *core.Track, phase core.Phase, pos int64, vol float64) *core.NowPlaying {
	return &core.NowPlaying{Connected: true, Track: track, Phase: phase, PositionMs: pos, Volume: vol}
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestDiffStates(t *testing.T) {
	disconnected := core.Disconnected()

	tests := []struct {
		name    string
		prev    *core.NowPlaying
		curr    *core.NowPlaying
		elapsed time.Duration
		want    []EventType
	}{
		{
			name: "first snapshot playing",
			curr: snap(songA, core.PhasePlaying, 0, 0.5),
			want: []EventType{EventConnect, EventTrackChange},
		},
		{
			name: "first snapshot disconnected",
			curr: &disconnected,
			want: nil,
		},
		{
			name: "client disconnects",
			prev: snap(songA, core.PhasePlaying, 1000, 0.5),
			curr: &disconnected,
			want: []EventType{EventDisconnect},
		},
		{
			name:    "skip mid track",
			prev:    snap(songA, core.PhasePlaying, 30000, 0.5),
			curr:    snap(songB, core.PhasePlaying, 0, 0.5),
			elapsed: time.Second,
			want:    []EventType{EventTrackSkip},
		},
		{
			name:    "track ran out",
			prev:    snap(songA, core.PhasePlaying, 195000, 0.5),
			curr:    snap(songB, core.PhasePlaying, 0, 0.5),
			elapsed: 5 * time.Second,
			want:    []EventType{EventTrackComplete},
		},
		{
			name:    "pause",
			prev:    snap(songA, core.PhasePlaying, 10000, 0.5),
			curr:    snap(songA, core.PhasePaused, 11000, 0.5),
			elapsed: time.Second,
			want:    []EventType{EventPause},
		},
		{
			name:    "stop",
			prev:    snap(songA, core.PhasePaused, 10000, 0.5),
			curr:    snap(songA, core.PhaseStopped, 10000, 0.5),
			elapsed: time.Second,
			want:    []EventType{EventStop},
		},
		{
			name:    "volume",
			prev:    snap(songA, core.PhasePaused, 10000, 0.5),
			curr:    snap(songA, core.PhasePaused, 10000, 0.62),
			elapsed: time.Second,
			want:    []EventType{EventVolumeChange},
		},
		{
			name:    "seek forward",
			prev:    snap(songA, core.PhasePlaying, 10000, 0.5),
			curr:    snap(songA, core.PhasePlaying, 90000, 0.5),
			elapsed: time.Second,
			want:    []EventType{EventSeek},
		},
		{
			name:    "normal progress is not a seek",
			prev:    snap(songA, core.PhasePlaying, 10000, 0.5),
			curr:    snap(songA, core.PhasePlaying, 20500, 0.5),
			elapsed: 10 * time.Second,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := types(diffStates(tt.prev, tt.curr, tt.elapsed, time.Now()))
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("events = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

type fakeSource struct {
	mu      sync.Mutex
	initial core.NowPlaying
	handler func(core.NowPlaying)
	ready   chan struct{}
	unsubs  int
}

func (f *fakeSource) FetchNowPlaying(ctx context.Context) (core.NowPlaying, error) {
	return f.initial, nil
}

func (f *fakeSource) SubscribeNowPlaying(ctx context.Context, handler func(core.NowPlaying)) (core.Subscription, error) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	close(f.ready)
	return core.SubscriptionFunc(func() {
		f.mu.Lock()
		f.unsubs++
		f.mu.Unlock()
	}), nil
}

func (f *fakeSource) push(np core.NowPlaying) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(np)
}

func TestWatcherDropsDuplicates(t *testing.T) {
	src := &fakeSource{initial: *snap(songA, core.PhasePlaying, 0, 0.5), ready: make(chan struct{})}
	w := NewWatcher(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	next := func() Event {
		t.Helper()
		select {
		case e := <-w.Events():
			return e
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return Event{}
		}
	}

	if e := next(); e.Type != EventConnect {
		t.Errorf("first event = %v, want connect", e.Type)
	}
	if e := next(); e.Type != EventTrackChange {
		t.Errorf("second event = %v, want track_change", e.Type)
	}

	<-src.ready
	src.push(*snap(songA, core.PhasePlaying, 0, 0.5))
	src.push(*snap(songA, core.PhasePaused, 0, 0.5))
	if e := next(); e.Type != EventPause {
		t.Errorf("event after duplicate = %v, want pause", e.Type)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("Events() not closed after Start returned")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.unsubs != 1 {
		t.Errorf("unsubscribes = %d, want 1", src.unsubs)
	}
}

func TestFormatter(t *testing.T) {
	ts := time.Date(2024, 5, 1, 21, 4, 5, 0, time.UTC)
	prev := snap(songA, core.PhasePlaying, 30000, 0.5)
	curr := snap(songB, core.PhasePlaying, 65000, 0.42)

	tests := []struct {
		name  string
		opts  []FormatterOption
		event Event
		want  string
	}{
		{
			name:  "track change",
			opts:  []FormatterOption{WithEmoji(false)},
			event: Event{Type: EventTrackChange, Current: curr},
			want:  "Now playing: Band, Guest - Beta",
		},
		{
			name:  "skip names the previous track",
			opts:  []FormatterOption{WithEmoji(false)},
			event: Event{Type: EventTrackSkip, Previous: prev, Current: curr},
			want:  "Skipped: Band - Alpha",
		},
		{
			name:  "volume with emoji",
			event: Event{Type: EventVolumeChange, Current: curr},
			want:  "🔊 Volume: 42%",
		},
		{
			name:  "seek with timestamp",
			opts:  []FormatterOption{WithEmoji(false), WithTimestamp(true)},
			event: Event{Type: EventSeek, Timestamp: ts, Current: curr},
			want:  "21:04:05 Seeked to 1:05",
		},
		{
			name:  "template",
			opts:  []FormatterOption{WithTemplate("{{.Type}} {{.Title}} {{.Position}}/{{.Duration}} {{.Volume}}")},
			event: Event{Type: EventPlay, Current: curr},
			want:  "play Beta 1:05/3:00 42",
		},
		{
			name:  "broken template falls back",
			opts:  []FormatterOption{WithEmoji(false), WithTemplate("{{.Nope")},
			event: Event{Type: EventDisconnect},
			want:  "Client disconnected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFormatter(tt.opts...).Format(tt.event)
			if got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventTypeNames(t *testing.T) {
	for typ := EventConnect; typ <= EventSeek; typ++ {
		if name := typ.String(); name == "unknown" || strings.Contains(name, " ") {
			t.Errorf("EventType(%d).String() = %q", typ, name)
		}
		if eventEmoji(typ) == "❓" {
			t.Errorf("EventType(%d) has no emoji", typ)
		}
	}
}
