package engine

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tessro/spotpanel/internal/core"
)

func newTestReconciler(s *fakeScheduler, r *fakeRemote) *Reconciler {
	return newReconciler(s.runner(), 1500*time.Millisecond, r.SetVolume, nopLogger(), nil)
}

func TestReconcilerStartsAtDefault(t *testing.T) {
	rec := newTestReconciler(newFakeScheduler(), newFakeRemote())
	if rec.Volume() != 50 {
		t.Errorf("Volume() = %d, want 50", rec.Volume())
	}
	if rec.Mode() != VolumeIdle {
		t.Errorf("Mode() = %v, want idle", rec.Mode())
	}
}

func TestReconcilerAdoptsConnectedSnapshots(t *testing.T) {
	tests := []struct {
		name string
		np   core.NowPlaying
		want int
	}{
		{"eighty", playing(0, 0.8), 80},
		{"rounds down", playing(0, 0.333), 33},
		{"rounds up", playing(0, 0.666), 67},
		{"connected no track", core.NowPlaying{Connected: true, Volume: 0.25}, 25},
		{"disconnected ignored", core.NowPlaying{Connected: false, Volume: 0.9}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestReconciler(newFakeScheduler(), newFakeRemote())
			rec.Observe(tt.np)
			if rec.Volume() != tt.want {
				t.Errorf("Volume() = %d, want %d", rec.Volume(), tt.want)
			}
		})
	}
}

func TestReconcilerEditWindow(t *testing.T) {
	s := newFakeScheduler()
	remote := newFakeRemote()
	rec := newTestReconciler(s, remote)
	rec.Observe(playing(0, 0.5))

	// t=0: user drags to 80.
	rec.Edit(80)
	if rec.Volume() != 80 || rec.Mode() != VolumeEditing {
		t.Fatalf("after edit: volume %d mode %v", rec.Volume(), rec.Mode())
	}
	if len(remote.volumes) != 1 || remote.volumes[0] != 0.8 {
		t.Fatalf("SetVolume calls = %v, want [0.8]", remote.volumes)
	}

	// t=300: a stale snapshot still reports 0.5.
	s.Advance(300 * time.Millisecond)
	rec.Observe(playing(0, 0.5))
	if rec.Volume() != 80 {
		t.Errorf("t=300 Volume() = %d, want 80", rec.Volume())
	}

	// t=1600: the window closed at 1500.
	s.Advance(1300 * time.Millisecond)
	if rec.Mode() != VolumeIdle {
		t.Errorf("t=1600 Mode() = %v, want idle", rec.Mode())
	}
	rec.Observe(playing(0, 0.8))
	if rec.Volume() != 80 {
		t.Errorf("t=1600 Volume() = %d, want 80", rec.Volume())
	}
}

func TestReconcilerAdoptsFirstSnapshotAfterWindow(t *testing.T) {
	s := newFakeScheduler()
	rec := newTestReconciler(s, newFakeRemote())

	rec.Edit(80)
	s.Advance(1600 * time.Millisecond)
	rec.Observe(playing(0, 0.6))
	if rec.Volume() != 60 {
		t.Errorf("Volume() = %d, want 60", rec.Volume())
	}
}

func TestReconcilerSettlesWhenExpiryIsQueued(t *testing.T) {
	s := newFakeScheduler()
	rec := newTestReconciler(s, newFakeRemote())

	rec.Edit(80)
	// Move the clock without firing timers, as if the expiry callback is
	// queued behind the snapshot.
	s.now = s.now.Add(2 * time.Second)
	rec.Observe(playing(0, 0.3))
	if rec.Volume() != 30 || rec.Mode() != VolumeIdle {
		t.Errorf("Volume() = %d mode %v, want 30 idle", rec.Volume(), rec.Mode())
	}
}

func TestReconcilerRearmsOnEachEdit(t *testing.T) {
	s := newFakeScheduler()
	rec := newTestReconciler(s, newFakeRemote())

	rec.Edit(40)
	s.Advance(time.Second)
	rec.Edit(45)

	// 2000ms after the first edit, 1000ms after the second.
	s.Advance(time.Second)
	rec.Observe(playing(0, 0.9))
	if rec.Volume() != 45 || rec.Mode() != VolumeEditing {
		t.Errorf("Volume() = %d mode %v, want 45 editing", rec.Volume(), rec.Mode())
	}
	if n := s.pending(); n != 1 {
		t.Errorf("pending timers = %d, want 1", n)
	}

	s.Advance(600 * time.Millisecond)
	rec.Observe(playing(0, 0.9))
	if rec.Volume() != 90 {
		t.Errorf("Volume() = %d, want 90", rec.Volume())
	}
}

func TestReconcilerClampsEdits(t *testing.T) {
	rec := newTestReconciler(newFakeScheduler(), newFakeRemote())
	rec.Edit(130)
	if rec.Volume() != 100 {
		t.Errorf("Volume() = %d, want 100", rec.Volume())
	}
	rec.Edit(-5)
	if rec.Volume() != 0 {
		t.Errorf("Volume() = %d, want 0", rec.Volume())
	}
}

func TestReconcilerCoalescesSends(t *testing.T) {
	s := newFakeScheduler()
	remote := newFakeRemote()
	rec := newTestReconciler(s, remote)

	s.holdCalls = true
	rec.Edit(10)
	rec.Edit(20)
	rec.Edit(30)
	s.releaseCalls()

	want := []float64{0.1, 0.3}
	if len(remote.volumes) != len(want) {
		t.Fatalf("SetVolume calls = %v, want %v", remote.volumes, want)
	}
	for i := range want {
		if remote.volumes[i] != want[i] {
			t.Errorf("SetVolume[%d] = %v, want %v", i, remote.volumes[i], want[i])
		}
	}
}

func TestReconcilerLogsSendFailure(t *testing.T) {
	s := newFakeScheduler()
	remote := newFakeRemote()
	remote.errs["set-volume"] = errBoom

	obsCore, logs := observer.New(zapcore.WarnLevel)
	rec := newReconciler(s.runner(), 1500*time.Millisecond, remote.SetVolume, zap.New(obsCore), nil)

	rec.Edit(70)
	if rec.Volume() != 70 || rec.Mode() != VolumeEditing {
		t.Errorf("failed send should not change local state: %d %v", rec.Volume(), rec.Mode())
	}
	entries := logs.FilterMessage("volume update failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d failures, want 1", len(entries))
	}
	if kind := entries[0].ContextMap()["kind"]; kind != "transport" {
		t.Errorf("kind = %v, want transport", kind)
	}
}

func TestReconcilerStop(t *testing.T) {
	s := newFakeScheduler()
	changes := 0
	rec := newReconciler(s.runner(), 1500*time.Millisecond, newFakeRemote().SetVolume, nopLogger(), func() { changes++ })

	rec.Edit(70)
	rec.Stop()
	s.Advance(2 * time.Second)
	if changes != 0 {
		t.Errorf("expiry ran after Stop")
	}
}

func TestReconcilerInFlightEdits(t *testing.T) {
	tests := []struct {
		name  string
		fail  bool
		stop  bool
		edits []int
		want  []float64
	}{
		{name: "latest sent after success", edits: []int{10, 20, 30, 40}, want: []float64{0.1, 0.4}},
		{name: "latest sent after failure", fail: true, edits: []int{10, 20, 30}, want: []float64{0.1, 0.3}},
		{name: "stop drops the queued edit", stop: true, edits: []int{10, 20}, want: []float64{0.1}},
		{name: "single edit", edits: []int{55}, want: []float64{0.55}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeScheduler()
			remote := newFakeRemote()
			if tt.fail {
				remote.errs["set-volume"] = errBoom
			}
			rec := newTestReconciler(s, remote)

			s.holdCalls = true
			for _, v := range tt.edits {
				rec.Edit(v)
			}
			if tt.stop {
				rec.Stop()
			}
			s.releaseCalls()

			if len(remote.volumes) != len(tt.want) {
				t.Fatalf("SetVolume calls = %v, want %v", remote.volumes, tt.want)
			}
			for i := range tt.want {
				if remote.volumes[i] != tt.want[i] {
					t.Errorf("SetVolume[%d] = %v, want %v", i, remote.volumes[i], tt.want[i])
				}
			}
		})
	}
}
