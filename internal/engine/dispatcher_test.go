package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

type dispatcherHarness struct {
	s          *fakeScheduler
	remote     *fakeRemote
	dispatcher *Dispatcher
	notices    []Notice
	refreshes  int
}

func newDispatcherHarness() *dispatcherHarness {
	h := &dispatcherHarness{s: newFakeScheduler(), remote: newFakeRemote()}
	h.dispatcher = newDispatcher(h.s.runner(), h.remote, nopLogger(),
		func(n Notice) { h.notices = append(h.notices, n) },
		func() { h.refreshes++ },
		nil)
	return h
}

func TestCommandFamily(t *testing.T) {
	tests := []struct {
		cmd  Command
		want Family
	}{
		{CommandStart, FamilyToggle},
		{CommandStop, FamilyToggle},
		{CommandRestart, FamilyRestart},
		{CommandEnable, FamilyAutostart},
		{CommandDisable, FamilyAutostart},
		{CommandPlayPause, FamilyPlayback},
		{CommandNext, FamilyPlayback},
		{CommandPrevious, FamilyPlayback},
	}
	for _, tt := range tests {
		if got := tt.cmd.Family(); got != tt.want {
			t.Errorf("%s.Family() = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}

func TestDispatchSuccess(t *testing.T) {
	tests := []struct {
		cmd         Command
		op          string
		wantRefresh int
	}{
		{CommandStart, "start", 1},
		{CommandStop, "stop", 1},
		{CommandRestart, "restart", 1},
		{CommandEnable, "enable", 1},
		{CommandPlayPause, "play-pause", 0},
		{CommandNext, "next", 0},
		{CommandPrevious, "previous", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			h := newDispatcherHarness()
			if err := h.dispatcher.Dispatch(tt.cmd); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if n := h.remote.count(tt.op); n != 1 {
				t.Errorf("%s calls = %d, want 1", tt.op, n)
			}
			if len(h.notices) != 1 || h.notices[0].Level != NoticeSuccess {
				t.Fatalf("notices = %+v, want one success", h.notices)
			}
			if h.refreshes != tt.wantRefresh {
				t.Errorf("refreshes = %d, want %d", h.refreshes, tt.wantRefresh)
			}
			if h.dispatcher.Busy(tt.cmd.Family()) {
				t.Error("busy flag not cleared")
			}
		})
	}
}

func TestDispatchLogicalFailure(t *testing.T) {
	h := newDispatcherHarness()
	h.remote.results["start"] = false

	if err := h.dispatcher.Dispatch(CommandStart); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(h.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(h.notices))
	}
	n := h.notices[0]
	if n.Level != NoticeFailure || n.Text != "Failed to start the speaker" {
		t.Errorf("notice = %+v", n)
	}
	if panelerrors.Kind(n.Err) != panelerrors.LogicalFailure {
		t.Errorf("Kind = %v, want logical", panelerrors.Kind(n.Err))
	}
	if h.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0 after failure", h.refreshes)
	}
	if h.dispatcher.Busy(FamilyToggle) {
		t.Error("busy flag not cleared")
	}
}

func TestDispatchTransportFailure(t *testing.T) {
	h := newDispatcherHarness()
	h.remote.errs["next"] = errBoom

	if err := h.dispatcher.Dispatch(CommandNext); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	n := h.notices[0]
	if n.Level != NoticeFailure {
		t.Fatalf("notice level = %v, want failure", n.Level)
	}
	if !strings.Contains(n.Text, "connection reset by peer") {
		t.Errorf("notice text %q should include the cause", n.Text)
	}
	if !errors.Is(n.Err, panelerrors.ErrTransport) {
		t.Errorf("notice error = %v, want transport", n.Err)
	}
	if n := h.remote.count("next"); n != 1 {
		t.Errorf("next calls = %d, want 1 (no retry)", n)
	}
}

func TestDispatchRejectsWhileBusy(t *testing.T) {
	h := newDispatcherHarness()
	h.s.holdCalls = true

	if err := h.dispatcher.Dispatch(CommandNext); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
	if !h.dispatcher.Busy(FamilyPlayback) {
		t.Fatal("Busy() = false while in flight")
	}

	err := h.dispatcher.Dispatch(CommandPrevious)
	if !errors.Is(err, panelerrors.ErrBusy) {
		t.Errorf("second Dispatch() error = %v, want ErrBusy", err)
	}

	// Other families are independent.
	if err := h.dispatcher.Dispatch(CommandRestart); err != nil {
		t.Errorf("Dispatch(restart) error = %v", err)
	}
	if busy := h.dispatcher.BusySet(); len(busy) != 2 {
		t.Errorf("BusySet() = %v, want two families", busy)
	}

	h.s.releaseCalls()
	if h.remote.count("next") != 1 || h.remote.count("previous") != 0 {
		t.Errorf("calls = %v", h.remote.calls)
	}
	if len(h.dispatcher.BusySet()) != 0 {
		t.Errorf("BusySet() = %v after completion", h.dispatcher.BusySet())
	}
	if err := h.dispatcher.Dispatch(CommandPrevious); err != nil {
		t.Errorf("Dispatch() after release error = %v", err)
	}
}

func TestDispatchPanicReleasesBusy(t *testing.T) {
	h := newDispatcherHarness()
	h.remote.panics["restart"] = true

	if err := h.dispatcher.Dispatch(CommandRestart); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if h.dispatcher.Busy(FamilyRestart) {
		t.Error("busy flag stuck after panic")
	}
	if len(h.notices) != 1 || h.notices[0].Level != NoticeFailure {
		t.Errorf("notices = %+v, want one failure", h.notices)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	h := newDispatcherHarness()
	if err := h.dispatcher.Dispatch(Command("eject")); err == nil {
		t.Error("Dispatch(eject) error = nil")
	}
	if len(h.remote.calls) != 0 {
		t.Errorf("calls = %v, want none", h.remote.calls)
	}
}

func TestExec(t *testing.T) {
	remote := newFakeRemote()
	if err := Exec(context.Background(), remote, CommandEnable); err != nil {
		t.Errorf("Exec() error = %v", err)
	}

	remote.results["disable"] = false
	err := Exec(context.Background(), remote, CommandDisable)
	if !errors.Is(err, panelerrors.ErrRejected) {
		t.Errorf("Exec() error = %v, want ErrRejected", err)
	}
}
