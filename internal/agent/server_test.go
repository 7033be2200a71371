package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
	"github.com/tessro/spotpanel/internal/remote/httpapi"
)

type fakeRemote struct {
	mu       sync.Mutex
	calls    []string
	volume   float64
	settings core.Settings
	np       core.NowPlaying
	fail     map[string]error
	handlers map[int]func(core.NowPlaying)
	nextID   int
	subbed   chan struct{}
	unsubbed chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		settings: core.DefaultSettings(),
		np: core.NowPlaying{
			Connected:  true,
			Track:      &core.Track{Name: "Song", Artists: []string{"Artist"}, Album: "LP", DurationMs: 200000},
			Phase:      core.PhasePlaying,
			PositionMs: 1000,
			Volume:     0.5,
		},
		fail:     map[string]error{},
		handlers: map[int]func(core.NowPlaying){},
		subbed:   make(chan struct{}, 4),
		unsubbed: make(chan struct{}, 4),
	}
}

func (f *fakeRemote) record(op string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err := f.fail[op]; err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeRemote) FetchServiceState(ctx context.Context) (core.ServiceState, error) {
	if _, err := f.record("status"); err != nil {
		return core.ServiceState{}, err
	}
	return core.ServiceState{Running: true, Enabled: true, Name: "decky-spotifyd.service", RawState: "active"}, nil
}

func (f *fakeRemote) Start(ctx context.Context) (bool, error)     { return f.record("start") }
func (f *fakeRemote) Stop(ctx context.Context) (bool, error)      { return f.record("stop") }
func (f *fakeRemote) Restart(ctx context.Context) (bool, error)   { return f.record("restart") }
func (f *fakeRemote) Enable(ctx context.Context) (bool, error)    { return f.record("enable") }
func (f *fakeRemote) Disable(ctx context.Context) (bool, error)   { return f.record("disable") }
func (f *fakeRemote) PlayPause(ctx context.Context) (bool, error) { return f.record("play-pause") }
func (f *fakeRemote) Next(ctx context.Context) (bool, error)      { return f.record("next") }
func (f *fakeRemote) Previous(ctx context.Context) (bool, error)  { return f.record("previous") }

func (f *fakeRemote) SetVolume(ctx context.Context, fraction float64) (bool, error) {
	f.mu.Lock()
	f.volume = fraction
	f.mu.Unlock()
	return f.record("volume")
}

func (f *fakeRemote) FetchNowPlaying(ctx context.Context) (core.NowPlaying, error) {
	if _, err := f.record("now-playing"); err != nil {
		return core.NowPlaying{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.np.Clone(), nil
}

func (f *fakeRemote) SubscribeNowPlaying(ctx context.Context, handler func(core.NowPlaying)) (core.Subscription, error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	f.mu.Unlock()
	f.subbed <- struct{}{}

	var once sync.Once
	return core.SubscriptionFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
			f.unsubbed <- struct{}{}
		})
	}), nil
}

func (f *fakeRemote) push(np core.NowPlaying) {
	f.mu.Lock()
	handlers := make([]func(core.NowPlaying), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(np)
	}
}

func (f *fakeRemote) Logs(ctx context.Context, lines int) ([]string, error) {
	if _, err := f.record(fmt.Sprintf("logs %d", lines)); err != nil {
		return nil, err
	}
	out := make([]string, 0, lines)
	for i := range lines {
		out = append(out, fmt.Sprintf("line %d", i+1))
	}
	return out, nil
}

func (f *fakeRemote) FetchSettings(ctx context.Context) (core.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, nil
}

func (f *fakeRemote) SaveSettings(ctx context.Context, s core.Settings) (bool, error) {
	f.mu.Lock()
	f.settings = s
	f.mu.Unlock()
	return f.record("save-settings")
}

func (f *fakeRemote) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func setup(t *testing.T) (*fakeRemote, *httpapi.Client) {
	t.Helper()
	remote := newFakeRemote()
	srv := httptest.NewServer(New(remote, nil))
	t.Cleanup(srv.Close)

	c, err := httpapi.New(srv.URL, httpapi.WithRetries(0))
	if err != nil {
		t.Fatalf("httpapi.New() error = %v", err)
	}
	return remote, c
}

func TestRoundTripQueries(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	st, err := c.FetchServiceState(ctx)
	if err != nil {
		t.Fatalf("FetchServiceState() error = %v", err)
	}
	if !st.Running || !st.Enabled || st.RawState != "active" {
		t.Errorf("service = %+v", st)
	}

	np, err := c.FetchNowPlaying(ctx)
	if err != nil {
		t.Fatalf("FetchNowPlaying() error = %v", err)
	}
	if !np.Connected || np.Track == nil || np.Track.Name != "Song" || np.PositionMs != 1000 {
		t.Errorf("now playing = %+v", np)
	}

	settings, err := c.FetchSettings(ctx)
	if err != nil {
		t.Fatalf("FetchSettings() error = %v", err)
	}
	if settings != core.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", settings)
	}
}

func TestRoundTripCommands(t *testing.T) {
	remote, c := setup(t)
	ctx := context.Background()

	tests := []struct {
		call func(context.Context) (bool, error)
		op   string
	}{
		{c.Start, "start"},
		{c.Stop, "stop"},
		{c.Restart, "restart"},
		{c.Enable, "enable"},
		{c.Disable, "disable"},
		{c.PlayPause, "play-pause"},
		{c.Next, "next"},
		{c.Previous, "previous"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			ok, err := tt.call(ctx)
			if err != nil || !ok {
				t.Fatalf("call = %v, %v", ok, err)
			}
			if got := remote.lastCall(); got != tt.op {
				t.Errorf("backend saw %q, want %q", got, tt.op)
			}
		})
	}
}

func TestBackendErrorBecomesDeclined(t *testing.T) {
	remote, c := setup(t)
	remote.mu.Lock()
	remote.fail["restart"] = errors.New("dbus: no reply")
	remote.mu.Unlock()

	ok, err := c.Restart(context.Background())
	if err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if ok {
		t.Error("Restart() ok = true, want false")
	}
}

func TestQueryErrorStatus(t *testing.T) {
	remote, c := setup(t)
	remote.mu.Lock()
	remote.fail["now-playing"] = panelerrors.ErrPlayerNotFound
	remote.mu.Unlock()

	_, err := c.FetchNowPlaying(context.Background())
	var apiErr *httpapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.ErrorInfo.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", apiErr.ErrorInfo.Status)
	}
}

func TestSetVolumeAndSettings(t *testing.T) {
	remote, c := setup(t)
	ctx := context.Background()

	if ok, err := c.SetVolume(ctx, 0.35); err != nil || !ok {
		t.Fatalf("SetVolume() = %v, %v", ok, err)
	}
	remote.mu.Lock()
	volume := remote.volume
	remote.mu.Unlock()
	if volume != 0.35 {
		t.Errorf("backend volume = %v, want 0.35", volume)
	}

	s := core.DefaultSettings()
	s.SpeakerName = "living-room"
	s.Bitrate = 160
	if ok, err := c.SaveSettings(ctx, s); err != nil || !ok {
		t.Fatalf("SaveSettings() = %v, %v", ok, err)
	}
	if saved, _ := remote.FetchSettings(ctx); saved.SpeakerName != "living-room" {
		t.Errorf("backend settings = %+v", saved)
	}

	s.Bitrate = 128
	_, err := c.SaveSettings(ctx, s)
	var apiErr *httpapi.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorInfo.Status != http.StatusBadRequest {
		t.Errorf("SaveSettings(invalid) error = %v, want 400", err)
	}
}

func TestEventStream(t *testing.T) {
	remote, c := setup(t)

	got := make(chan core.NowPlaying, 4)
	sub, err := c.SubscribeNowPlaying(context.Background(), func(np core.NowPlaying) {
		got <- np
	})
	if err != nil {
		t.Fatalf("SubscribeNowPlaying() error = %v", err)
	}

	select {
	case <-remote.subbed:
	case <-time.After(2 * time.Second):
		t.Fatal("agent never subscribed")
	}

	remote.push(core.NowPlaying{Connected: true, Phase: core.PhasePaused, PositionMs: 4200, Volume: 0.6})
	select {
	case np := <-got:
		if np.Phase != core.PhasePaused || np.PositionMs != 4200 || np.Volume != 0.6 {
			t.Errorf("event = %+v", np)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	select {
	case <-remote.unsubbed:
	case <-time.After(2 * time.Second):
		t.Fatal("agent kept the backend subscription")
	}
}

func TestLogs(t *testing.T) {
	tests := []struct {
		name     string
		lines    int
		wantCall string
		wantLen  int
	}{
		{name: "requested count", lines: 3, wantCall: "logs 3", wantLen: 3},
		{name: "default count", lines: 0, wantCall: "logs 50", wantLen: core.DefaultLogLines},
		{name: "clamped count", lines: 5000, wantCall: "logs 1000", wantLen: core.MaxLogLines},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote, c := setup(t)
			got, err := c.Logs(context.Background(), tt.lines)
			if err != nil {
				t.Fatalf("Logs() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len(Logs()) = %d, want %d", len(got), tt.wantLen)
			}
			if call := remote.lastCall(); call != tt.wantCall {
				t.Errorf("backend call = %q, want %q", call, tt.wantCall)
			}
		})
	}
}

func TestLogsRequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		fail       error
		wantStatus int
	}{
		{name: "missing count", query: "", wantStatus: http.StatusOK},
		{name: "malformed count", query: "?lines=ten", wantStatus: http.StatusBadRequest},
		{name: "journal unavailable", query: "?lines=5", fail: errors.New("read journal: exit status 1"), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			if tt.fail != nil {
				remote.fail["logs 5"] = tt.fail
			}
			srv := httptest.NewServer(New(remote, nil))
			defer srv.Close()

			resp, err := http.Get(srv.URL + httpapi.PathLogs + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
