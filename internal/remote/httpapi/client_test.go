package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

func TestNewNormalizesAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{"", DefaultAddress, false},
		{"127.0.0.1:9000", "http://127.0.0.1:9000", false},
		{"http://deck.local:7655/", "http://deck.local:7655", false},
		{"https://deck.local", "https://deck.local", false},
		{"ftp://deck.local", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			c, err := New(tt.address)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
			if err == nil && c.Address() != tt.want {
				t.Errorf("Address() = %q, want %q", c.Address(), tt.want)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	err := NewAPIError(503, "speaker not found on the bus")
	want := "agent error 503: speaker not found on the bus"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if IsNotFound(err) {
		t.Error("IsNotFound() = true for 503")
	}
	if !IsNotFound(NewAPIError(404, "nope")) {
		t.Error("IsNotFound() = false for 404")
	}
}

func TestDecodeAPIError(t *testing.T) {
	err := decodeAPIError(500, []byte(`{"error":{"status":500,"message":"dbus timeout"}}`))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorInfo.Message != "dbus timeout" {
		t.Errorf("decodeAPIError() = %v", err)
	}

	err = decodeAPIError(502, []byte("bad gateway\n"))
	if !errors.As(err, &apiErr) || apiErr.ErrorInfo.Status != 502 || apiErr.ErrorInfo.Message != "bad gateway" {
		t.Errorf("decodeAPIError(plain) = %v", err)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithRetries(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ServiceStatus{Running: true, Enabled: true, Service: "decky-spotifyd.service", State: "active"})
	}))

	st, err := c.FetchServiceState(context.Background())
	if err != nil {
		t.Fatalf("FetchServiceState() error = %v", err)
	}
	if !st.Running || st.Name != "decky-spotifyd.service" {
		t.Errorf("state = %+v", st)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"status":404,"message":"no such endpoint"}}`)
	}))

	_, err := c.FetchNowPlaying(context.Background())
	if !IsNotFound(err) {
		t.Errorf("err = %v, want 404", err)
	}
	if !errors.Is(err, panelerrors.ErrTransport) {
		t.Errorf("err = %v, want transport failure", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestPostIsNeverRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	ok, err := c.Start(context.Background())
	if ok || err == nil {
		t.Fatalf("Start() = %v, %v; want false and an error", ok, err)
	}
	if panelerrors.Kind(err) != panelerrors.TransportFailure {
		t.Errorf("Kind = %v, want transport", panelerrors.Kind(err))
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestCommandsHitTheirEndpoints(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(Result{OK: r.URL.Path != "/api/next_track"})
	}))
	ctx := context.Background()

	tests := []struct {
		call   func(context.Context) (bool, error)
		path   string
		wantOK bool
	}{
		{c.Start, "/api/start", true},
		{c.Stop, "/api/stop", true},
		{c.Restart, "/api/restart", true},
		{c.Enable, "/api/enable", true},
		{c.Disable, "/api/disable", true},
		{c.PlayPause, "/api/play_pause", true},
		{c.Next, "/api/next_track", false},
		{c.Previous, "/api/previous_track", true},
	}
	for _, tt := range tests {
		ok, err := tt.call(ctx)
		if err != nil {
			t.Errorf("%s: error = %v", tt.path, err)
		}
		if gotPath != tt.path {
			t.Errorf("path = %s, want %s", gotPath, tt.path)
		}
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v, want %v", tt.path, ok, tt.wantOK)
		}
	}
}

func TestSetVolumeClamps(t *testing.T) {
	var got VolumeRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Result{OK: true})
	}))

	if _, err := c.SetVolume(context.Background(), 1.4); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if got.Volume != 1 {
		t.Errorf("sent volume = %v, want 1", got.Volume)
	}
}

func TestNowPlayingToCore(t *testing.T) {
	raw := `{
		"connected": true,
		"track": {"name": "Song", "artists": ["A", "B"], "album": "LP", "cover_url": "https://i.scdn.co/x", "duration_ms": 180000},
		"playback_state": "Playing",
		"position_ms": -5,
		"volume": 0.42
	}`
	var np NowPlaying
	if err := json.Unmarshal([]byte(raw), &np); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	got := np.ToCore()
	if !got.Connected || got.Phase != core.PhasePlaying {
		t.Errorf("snapshot = %+v", got)
	}
	if got.PositionMs != 0 {
		t.Errorf("PositionMs = %d, want 0", got.PositionMs)
	}
	if got.Track == nil || got.Track.Artist() != "A, B" || got.Track.DurationMs != 180000 {
		t.Errorf("Track = %+v", got.Track)
	}

	np.Track = nil
	if np.ToCore().Track != nil {
		t.Error("nil track should stay nil")
	}
}

func TestLogsQuery(t *testing.T) {
	tests := []struct {
		name      string
		lines     int
		wantQuery string
	}{
		{name: "requested count", lines: 20, wantQuery: "lines=20"},
		{name: "default count", lines: 0, wantQuery: "lines=50"},
		{name: "clamped count", lines: 1_000_000, wantQuery: "lines=1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != PathLogs {
					http.NotFound(w, r)
					return
				}
				query = r.URL.RawQuery
				_ = json.NewEncoder(w).Encode(Logs{Lines: []string{"spotifyd started"}})
			}))

			got, err := c.Logs(context.Background(), tt.lines)
			if err != nil {
				t.Fatalf("Logs() error = %v", err)
			}
			if query != tt.wantQuery {
				t.Errorf("query = %q, want %q", query, tt.wantQuery)
			}
			if len(got) != 1 || got[0] != "spotifyd started" {
				t.Errorf("Logs() = %q", got)
			}
		})
	}
}
