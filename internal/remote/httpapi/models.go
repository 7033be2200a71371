package httpapi

import (
	"encoding/json"

	"github.com/tessro/spotpanel/internal/core"
)

// Endpoint paths shared by the client and the agent.
const (
	PathStatus     = "/api/status"
	PathNowPlaying = "/api/now_playing"
	PathSettings   = "/api/settings"
	PathSetVolume  = "/api/set_volume"
	PathEvents     = "/api/events"
	PathLogs       = "/api/logs"
)

// Command endpoint names. Each is served at /api/<name>.
const (
	CommandStart     = "start"
	CommandStop      = "stop"
	CommandRestart   = "restart"
	CommandEnable    = "enable"
	CommandDisable   = "disable"
	CommandPlayPause = "play_pause"
	CommandNext      = "next_track"
	CommandPrevious  = "previous_track"
)

// Commands lists every command endpoint name.
var Commands = []string{
	CommandStart, CommandStop, CommandRestart, CommandEnable, CommandDisable,
	CommandPlayPause, CommandNext, CommandPrevious,
}

// CommandPath returns the endpoint for a command name.
func CommandPath(name string) string {
	return "/api/" + name
}

// EventNowPlaying tags a now-playing push event.
const EventNowPlaying = "now_playing"

// ServiceStatus is the wire form of core.ServiceState.
type ServiceStatus struct {
	Running bool   `json:"running"`
	Enabled bool   `json:"enabled"`
	Service string `json:"service"`
	State   string `json:"state"`
}

// TrackInfo is the wire form of core.Track.
type TrackInfo struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	CoverURL   string   `json:"cover_url"`
	DurationMs int64    `json:"duration_ms"`
}

// NowPlaying is the wire form of core.NowPlaying.
type NowPlaying struct {
	Connected     bool       `json:"connected"`
	Track         *TrackInfo `json:"track"`
	PlaybackState string     `json:"playback_state"`
	PositionMs    int64      `json:"position_ms"`
	Volume        float64    `json:"volume"`
}

// Settings is the wire form of core.Settings.
type Settings struct {
	SpeakerName   string `json:"speaker_name"`
	Bitrate       int    `json:"bitrate"`
	DeviceType    string `json:"device_type"`
	InitialVolume int    `json:"initial_volume"`
}

// Logs answers a logs request.
type Logs struct {
	Lines []string `json:"lines"`
}

// Result answers every command.
type Result struct {
	OK bool `json:"ok"`
}

// VolumeRequest is the body of a set_volume call.
type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

// Event is one message on the events stream.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// FromServiceState converts a core service state to its wire form.
func FromServiceState(s core.ServiceState) ServiceStatus {
	return ServiceStatus{
		Running: s.Running,
		Enabled: s.Enabled,
		Service: s.Name,
		State:   s.RawState,
	}
}

// ToCore converts the wire form to a core service state.
func (s ServiceStatus) ToCore() core.ServiceState {
	return core.ServiceState{
		Running:  s.Running,
		Enabled:  s.Enabled,
		Name:     s.Service,
		RawState: s.State,
	}
}

// FromNowPlaying converts a core snapshot to its wire form.
func FromNowPlaying(np core.NowPlaying) NowPlaying {
	out := NowPlaying{
		Connected:     np.Connected,
		PlaybackState: string(np.Phase),
		PositionMs:    np.PositionMs,
		Volume:        np.Volume,
	}
	if np.Track != nil {
		out.Track = &TrackInfo{
			Name:       np.Track.Name,
			Artists:    append([]string(nil), np.Track.Artists...),
			Album:      np.Track.Album,
			CoverURL:   np.Track.CoverURL,
			DurationMs: np.Track.DurationMs,
		}
	}
	return out
}

// ToCore converts the wire form to a core snapshot. Out-of-range values are
// clamped.
func (n NowPlaying) ToCore() core.NowPlaying {
	out := core.NowPlaying{
		Connected:  n.Connected,
		Track:      convertTrack(n.Track),
		Phase:      core.ParsePhase(n.PlaybackState),
		PositionMs: max(n.PositionMs, 0),
		Volume:     core.ClampFraction(n.Volume),
	}
	return out
}

func convertTrack(t *TrackInfo) *core.Track {
	if t == nil {
		return nil
	}
	return &core.Track{
		Name:       t.Name,
		Artists:    append([]string(nil), t.Artists...),
		Album:      t.Album,
		CoverURL:   t.CoverURL,
		DurationMs: max(t.DurationMs, 0),
	}
}

// FromSettings converts core settings to their wire form.
func FromSettings(s core.Settings) Settings {
	return Settings{
		SpeakerName:   s.SpeakerName,
		Bitrate:       s.Bitrate,
		DeviceType:    string(s.DeviceType),
		InitialVolume: s.InitialVolume,
	}
}

// ToCore converts the wire form to core settings.
func (s Settings) ToCore() core.Settings {
	return core.Settings{
		SpeakerName:   s.SpeakerName,
		Bitrate:       s.Bitrate,
		DeviceType:    core.DeviceType(s.DeviceType),
		InitialVolume: s.InitialVolume,
	}
}
