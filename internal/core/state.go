package core

import "math"

// Phase is the playback phase reported by the speaker.
type Phase string

const (
	PhasePlaying Phase = "playing"
	PhasePaused  Phase = "paused"
	PhaseStopped Phase = "stopped"
)

// ParsePhase maps backend spellings onto a Phase. Unknown values are stopped.
func ParsePhase(s string) Phase {
	switch s {
	case "playing", "Playing":
		return PhasePlaying
	case "paused", "Paused":
		return PhasePaused
	default:
		return PhaseStopped
	}
}

// ServiceState describes the speaker's system service.
type ServiceState struct {
	Running  bool   `json:"running"`
	Enabled  bool   `json:"enabled"`
	Name     string `json:"service"`
	RawState string `json:"state"`
}

// NowPlaying is an authoritative snapshot of the speaker at one instant.
type NowPlaying struct {
	Connected  bool    `json:"connected"`
	Track      *Track  `json:"track"`
	Phase      Phase   `json:"playback_state"`
	PositionMs int64   `json:"position_ms"`
	Volume     float64 `json:"volume"`
}

// Disconnected returns the snapshot used when nothing is known about the speaker.
func Disconnected() NowPlaying {
	return NowPlaying{Phase: PhaseStopped, Volume: 0.5}
}

// Connection derives the connection state from the snapshot.
func (n NowPlaying) Connection() ConnectionState {
	return ConnectionState{
		Connected:    n.Connected,
		TrackPresent: n.Connected && n.Track != nil,
	}
}

// Playing reports whether the snapshot describes a track that is advancing.
func (n NowPlaying) Playing() bool {
	return n.Connected && n.Track != nil && n.Phase == PhasePlaying
}

// VolumePercent converts the fractional volume to an integer percentage.
func (n NowPlaying) VolumePercent() int {
	return FractionToPercent(n.Volume)
}

// Clone returns a copy that shares no memory with n.
func (n NowPlaying) Clone() NowPlaying {
	n.Track = n.Track.Clone()
	return n
}

// ConnectionState is the pair of facts the UI gates on.
type ConnectionState struct {
	Connected    bool `json:"connected"`
	TrackPresent bool `json:"track_present"`
}

// FractionToPercent rounds a [0,1] volume to [0,100].
func FractionToPercent(f float64) int {
	p := int(math.Round(f * 100))
	return ClampPercent(p)
}

// ClampPercent bounds p to [0,100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ClampFraction bounds f to [0,1].
func ClampFraction(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
