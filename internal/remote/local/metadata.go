package local

import (
	"github.com/godbus/dbus/v5"

	"github.com/tessro/spotpanel/internal/core"
)

// snapshotFromProperties builds a snapshot from the Player interface's
// properties as returned by GetAll.
func snapshotFromProperties(props map[string]dbus.Variant) core.NowPlaying {
	np := core.NowPlaying{
		Connected: true,
		Phase:     core.PhaseStopped,
		Volume:    0.5,
	}
	if v, ok := props["PlaybackStatus"]; ok {
		np.Phase = core.ParsePhase(asString(v))
	}
	if v, ok := props["Volume"]; ok {
		if f, ok := asFloat64(v); ok {
			np.Volume = core.ClampFraction(f)
		}
	}
	if v, ok := props["Position"]; ok {
		np.PositionMs = max(asInt64(v)/1000, 0)
	}
	if v, ok := props["Metadata"]; ok {
		np.Track = trackFromMetadata(v)
	}
	if np.Track != nil && np.Track.DurationMs > 0 {
		np.PositionMs = min(np.PositionMs, np.Track.DurationMs)
	}
	return np
}

// trackFromMetadata parses an MPRIS Metadata map. It returns nil when the
// map carries no track.
func trackFromMetadata(meta dbus.Variant) *core.Track {
	raw, ok := meta.Value().(map[string]dbus.Variant)
	if !ok || len(raw) == 0 {
		return nil
	}

	t := &core.Track{}
	if v, ok := raw["xesam:title"]; ok {
		t.Name = asString(v)
	}
	if v, ok := raw["xesam:album"]; ok {
		t.Album = asString(v)
	}
	if v, ok := raw["xesam:artist"]; ok {
		t.Artists = asStrings(v)
	}
	if v, ok := raw["mpris:artUrl"]; ok {
		t.CoverURL = asString(v)
	}
	if v, ok := raw["mpris:length"]; ok {
		t.DurationMs = max(asInt64(v)/1000, 0)
	}

	trackID := ""
	if v, ok := raw["mpris:trackid"]; ok {
		trackID = asString(v)
	}
	if t.Name == "" && (trackID == "" || trackID == noTrackID) {
		return nil
	}
	return t
}

// noTrackID is the MPRIS sentinel for "no track".
const noTrackID = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

func asString(v dbus.Variant) string {
	switch val := v.Value().(type) {
	case string:
		return val
	case dbus.ObjectPath:
		return string(val)
	}
	return ""
}

func asStrings(v dbus.Variant) []string {
	switch val := v.Value().(type) {
	case []string:
		return append([]string(nil), val...)
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asInt64(v dbus.Variant) int64 {
	switch val := v.Value().(type) {
	case int64:
		return val
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case uint32:
		return int64(val)
	case float64:
		return int64(val)
	}
	return 0
}

func asFloat64(v dbus.Variant) (float64, bool) {
	switch val := v.Value().(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	}
	return 0, false
}
