package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji:     true,
		showTimestamp: false,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string

	// Timestamp
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}

	// Emoji
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}

	// Event description
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Current != nil {
		data.Volume = e.Current.VolumePercent()
		data.Position = formatDuration(e.Current.PositionMs)
		data.State = string(e.Current.Phase)
		if t := e.Current.Track; t != nil {
			data.Title = t.Name
			data.Artist = t.Artist()
			data.Album = t.Album
			data.Duration = formatDuration(t.DurationMs)
		}
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Title     string
	Artist    string
	Album     string
	State     string
	Position  string
	Duration  string
	Volume    int
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventConnect:
		return "Client connected"

	case EventDisconnect:
		return "Client disconnected"

	case EventTrackChange:
		if e.Current != nil && e.Current.Track != nil {
			return fmt.Sprintf("Now playing: %s - %s",
				e.Current.Track.Artist(),
				e.Current.Track.Name)
		}
		return "Track changed"

	case EventTrackComplete:
		if e.Previous != nil && e.Previous.Track != nil {
			return fmt.Sprintf("Finished: %s - %s",
				e.Previous.Track.Artist(),
				e.Previous.Track.Name)
		}
		return "Track completed"

	case EventTrackSkip:
		if e.Previous != nil && e.Previous.Track != nil {
			return fmt.Sprintf("Skipped: %s - %s",
				e.Previous.Track.Artist(),
				e.Previous.Track.Name)
		}
		return "Track skipped"

	case EventPlay:
		return "Playing"

	case EventPause:
		return "Paused"

	case EventStop:
		return "Stopped"

	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("Volume: %d%%", e.Current.VolumePercent())
		}
		return "Volume changed"

	case EventSeek:
		if e.Current != nil {
			return fmt.Sprintf("Seeked to %s", formatDuration(e.Current.PositionMs))
		}
		return "Seeked"

	default:
		return "Unknown event"
	}
}

// formatDuration renders milliseconds as m:ss.
func formatDuration(ms int64) string {
	s := max(ms, 0) / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventConnect:
		return "🔗"
	case EventDisconnect:
		return "💤"
	case EventTrackChange:
		return "🎵"
	case EventTrackComplete:
		return "✅"
	case EventTrackSkip:
		return "⏭️"
	case EventPlay:
		return "▶️"
	case EventPause:
		return "⏸️"
	case EventStop:
		return "⏹️"
	case EventVolumeChange:
		return "🔊"
	case EventSeek:
		return "⏩"
	default:
		return "❓"
	}
}

var eventTypeNames = map[EventType]string{
	EventConnect:       "connect",
	EventDisconnect:    "disconnect",
	EventTrackChange:   "track_change",
	EventTrackComplete: "track_complete",
	EventTrackSkip:     "track_skip",
	EventPlay:          "play",
	EventPause:         "pause",
	EventStop:          "stop",
	EventVolumeChange:  "volume_change",
	EventSeek:          "seek",
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// String returns the event type's name.
func (t EventType) String() string {
	return eventTypeName(t)
}
