package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spotpanel/internal/core"
	"github.com/tessro/spotpanel/internal/engine"
	"github.com/tessro/spotpanel/internal/tui/styles"
)

// NowPlaying displays the current track, its progress and the volume.
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(v engine.View, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	switch {
	case v.Status == engine.StatusLoading:
		content = styles.Muted.Render("Loading...")
	case !v.Status.Running():
		content = styles.Muted.Render("Speaker is not running")
	case !v.Connection.Connected:
		content = styles.Muted.Render("Waiting for a Spotify client to connect")
	case !v.Connection.TrackPresent:
		content = lipgloss.JoinVertical(lipgloss.Left,
			styles.Muted.Render("Connected, nothing playing"),
			"",
			n.renderVolume(v, width-4),
		)
	default:
		content = n.renderTrack(v, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderTrack(v engine.View, width int) string {
	np := v.NowPlaying
	track := np.Track

	icon := styles.StatusIcon(np.Phase == core.PhasePlaying)
	title := styles.Title.Width(max(width-4, 1)).Render(track.Name)

	artist := styles.Subtitle.Render(strings.Join(track.Artists, ", "))
	album := styles.Dim.Render(track.Album)

	progressWidth := max(width-14, 10)
	progressBar := styles.ProgressBar(progressPercent(v.PositionMs, track.DurationMs), progressWidth)
	progress := fmt.Sprintf("%s %s %s",
		FormatDuration(v.PositionMs),
		progressBar,
		FormatDuration(track.DurationMs))

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"  "+album,
		"",
		progress,
		"",
		n.renderVolume(v, width),
	)
}

func (n *NowPlaying) renderVolume(v engine.View, width int) string {
	barWidth := max(width-12, 10)
	label := fmt.Sprintf("🔊 %3d%%", v.Volume)
	if v.EditingVolume {
		label += styles.Paused.Render(" •")
	}
	return styles.VolumeBar(v.Volume, barWidth, v.EditingVolume) + " " + label
}

func progressPercent(positionMs, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(positionMs) / float64(durationMs) * 100
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := (ms + 500) / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
