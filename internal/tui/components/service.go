package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spotpanel/internal/core"
	"github.com/tessro/spotpanel/internal/engine"
	"github.com/tessro/spotpanel/internal/tui/styles"
)

// Service displays the speaker service: whether it runs, whether it starts
// on login, and which commands are in flight.
type Service struct{}

// NewService creates a new Service component
func NewService() *Service {
	return &Service{}
}

// Render renders the service panel. settings may be nil when they have not
// been loaded.
func (s *Service) Render(v engine.View, settings *core.Settings, width, height int, focused bool) string {
	title := styles.PanelTitle("Speaker", focused)

	lines := []string{title, ""}
	if settings != nil {
		lines = append(lines,
			fmt.Sprintf("%s %s", styles.DeviceIcon(string(settings.DeviceType)), styles.Title.Render(settings.SpeakerName)),
			styles.Dim.Render(fmt.Sprintf("  %d kbit/s", settings.Bitrate)),
			"",
		)
	}

	lines = append(lines,
		row("Service", s.state(v)),
		row("Autostart", s.autostart(v)),
		row("Client", s.client(v)),
	)
	if v.Service.Name != "" {
		lines = append(lines, row("Unit", styles.Dim.Render(v.Service.Name)))
	}

	if busy := s.busy(v); busy != "" {
		lines = append(lines, "", busy)
	}
	if v.LastError != nil {
		lines = append(lines, "", styles.Failure.Render("⚠ "+v.LastError.Error()))
	}

	return styles.Panel(focused).
		Width(width).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func row(label, value string) string {
	return styles.Label.Width(11).Render(label) + value
}

func (s *Service) state(v engine.View) string {
	switch {
	case v.Status == engine.StatusLoading:
		return styles.Muted.Render("loading")
	case v.Service.Running:
		return styles.Playing.Render("● running")
	default:
		return styles.Paused.Render("○ stopped")
	}
}

func (s *Service) autostart(v engine.View) string {
	if v.Status == engine.StatusLoading {
		return styles.Muted.Render("unknown")
	}
	if v.Service.Enabled {
		return styles.Playing.Render("enabled")
	}
	return styles.Muted.Render("disabled")
}

func (s *Service) client(v engine.View) string {
	switch v.Status {
	case engine.StatusConnectedNoTrack, engine.StatusConnectedWithTrack:
		return styles.Playing.Render("connected")
	case engine.StatusDisconnected:
		return styles.Muted.Render("none")
	default:
		return styles.Dim.Render("-")
	}
}

func (s *Service) busy(v engine.View) string {
	var out string
	for _, f := range engine.Families {
		if v.IsBusy(f) {
			if out != "" {
				out += "  "
			}
			out += styles.Paused.Render("⟳ " + f.String() + "…")
		}
	}
	return out
}
