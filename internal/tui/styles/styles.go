package styles

import (
	"fmt"
	"strings"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// Theme names accepted by SetTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Colors, filled from the catppuccin palette by SetTheme.
var (
	Primary   lipgloss.TerminalColor
	Success   lipgloss.TerminalColor
	Warning   lipgloss.TerminalColor
	Error     lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
	Text      lipgloss.TerminalColor
	TextMuted lipgloss.TerminalColor
	TextDim   lipgloss.TerminalColor
)

// Text styles
var (
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Label     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style
	Dim       lipgloss.Style
	Playing   lipgloss.Style
	Paused    lipgloss.Style
	Failure   lipgloss.Style
)

// Border styles
var (
	BorderStyle   lipgloss.Style
	FocusedBorder lipgloss.Style
)

func init() {
	_ = SetTheme(ThemeAuto)
}

// SetTheme rebuilds every style from the named theme. "auto" picks the
// latte or mocha flavour from the terminal background.
func SetTheme(name string) error {
	light, dark := catppuccin.Latte, catppuccin.Mocha

	var pick func(func(catppuccin.Flavour) catppuccin.Color) lipgloss.TerminalColor
	switch name {
	case "", ThemeAuto:
		pick = func(c func(catppuccin.Flavour) catppuccin.Color) lipgloss.TerminalColor {
			return lipgloss.AdaptiveColor{Light: c(light).Hex, Dark: c(dark).Hex}
		}
	case ThemeDark:
		pick = func(c func(catppuccin.Flavour) catppuccin.Color) lipgloss.TerminalColor {
			return lipgloss.Color(c(dark).Hex)
		}
	case ThemeLight:
		pick = func(c func(catppuccin.Flavour) catppuccin.Color) lipgloss.TerminalColor {
			return lipgloss.Color(c(light).Hex)
		}
	default:
		return fmt.Errorf("unknown theme %q", name)
	}

	Primary = pick(catppuccin.Flavour.Mauve)
	Success = pick(catppuccin.Flavour.Green)
	Warning = pick(catppuccin.Flavour.Peach)
	Error = pick(catppuccin.Flavour.Red)
	Border = pick(catppuccin.Flavour.Surface2)
	Text = pick(catppuccin.Flavour.Text)
	TextMuted = pick(catppuccin.Flavour.Subtext0)
	TextDim = pick(catppuccin.Flavour.Overlay0)

	Title = lipgloss.NewStyle().Bold(true).Foreground(Text)
	Subtitle = lipgloss.NewStyle().Foreground(TextMuted)
	Label = lipgloss.NewStyle().Foreground(TextDim)
	Highlight = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	Muted = lipgloss.NewStyle().Foreground(TextMuted)
	Dim = lipgloss.NewStyle().Foreground(TextDim)
	Playing = lipgloss.NewStyle().Foreground(Success)
	Paused = lipgloss.NewStyle().Foreground(Warning)
	Failure = lipgloss.NewStyle().Foreground(Error)

	BorderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border)
	FocusedBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary)
	return nil
}

// Panel creates a styled panel with optional focus
func Panel(focused bool) lipgloss.Style {
	if focused {
		return FocusedBorder.Padding(0, 1)
	}
	return BorderStyle.Padding(0, 1)
}

// PanelTitle creates a styled panel title
func PanelTitle(title string, focused bool) string {
	style := Label
	if focused {
		style = Highlight
	}
	return style.Render(" " + title + " ")
}

// ProgressBar renders percent (0-100) as a bar width cells wide.
func ProgressBar(percent float64, width int) string {
	return bar(percent, width, "━", "─", Primary)
}

// VolumeBar renders a volume bar. While editing the filled part uses the
// warning colour to show the value has not been confirmed yet.
func VolumeBar(percent int, width int, editing bool) string {
	color := Success
	if editing {
		color = Warning
	}
	return bar(float64(percent), width, "█", "░", color)
}

func bar(percent float64, width int, full, empty string, color lipgloss.TerminalColor) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))

	filledStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(Border)
	return filledStyle.Render(strings.Repeat(full, filled)) +
		emptyStyle.Render(strings.Repeat(empty, width-filled))
}

// StatusIcon returns an icon for playback status
func StatusIcon(playing bool) string {
	if playing {
		return Playing.Render("▶")
	}
	return Paused.Render("⏸")
}

// DeviceIcon returns an icon for a speaker device type.
func DeviceIcon(deviceType string) string {
	switch deviceType {
	case "computer":
		return "💻"
	case "smartphone", "tablet":
		return "📱"
	case "speaker", "a_v_r", "audio_dongle":
		return "🔊"
	case "t_v", "s_t_b":
		return "📺"
	case "game-console":
		return "🎮"
	default:
		return "🎧"
	}
}
