package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/tessro/spotpanel/internal/engine"
)

// keyMap defines all keyboard bindings for the panel.
type keyMap struct {
	PlayPause     key.Binding
	Next          key.Binding
	Previous      key.Binding
	VolumeUp      key.Binding
	VolumeDown    key.Binding
	ToggleService key.Binding
	Restart       key.Binding
	Autostart     key.Binding
	Refresh       key.Binding
	Tab           key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PlayPause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Next: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next"),
		),
		Previous: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "prev"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "vol up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "vol down"),
		),
		ToggleService: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start/stop"),
		),
		Restart: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "restart"),
		),
		Autostart: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "autostart"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "switch panel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// update enables exactly the bindings whose commands can run against v.
// Disabled bindings neither match nor show up as available.
func (k *keyMap) update(v engine.View) {
	loaded := v.Status != engine.StatusLoading
	connected := v.Connection.Connected
	playback := connected && !v.IsBusy(engine.FamilyPlayback)

	k.PlayPause.SetEnabled(playback)
	k.Next.SetEnabled(playback)
	k.Previous.SetEnabled(playback)
	k.VolumeUp.SetEnabled(connected)
	k.VolumeDown.SetEnabled(connected)
	k.ToggleService.SetEnabled(loaded && !v.IsBusy(engine.FamilyToggle))
	k.Restart.SetEnabled(v.Status.Running() && !v.IsBusy(engine.FamilyRestart))
	k.Autostart.SetEnabled(loaded && !v.IsBusy(engine.FamilyAutostart))
}

// ShortHelp returns key bindings for the status bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.PlayPause, k.Next, k.Previous, k.VolumeUp, k.VolumeDown,
		k.ToggleService, k.Help, k.Quit,
	}
}

// FullHelp returns key bindings for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Next, k.Previous, k.VolumeUp, k.VolumeDown},
		{k.ToggleService, k.Restart, k.Autostart, k.Refresh},
		{k.Tab, k.Help, k.Quit},
	}
}
