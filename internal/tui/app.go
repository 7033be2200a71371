package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spotpanel/internal/core"
	"github.com/tessro/spotpanel/internal/engine"
	"github.com/tessro/spotpanel/internal/tui/components"
	"github.com/tessro/spotpanel/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelService
)

const (
	noticeDuration = 5 * time.Second
	defaultStep    = 5
)

// Controller is the part of the engine the panel drives.
type Controller interface {
	View() engine.View
	Updates() <-chan engine.View
	Notices() <-chan engine.Notice
	Refresh()
	Dispatch(cmd engine.Command) error
	ToggleService() error
	ToggleAutostart() error
	NudgeVolume(delta int) error
}

// Options configure the panel.
type Options struct {
	Theme      string
	VolumeStep int
	// Settings, when set, is read once to show the speaker's name.
	Settings core.SettingsStore
}

// Model is the main TUI model
type Model struct {
	engine   Controller
	settings core.SettingsStore
	step     int

	width        int
	height       int
	focusedPanel Panel

	view    engine.View
	speaker *core.Settings

	nowPlaying *components.NowPlaying
	service    *components.Service

	keys     keyMap
	help     help.Model
	showHelp bool

	// Either a notice or a rejection is flashed in the status bar.
	// flashSeq drops clear messages for flashes that were replaced.
	notice    *engine.Notice
	lastError error
	flashSeq  int
	quitting  bool
}

type (
	viewMsg     engine.View
	noticeMsg   engine.Notice
	settingsMsg core.Settings
	errMsg      error
	clearMsg    struct{ seq int }
)

// NewModel creates the panel model for e.
func NewModel(e Controller, opts Options) Model {
	step := opts.VolumeStep
	if step <= 0 {
		step = defaultStep
	}
	m := Model{
		engine:     e,
		settings:   opts.Settings,
		step:       step,
		view:       e.View(),
		nowPlaying: components.NewNowPlaying(),
		service:    components.NewService(),
		keys:       defaultKeyMap(),
		help:       help.New(),
	}
	m.keys.update(m.view)
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForView(m.engine.Updates()),
		waitForNotice(m.engine.Notices()),
	}
	if m.settings != nil {
		cmds = append(cmds, fetchSettings(m.settings))
	}
	return tea.Batch(cmds...)
}

func waitForView(ch <-chan engine.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return viewMsg(v)
	}
}

func waitForNotice(ch <-chan engine.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func fetchSettings(store core.SettingsStore) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := store.FetchSettings(ctx)
		if err != nil {
			return errMsg(err)
		}
		return settingsMsg(s)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case viewMsg:
		m.view = engine.View(msg)
		m.keys.update(m.view)
		return m, waitForView(m.engine.Updates())

	case noticeMsg:
		n := engine.Notice(msg)
		m.notice, m.lastError = &n, nil
		expire := m.flash()
		return m, tea.Batch(waitForNotice(m.engine.Notices()), expire)

	case clearMsg:
		if msg.seq == m.flashSeq {
			m.notice, m.lastError = nil, nil
		}
		return m, nil

	case settingsMsg:
		s := core.Settings(msg)
		m.speaker = &s
		return m, nil

	case errMsg:
		m.notice, m.lastError = nil, msg
		expire := m.flash()
		return m, expire
	}

	return m, nil
}

// flash starts the timer that clears the status bar message.
func (m *Model) flash() tea.Cmd {
	m.flashSeq++
	seq := m.flashSeq
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg { return clearMsg{seq: seq} })
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Help), msg.String() == "esc":
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Tab):
		m.focusedPanel = (m.focusedPanel + 1) % 2
	case key.Matches(msg, m.keys.Refresh):
		m.engine.Refresh()
	case key.Matches(msg, m.keys.PlayPause):
		return m, m.dispatch(engine.CommandPlayPause)
	case key.Matches(msg, m.keys.Next):
		return m, m.dispatch(engine.CommandNext)
	case key.Matches(msg, m.keys.Previous):
		return m, m.dispatch(engine.CommandPrevious)
	case key.Matches(msg, m.keys.Restart):
		return m, m.dispatch(engine.CommandRestart)
	case key.Matches(msg, m.keys.ToggleService):
		return m, m.do(m.engine.ToggleService)
	case key.Matches(msg, m.keys.Autostart):
		return m, m.do(m.engine.ToggleAutostart)
	case key.Matches(msg, m.keys.VolumeUp):
		return m, m.nudge(m.step)
	case key.Matches(msg, m.keys.VolumeDown):
		return m, m.nudge(-m.step)
	}
	return m, nil
}

func (m Model) dispatch(cmd engine.Command) tea.Cmd {
	return m.do(func() error { return m.engine.Dispatch(cmd) })
}

func (m Model) nudge(delta int) tea.Cmd {
	return m.do(func() error { return m.engine.NudgeVolume(delta) })
}

// do runs fn off the update loop. Outcomes of accepted commands arrive as
// notices; only rejections come back here.
func (m Model) do(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil && !errors.Is(err, engine.ErrClosed) {
			return errMsg(err)
		}
		return nil
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth
	height := max(m.height-3, 8)

	nowPlaying := m.nowPlaying.Render(m.view, leftWidth-2, height, m.focusedPanel == PanelNowPlaying)
	service := m.service.Render(m.view, m.speaker, rightWidth-2, height, m.focusedPanel == PanelService)

	main := lipgloss.JoinHorizontal(lipgloss.Top, nowPlaying, service)
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	var status string
	switch {
	case m.lastError != nil:
		status = styles.Failure.Render("Error: " + m.lastError.Error())
	case m.notice != nil && m.notice.Level == engine.NoticeFailure:
		status = styles.Failure.Render(m.notice.Text)
	case m.notice != nil:
		status = styles.Playing.Render(m.notice.Text)
	default:
		status = m.renderKeys()
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

// renderKeys lists the short bindings, striking through the ones that are
// unavailable right now.
func (m Model) renderKeys() string {
	disabled := styles.Label.Strikethrough(true)
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		text := h.Key + ":" + h.Desc
		if b.Enabled() {
			parts = append(parts, styles.Dim.Render(text))
		} else {
			parts = append(parts, disabled.Render(text))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.Highlight.Render("spotpanel - Keyboard Shortcuts"),
		"",
		h.View(m.keys),
		"",
		styles.Dim.Render("Unavailable keys are hidden. Press ? or Esc to close"),
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Padding(1, 2).Render(content))
}

// Run runs e and the panel until the user quits or ctx is done.
func Run(ctx context.Context, e *engine.Engine, opts Options) error {
	if err := styles.SetTheme(opts.Theme); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(runCtx) }()

	p := tea.NewProgram(NewModel(e, opts), tea.WithAltScreen(), tea.WithContext(runCtx))
	_, err := p.Run()

	cancel()
	<-done
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
