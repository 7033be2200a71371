package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessro/spotpanel/internal/engine"
	"github.com/tessro/spotpanel/internal/tui"
)

var tuiTheme string

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"ui"},
	Short:   "Launch the interactive panel",
	Long: `Launch the interactive terminal panel.

The panel shows:
  • Now Playing - track, live progress and volume
  • Speaker - service state, autostart and commands in flight

Keyboard shortcuts:
  Space        Play/Pause
  n / p        Next / previous track
  + / -        Volume up / down
  s            Start/stop the speaker
  R            Restart the speaker
  a            Toggle autostart
  r            Refresh
  ?            Help
  q, Ctrl+C    Quit

Logs go to log.file; without one they are discarded while the panel runs.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiTheme, "theme", "", "colour theme: auto, dark or light (default: tui.theme)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	log, err := newLogger(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	remote, err := newRemote(log)
	if err != nil {
		return err
	}

	theme := cfg.TUI.Theme
	if tuiTheme != "" {
		theme = tuiTheme
	}

	e := engine.New(remote, engineOptions(log))
	return tui.Run(cmd.Context(), e, tui.Options{
		Theme:      theme,
		VolumeStep: cfg.TUI.VolumeStep,
		Settings:   remote,
	})
}
