package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tessro/spotpanel/internal/core"
	"github.com/tessro/spotpanel/internal/engine"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// commandSpec describes a one-shot command and how its success is reported.
type commandSpec struct {
	use     string
	short   string
	command engine.Command
	status  string
	message string
}

var commandSpecs = []commandSpec{
	{"start", "Start the speaker service", engine.CommandStart, "started", "● Speaker started"},
	{"stop", "Stop the speaker service", engine.CommandStop, "stopped", "○ Speaker stopped"},
	{"restart", "Restart the speaker service", engine.CommandRestart, "restarted", "● Speaker restarted"},
	{"enable", "Start the speaker on login", engine.CommandEnable, "enabled", "Speaker will start on login"},
	{"disable", "Stop starting the speaker on login", engine.CommandDisable, "disabled", "Speaker will no longer start on login"},
	{"play-pause", "Toggle playback", engine.CommandPlayPause, "toggled", "⏯ Playback toggled"},
	{"next", "Skip to next track", engine.CommandNext, "skipped", "⏭ Skipped to next track"},
	{"prev", "Go to previous track", engine.CommandPrevious, "previous", "⏮ Back to previous track"},
}

var (
	volumeUp   bool
	volumeDown bool
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set or adjust volume",
	Long: `Show the speaker volume, set it (0-100) or adjust it up/down by
tui.volume_step.

Examples:
  spotpanel volume         # Show the current volume
  spotpanel volume 50      # Set volume to 50%
  spotpanel volume --up    # Increase volume by one step
  spotpanel volume --down  # Decrease volume by one step`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

func init() {
	for _, spec := range commandSpecs {
		rootCmd.AddCommand(newCommand(spec))
	}

	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "Increase volume by one step")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "Decrease volume by one step")
	volumeCmd.MarkFlagsMutuallyExclusive("up", "down")
	rootCmd.AddCommand(volumeCmd)
}

func newCommand(spec commandSpec) *cobra.Command {
	return &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			remote, err := newRemote(log)
			if err != nil {
				return err
			}
			if err := engine.Exec(cmd.Context(), remote, spec.command); err != nil {
				return fmt.Errorf("%s failed: %w", spec.use, err)
			}
			return printOutcome(spec.status, spec.message)
		},
	}
}

func runVolume(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && (volumeUp || volumeDown) {
		return fmt.Errorf("give either a level or --up/--down")
	}

	log, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	remote, err := newRemote(log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	np, err := remote.FetchNowPlaying(ctx)
	if err != nil {
		return err
	}
	if !np.Connected {
		return panelerrors.ErrNotConnected
	}
	current := np.VolumePercent()

	if len(args) == 0 && !volumeUp && !volumeDown {
		if JSONOutput() {
			return printJSON(map[string]int{"volume": current})
		}
		fmt.Printf("🔊 Volume: %d%%\n", current)
		return nil
	}

	target, err := volumeTarget(current, args, cfg.TUI.VolumeStep, volumeUp, volumeDown)
	if err != nil {
		return err
	}

	ok, err := remote.SetVolume(ctx, float64(target)/100)
	if err := panelerrors.Result("set volume", ok, err); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]int{"volume": target})
	}
	fmt.Printf("🔊 Volume: %d%%\n", target)
	return nil
}

// volumeTarget resolves the requested volume from an explicit level or the
// --up/--down flags. With neither it returns current.
func volumeTarget(current int, args []string, step int, up, down bool) (int, error) {
	switch {
	case len(args) > 0:
		level, err := strconv.Atoi(args[0])
		if err != nil || level < 0 || level > 100 {
			return 0, fmt.Errorf("volume must be a number between 0 and 100, got %q", args[0])
		}
		return level, nil
	case up:
		return core.ClampPercent(current + step), nil
	case down:
		return core.ClampPercent(current - step), nil
	default:
		return current, nil
	}
}
