package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
	"github.com/tessro/spotpanel/internal/wizard"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage speaker settings",
	Long: `Commands for viewing and editing the speaker's settings: the name Spotify
apps show, the streaming bitrate, the device type and the initial volume.

Saving restarts the speaker if it is running so the new settings apply.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show speaker settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit speaker settings interactively",
	Args:  cobra.NoArgs,
	RunE:  runSettingsEdit,
}

var (
	setName          string
	setBitrate       int
	setDeviceType    string
	setInitialVolume int
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change speaker settings",
	Long: `Change one or more speaker settings. Settings without a flag keep their
current value. Without any flags on a terminal, the settings form opens.

Examples:
  spotpanel settings set --name "Living Room Deck"
  spotpanel settings set --bitrate 160 --initial-volume 60`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

func init() {
	settingsSetCmd.Flags().StringVar(&setName, "name", "", "speaker name shown in Spotify")
	settingsSetCmd.Flags().IntVar(&setBitrate, "bitrate", 0, "bitrate in kbit/s (96, 160 or 320)")
	settingsSetCmd.Flags().StringVar(&setDeviceType, "device-type", "", "device type, e.g. speaker or game-console")
	settingsSetCmd.Flags().IntVar(&setInitialVolume, "initial-volume", 0, "volume the speaker starts at (0-100)")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEditCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsStore() (core.SettingsStore, func(), error) {
	log, err := newLogger(false)
	if err != nil {
		return nil, nil, err
	}
	remote, err := newRemote(log)
	if err != nil {
		return nil, nil, err
	}
	return remote, func() { _ = log.Sync() }, nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	store, done, err := settingsStore()
	if err != nil {
		return err
	}
	defer done()

	s, err := store.FetchSettings(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(s)
	}
	printSettings(s)
	return nil
}

func printSettings(s core.Settings) {
	t := NewTable()
	t.Row("Name", s.SpeakerName)
	t.Row("Bitrate", formatBitrate(s.Bitrate))
	t.Row("Device type", wizard.DeviceTypeLabel(s.DeviceType))
	t.Row("Initial volume", fmt.Sprintf("%d%%", s.InitialVolume))
	t.Flush()
}

func runSettingsEdit(cmd *cobra.Command, args []string) error {
	store, done, err := settingsStore()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	s, err := store.FetchSettings(ctx)
	if err != nil {
		return err
	}

	ok, err := wizard.NewInteractive().PromptSettings(ctx, &s)
	if err != nil {
		return fmt.Errorf("edit cancelled: %w", err)
	}
	if !ok {
		return fmt.Errorf("settings edit needs a terminal; use 'spotpanel settings set' instead")
	}
	return saveSettings(ctx, store, s)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("name") && !flags.Changed("bitrate") &&
		!flags.Changed("device-type") && !flags.Changed("initial-volume") {
		if wizard.NewInteractive().CanInteract() {
			return runSettingsEdit(cmd, args)
		}
		return fmt.Errorf("nothing to set; see 'spotpanel settings set --help'")
	}

	store, done, err := settingsStore()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	s, err := store.FetchSettings(ctx)
	if err != nil {
		return err
	}

	if flags.Changed("name") {
		s.SpeakerName = setName
	}
	if flags.Changed("bitrate") {
		s.Bitrate = setBitrate
	}
	if flags.Changed("device-type") {
		s.DeviceType = core.DeviceType(setDeviceType)
	}
	if flags.Changed("initial-volume") {
		s.InitialVolume = setInitialVolume
	}
	return saveSettings(ctx, store, s)
}

// saveSettings validates locally before sending so mistakes are reported
// with the reason instead of a bare rejection.
func saveSettings(ctx context.Context, store core.SettingsStore, s core.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", panelerrors.ErrInvalidSettings, err)
	}

	ok, err := store.SaveSettings(ctx, s)
	if err := panelerrors.Result("save settings", ok, err); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]any{"status": "saved", "settings": s})
	}
	fmt.Fprintln(os.Stdout, "✓ Settings saved")
	printSettings(s)
	return nil
}
