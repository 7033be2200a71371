package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show speaker and playback status",
	Long: `Shows whether the speaker service is running, whether it starts on
login, what is playing and the speaker's settings. Parts that cannot be
fetched are reported without failing the rest.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Service    *core.ServiceState `json:"service,omitempty"`
	NowPlaying *core.NowPlaying   `json:"now_playing,omitempty"`
	Settings   *core.Settings     `json:"settings,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	log, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	remote, err := newRemote(log)
	if err != nil {
		return err
	}

	result := collectStatus(cmd.Context(), remote)
	if result.Data.Service == nil && result.HasErrors() {
		return result.Errors[0]
	}

	report := result.Data
	for _, err := range result.Errors {
		report.Errors = append(report.Errors, err.Error())
	}

	if JSONOutput() {
		return printJSON(report)
	}
	renderStatus(os.Stdout, report)
	if result.HasErrors() && Verbose() {
		fmt.Fprintln(os.Stderr, result.ErrorSummary())
	}
	return nil
}

// collectStatus fetches every part of the status. The now playing snapshot
// is only requested while the service runs.
func collectStatus(ctx context.Context, remote core.Remote) *panelerrors.PartialResult[statusReport] {
	result := &panelerrors.PartialResult[statusReport]{}

	st, err := remote.FetchServiceState(ctx)
	if err != nil {
		result.AddError(fmt.Errorf("service: %w", err))
	} else {
		result.Data.Service = &st
	}

	if st.Running {
		np, err := remote.FetchNowPlaying(ctx)
		if err != nil {
			result.AddError(fmt.Errorf("now playing: %w", err))
		} else {
			result.Data.NowPlaying = &np
		}
	}

	settings, err := remote.FetchSettings(ctx)
	if err != nil {
		result.AddError(fmt.Errorf("settings: %w", err))
	} else {
		result.Data.Settings = &settings
	}

	return result
}

func renderStatus(w io.Writer, r statusReport) {
	t := NewTableWriter(w)

	if st := r.Service; st != nil {
		state := "stopped"
		if st.Running {
			state = "running"
		}
		if st.Name != "" {
			state += " (" + st.Name + ")"
		}
		t.Row("Speaker", StatusIcon(st.Running)+" "+state)

		autostart := "disabled"
		if st.Enabled {
			autostart = "enabled"
		}
		t.Row("Autostart", StatusIcon(st.Enabled)+" "+autostart)
	}

	if np := r.NowPlaying; np != nil {
		switch {
		case !np.Connected:
			t.Row("Client", "none connected")
		case np.Track == nil:
			t.Row("Client", "connected")
			t.Row("Track", "nothing playing")
		default:
			icon := "⏸"
			if np.Phase == core.PhasePlaying {
				icon = "▶"
			}
			t.Row("Client", "connected")
			t.Row("Track", icon+" "+np.Track.Name)
			t.Row("", strings.Join(np.Track.Artists, ", ")+" — "+np.Track.Album)
			t.Row("", fmt.Sprintf("%s %s / %s",
				FormatProgress(np.PositionMs, np.Track.DurationMs, 30),
				FormatDuration(np.PositionMs),
				FormatDuration(np.Track.DurationMs)))
		}
		if np.Connected {
			t.Row("Volume", fmt.Sprintf("%d%%", np.VolumePercent()))
		}
	}

	if s := r.Settings; s != nil {
		t.Row("Name", fmt.Sprintf("%s (%s, %s)", s.SpeakerName, s.DeviceType, formatBitrate(s.Bitrate)))
		t.Row("Initial vol", fmt.Sprintf("%d%%", s.InitialVolume))
	}

	for _, e := range r.Errors {
		t.Row("Error", e)
	}
	t.Flush()
}

// formatBitrate renders kbit/s the way humans read it, e.g. "320 kbit/s".
func formatBitrate(kbps int) string {
	return humanize.SI(float64(kbps)*1000, "bit/s")
}
