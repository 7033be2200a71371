package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"

	"github.com/tessro/spotpanel/internal/config"
	"github.com/tessro/spotpanel/internal/core"
)

// SettingsForm edits s in place. The initial volume is edited as text and
// stored back once it validates.
func SettingsForm(s *core.Settings) *huh.Form {
	volume := strconv.Itoa(s.InitialVolume)

	deviceTypes := make([]huh.Option[core.DeviceType], 0, len(core.DeviceTypes))
	for _, t := range core.DeviceTypes {
		deviceTypes = append(deviceTypes, huh.NewOption(DeviceTypeLabel(t), t))
	}
	bitrates := make([]huh.Option[int], 0, len(core.Bitrates))
	for _, b := range core.Bitrates {
		bitrates = append(bitrates, huh.NewOption(humanize.SI(float64(b)*1000, "bit/s"), b))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Speaker name").
				Description("Shown in the Spotify device list").
				Value(&s.SpeakerName).
				Validate(validateName),
			huh.NewSelect[int]().
				Title("Bitrate").
				Options(bitrates...).
				Value(&s.Bitrate),
			huh.NewSelect[core.DeviceType]().
				Title("Device type").
				Description("Decides the icon Spotify apps show").
				Options(deviceTypes...).
				Value(&s.DeviceType),
			huh.NewInput().
				Title("Initial volume").
				Description("0-100").
				Value(&volume).
				Validate(func(v string) error {
					n, err := ParseVolume(v)
					if err != nil {
						return err
					}
					s.InitialVolume = n
					return nil
				}),
		),
	)
}

// ConfigForm asks how to reach the speaker. The agent address is only asked
// for with the http transport.
func ConfigForm(cfg *config.Config) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How does spotpanel reach the speaker?").
				Options(
					huh.NewOption("Through a spotpanel agent (http)", "http"),
					huh.NewOption("Directly over D-Bus on this machine (local)", "local"),
				).
				Value(&cfg.Backend.Transport),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Agent address").
				Description("Where 'spotpanel agent' listens, e.g. http://steamdeck:7655").
				Value(&cfg.Backend.Address).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return fmt.Errorf("address cannot be empty")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return cfg.Backend.Transport != "http" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Speaker service").
				Description("systemd user unit running spotifyd").
				Value(&cfg.Service.Unit),
			huh.NewSelect[string]().
				Title("Panel theme").
				Options(huh.NewOptions("auto", "dark", "light")...).
				Value(&cfg.TUI.Theme),
		),
	)
}

// DeviceTypeLabel returns the human spelling of a device type.
func DeviceTypeLabel(t core.DeviceType) string {
	switch t {
	case core.DeviceTypeTV:
		return "TV"
	case core.DeviceTypeAVR:
		return "AV receiver"
	case core.DeviceTypeSTB:
		return "set-top box"
	default:
		return strings.NewReplacer("_", " ", "-", " ").Replace(string(t))
	}
}

// ParseVolume parses a 0-100 volume typed by the user.
func ParseVolume(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || n > 100 {
		return 0, fmt.Errorf("enter a number between 0 and 100")
	}
	return n, nil
}

func validateName(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}
