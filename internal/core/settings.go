package core

import (
	"errors"
	"fmt"
	"strings"
)

// DeviceType is the kind of device the speaker advertises to Spotify clients.
type DeviceType string

const (
	DeviceTypeComputer    DeviceType = "computer"
	DeviceTypeTablet      DeviceType = "tablet"
	DeviceTypeSmartphone  DeviceType = "smartphone"
	DeviceTypeSpeaker     DeviceType = "speaker"
	DeviceTypeTV          DeviceType = "t_v"
	DeviceTypeAVR         DeviceType = "a_v_r"
	DeviceTypeSTB         DeviceType = "s_t_b"
	DeviceTypeAudioDongle DeviceType = "audio_dongle"
	DeviceTypeGameConsole DeviceType = "game-console"
)

// DeviceTypes lists every device type the speaker accepts.
var DeviceTypes = []DeviceType{
	DeviceTypeComputer,
	DeviceTypeTablet,
	DeviceTypeSmartphone,
	DeviceTypeSpeaker,
	DeviceTypeTV,
	DeviceTypeAVR,
	DeviceTypeSTB,
	DeviceTypeAudioDongle,
	DeviceTypeGameConsole,
}

// Bitrates lists the streaming bitrates in kbit/s.
var Bitrates = []int{96, 160, 320}

// Settings are the speaker's user-editable settings.
type Settings struct {
	SpeakerName   string     `json:"speaker_name" toml:"speaker_name"`
	Bitrate       int        `json:"bitrate" toml:"bitrate"`
	DeviceType    DeviceType `json:"device_type" toml:"device_type"`
	InitialVolume int        `json:"initial_volume" toml:"initial_volume"`
}

// DefaultSettings returns the settings a fresh speaker starts with.
func DefaultSettings() Settings {
	return Settings{
		SpeakerName:   "decky-spotify",
		Bitrate:       320,
		DeviceType:    DeviceTypeGameConsole,
		InitialVolume: 80,
	}
}

// ApplyDefaults fills zero values from DefaultSettings.
func (s *Settings) ApplyDefaults() {
	d := DefaultSettings()
	if s.SpeakerName == "" {
		s.SpeakerName = d.SpeakerName
	}
	if s.Bitrate == 0 {
		s.Bitrate = d.Bitrate
	}
	if s.DeviceType == "" {
		s.DeviceType = d.DeviceType
	}
}

// Validate checks the settings for errors.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.SpeakerName) == "" {
		errs = append(errs, errors.New("speaker_name must not be empty"))
	}
	if !validBitrate(s.Bitrate) {
		errs = append(errs, fmt.Errorf("invalid bitrate: %d (must be 96, 160, or 320)", s.Bitrate))
	}
	if !validDeviceType(s.DeviceType) {
		errs = append(errs, fmt.Errorf("invalid device_type: %s", s.DeviceType))
	}
	if s.InitialVolume < 0 || s.InitialVolume > 100 {
		errs = append(errs, errors.New("initial_volume must be between 0 and 100"))
	}
	return errors.Join(errs...)
}

func validBitrate(b int) bool {
	for _, v := range Bitrates {
		if v == b {
			return true
		}
	}
	return false
}

func validDeviceType(t DeviceType) bool {
	for _, v := range DeviceTypes {
		if v == t {
			return true
		}
	}
	return false
}
