package radio

import "fmt"

// ModemPreset is the LoRa modem preset configured on the radio.
type ModemPreset int32

// Modem presets as numbered in config.proto.
const (
	PresetLongFast     ModemPreset = 0
	PresetLongSlow     ModemPreset = 1
	PresetVeryLongSlow ModemPreset = 2
	PresetMediumSlow   ModemPreset = 3
	PresetMediumFast   ModemPreset = 4
	PresetShortSlow    ModemPreset = 5
	PresetShortFast    ModemPreset = 6
	PresetLongModerate ModemPreset = 7
	PresetShortTurbo   ModemPreset = 8
)

var presetNames = map[ModemPreset]string{
	PresetLongFast:     "LONG_FAST",
	PresetLongSlow:     "LONG_SLOW",
	PresetVeryLongSlow: "VERY_LONG_SLOW",
	PresetMediumSlow:   "MEDIUM_SLOW",
	PresetMediumFast:   "MEDIUM_FAST",
	PresetShortSlow:    "SHORT_SLOW",
	PresetShortFast:    "SHORT_FAST",
	PresetLongModerate: "LONG_MODERATE",
	PresetShortTurbo:   "SHORT_TURBO",
}

// String returns the firmware identifier, e.g. "LONG_FAST".
func (p ModemPreset) String() string {
	if name, ok := presetNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PRESET_%d", int32(p))
}
