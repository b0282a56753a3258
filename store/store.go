package store

import (
	"errors"
	"io"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/gloworm-vision/gloworm-led/led"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// LEDSettings are the per-LED settings changed at runtime that should
// survive a restart.
type LEDSettings struct {
	Polarity led.Polarity `json:"polarity"`
}

// Store describes a persistent storage engine for gloworm-led information.
type Store interface {
	HardwareConfig() (hardware.Config, error)
	PutHardwareConfig(h hardware.Config) error

	LEDSettings(name string) (LEDSettings, error)
	ListLEDSettings() (map[string]LEDSettings, error)
	PutLEDSettings(name string, s LEDSettings) error

	io.Closer
}

// ApplySettings returns a copy of config with the stored settings of each
// LED applied on top.
func ApplySettings(config hardware.Config, settings map[string]LEDSettings) hardware.Config {
	leds := make([]hardware.LEDConfig, len(config.LEDs))
	copy(leds, config.LEDs)

	for i := range leds {
		if s, ok := settings[leds[i].Name]; ok {
			leds[i].Polarity = s.Polarity
		}
	}

	config.LEDs = leds
	return config
}
