package led

import (
	"fmt"

	"github.com/gloworm-vision/gloworm-led/hardware/gpio"
)

// Polarity maps the logical state of an LED to a line level.
type Polarity int32

const (
	// ActiveHigh LEDs light when the line is high.
	ActiveHigh Polarity = iota
	// ActiveLow LEDs light when the line is low, e.g. when sinking current
	// into the pin.
	ActiveLow
)

func (p Polarity) valid() bool {
	return p == ActiveHigh || p == ActiveLow
}

func (p Polarity) level(v Value) gpio.Level {
	if p == ActiveLow {
		return gpio.Level(!v)
	}
	return gpio.Level(v)
}

func (p Polarity) String() string {
	switch p {
	case ActiveHigh:
		return "active-high"
	case ActiveLow:
		return "active-low"
	default:
		return fmt.Sprintf("Polarity(%d)", int32(p))
	}
}

// ParsePolarity parses the String form of a polarity.
func ParsePolarity(s string) (Polarity, error) {
	switch s {
	case "active-high", "high", "":
		return ActiveHigh, nil
	case "active-low", "low":
		return ActiveLow, nil
	default:
		return 0, fmt.Errorf("unknown polarity %q: %w", s, ErrInvalidArgument)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Polarity) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("polarity %d: %w", int32(p), ErrInvalidArgument)
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Polarity) UnmarshalText(text []byte) error {
	parsed, err := ParsePolarity(string(text))
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}
