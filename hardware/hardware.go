package hardware

import (
	"errors"
	"fmt"

	"github.com/gloworm-vision/gloworm-led/hardware/gpio"
	"github.com/gloworm-vision/gloworm-led/led"
)

// Hardware defines a common interface for hardware gloworm-led can run on
//
// Because not all hardware has status LEDs, or a light cluster at all, this is
// a fairly minimal interface. Most of the time this interface should be type
// asserted to a more specific interface. For example, you can assert to the
// BinaryLight interface for on/off control of every LED on the board.
type Hardware interface {
	Name() string
}

// BinaryLight describes hardware with an LED cluster that can be toggled on/off
type BinaryLight interface {
	// SetLights turns the LED cluster on or off
	SetLights(on bool) error
}

// Status defines a list of statuses that can be indicated in various ways by different
// hardware
type Status int

const (
	// TargetAcquired is true when something is being tracked.
	TargetAcquired Status = iota
	// Ready is true when the board is up and idle.
	Ready
)

func (s Status) String() string {
	switch s {
	case TargetAcquired:
		return "target-acquired"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus parses the String form of a Status.
func ParseStatus(s string) (Status, error) {
	for _, status := range []Status{TargetAcquired, Ready} {
		if status.String() == s {
			return status, nil
		}
	}

	return 0, ErrUnsupportedStatus{fmt.Errorf("unknown status %q", s)}
}

type ErrUnsupportedStatus struct {
	error
}

func (err ErrUnsupportedStatus) Is(target error) bool {
	_, ok := target.(ErrUnsupportedStatus)
	return ok
}

// StatusIndicators describes hardware with one or more status indicators
type StatusIndicators interface {
	// SetStatus sets a status on or off. If the underlying hardware can't indicate this
	// status, it should return an ErrUnsupportedStatus error.
	SetStatus(status Status, value bool) error
}

// ErrUnknownLED is returned when a board has no LED with the requested name.
var ErrUnknownLED = errors.New("unknown led")

// Driver names the GPIO backend of a board.
type Driver string

const (
	DriverSim    Driver = "sim"
	DriverPigpio Driver = "pigpio"
)

// BankConfig selects and configures the GPIO backend.
type BankConfig struct {
	Driver Driver `json:"driver" toml:"driver"`

	// PigpioAddr is the pigpio socket address, used by DriverPigpio.
	PigpioAddr string `json:"pigpioAddr,omitempty" toml:"pigpio_addr"`

	// Ports is the number of simulated ports, used by DriverSim.
	Ports int `json:"ports,omitempty" toml:"ports"`
}

// LEDConfig binds a named LED to a pin.
type LEDConfig struct {
	Name     string       `json:"name" toml:"name"`
	Port     gpio.Port    `json:"port" toml:"port"`
	Pin      uint8        `json:"pin" toml:"pin"`
	Polarity led.Polarity `json:"polarity" toml:"polarity"`

	// ReleaseClock gates the port clock when the LED is released.
	ReleaseClock bool `json:"releaseClock,omitempty" toml:"release_clock"`
}

// Config describes a board: its GPIO backend and the LEDs wired to it.
type Config struct {
	Bank BankConfig  `json:"bank" toml:"bank"`
	LEDs []LEDConfig `json:"leds" toml:"leds"`
}

// Validate checks the config for problems that can be found without
// touching the hardware.
func (c Config) Validate() error {
	switch c.Bank.Driver {
	case DriverSim:
	case DriverPigpio:
		if c.Bank.PigpioAddr == "" {
			return fmt.Errorf("pigpio driver needs an address")
		}
	default:
		return fmt.Errorf("unknown gpio driver %q", c.Bank.Driver)
	}

	seen := make(map[string]bool, len(c.LEDs))
	for _, l := range c.LEDs {
		if l.Name == "" {
			return fmt.Errorf("led on port %d pin %d has no name", l.Port, l.Pin)
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate led name %q", l.Name)
		}
		seen[l.Name] = true
	}

	return nil
}

const defaultSimPorts = 8

func openBank(config BankConfig) (gpio.Bank, error) {
	switch config.Driver {
	case DriverSim:
		ports := config.Ports
		if ports <= 0 {
			ports = defaultSimPorts
		}
		return gpio.NewSim(ports), nil
	case DriverPigpio:
		g, err := gpio.DialPigpio(config.PigpioAddr)
		if err != nil {
			return nil, fmt.Errorf("unable to dial pigpio to setup gpio: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown gpio driver %q", config.Driver)
	}
}
