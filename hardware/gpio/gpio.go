package gpio

import (
	"errors"
	"time"
)

// PinCount is the number of pins in a port.
const PinCount = 16

// Level describes the binary state of a GPIO pin: either LOW or HIGH.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Port identifies a bank of pins sharing a clock gate and register block.
type Port uint8

// PinMask selects one or more pins within a port, one bit per pin.
type PinMask uint16

// Mask returns the mask selecting the single pin at index pin.
func Mask(pin uint8) PinMask {
	return PinMask(1) << pin
}

type Mode int

const (
	ModeInput Mode = iota
	ModePushPullOutput
	ModeOpenDrainOutput
)

type Pull int

const (
	NoPull Pull = iota
	PullUp
	PullDown
)

type Speed int

const (
	SpeedLow Speed = iota
	SpeedMedium
	SpeedFast
	SpeedHigh
)

// PinConfig is the electrical configuration applied to a pin.
type PinConfig struct {
	Mode  Mode  `json:"mode"`
	Pull  Pull  `json:"pull"`
	Speed Speed `json:"speed"`
}

var (
	// ErrClockGated is returned when a port is accessed while its clock is off.
	ErrClockGated = errors.New("port clock is gated")
	// ErrUnknownPort is returned for ports the bank does not have.
	ErrUnknownPort = errors.New("unknown port")
)

// Configurator configures and releases pins.
type Configurator interface {
	// ConfigurePin applies cfg to every pin in mask.
	ConfigurePin(port Port, mask PinMask, cfg PinConfig) error

	// ReleasePin returns every pin in mask to its reset state (high impedance).
	ReleasePin(port Port, mask PinMask) error
}

// Writer drives output pins. Only the pins in mask are affected.
type Writer interface {
	// WritePin sets the pins to LOW or HIGH
	WritePin(port Port, mask PinMask, level Level) error

	// TogglePin inverts the pins
	TogglePin(port Port, mask PinMask) error
}

// ClockGate gates the peripheral clock of a port. It is a simple gate: it
// does not count users.
type ClockGate interface {
	EnableClock(port Port) error
	DisableClock(port Port) error
}

// Bank is a set of ports with everything needed to drive output pins on them.
type Bank interface {
	Configurator
	Writer
	ClockGate

	// Ports returns how many ports the bank has. Valid ports are [0, Ports()).
	Ports() int
}

// Inspector is implemented by banks that can report a pin's configuration.
type Inspector interface {
	// PinConfig returns the configuration of a pin, or false if it is released.
	PinConfig(port Port, pin uint8) (PinConfig, bool)
}

// Sleeper blocks the caller for a fixed duration. It is not cancellable.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(d time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// SystemSleeper sleeps with time.Sleep.
var SystemSleeper Sleeper = SleeperFunc(time.Sleep)
