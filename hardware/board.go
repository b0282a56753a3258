package hardware

import (
	"fmt"
	"io"
	"sort"

	"github.com/gloworm-vision/gloworm-led/hardware/gpio"
	"github.com/gloworm-vision/gloworm-led/led"
	"github.com/sirupsen/logrus"
)

// Board is a set of named LEDs on one GPIO bank. LEDs sharing a port share
// its clock through a gpio.SharedClock, so suspending one never gates the
// clock under another.
type Board struct {
	name   string
	bank   gpio.Bank
	clock  *gpio.SharedClock
	logger *logrus.Logger

	leds  map[string]*led.Device
	names []string
}

// compile-time checks for the capabilities a Board provides
var (
	_ Hardware         = &Board{}
	_ BinaryLight      = &Board{}
	_ StatusIndicators = &Board{}
)

// statusLEDs maps each status to the LED that shows it.
var statusLEDs = map[Status]string{
	TargetAcquired: "status",
	Ready:          "ready",
}

// New opens the bank described by config and initializes every LED on it.
func New(config Config, logger *logrus.Logger) (*Board, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hardware config: %w", err)
	}

	bank, err := openBank(config.Bank)
	if err != nil {
		return nil, err
	}

	board, err := Attach(string(config.Bank.Driver), bank, config.LEDs, gpio.SystemSleeper, logger)
	if err != nil {
		if c, ok := bank.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}

	return board, nil
}

// Attach initializes the LEDs on an already open bank. If any LED fails to
// initialize, the ones already brought up are released again.
func Attach(name string, bank gpio.Bank, leds []LEDConfig, sleeper gpio.Sleeper, logger *logrus.Logger) (*Board, error) {
	b := &Board{
		name:   name,
		bank:   bank,
		clock:  gpio.NewSharedClock(bank),
		logger: logger,
		leds:   make(map[string]*led.Device, len(leds)),
	}

	for _, config := range leds {
		if _, ok := b.leds[config.Name]; ok {
			b.release()
			return nil, fmt.Errorf("duplicate led name %q", config.Name)
		}

		dev := led.New(b.clock, led.WithSleeper(sleeper), led.WithClockRelease(config.ReleaseClock))
		if err := dev.Init(config.Port, config.Pin, led.WithPolarity(config.Polarity)); err != nil {
			b.release()
			return nil, fmt.Errorf("unable to init led %q: %w", config.Name, err)
		}

		b.leds[config.Name] = dev
		b.names = append(b.names, config.Name)

		logger.WithFields(logrus.Fields{
			"led":      config.Name,
			"port":     config.Port,
			"pin":      config.Pin,
			"polarity": config.Polarity,
		}).Debug("led initialized")
	}

	sort.Strings(b.names)

	return b, nil
}

func (b *Board) Name() string {
	return b.name
}

// LED returns the device with the given name.
func (b *Board) LED(name string) (*led.Device, error) {
	dev, ok := b.leds[name]
	if !ok {
		return nil, fmt.Errorf("led %q: %w", name, ErrUnknownLED)
	}
	return dev, nil
}

// Names returns the sorted names of every LED on the board.
func (b *Board) Names() []string {
	return append([]string(nil), b.names...)
}

// ClockUsers returns how many LEDs currently hold the clock of a port.
func (b *Board) ClockUsers(port gpio.Port) int {
	return b.clock.Users(port)
}

// SetLights turns every LED on the board on or off.
func (b *Board) SetLights(on bool) error {
	for _, name := range b.names {
		if err := b.leds[name].Write(led.Value(on)); err != nil {
			return fmt.Errorf("can't set led %q: %w", name, err)
		}
	}

	return nil
}

func (b *Board) SetStatus(status Status, value bool) error {
	name, ok := statusLEDs[status]
	if !ok {
		return ErrUnsupportedStatus{fmt.Errorf("status %q not implemented by %s", status, b.name)}
	}

	dev, ok := b.leds[name]
	if !ok {
		return ErrUnsupportedStatus{fmt.Errorf("status %q needs an led named %q", status, name)}
	}

	if err := dev.Write(led.Value(value)); err != nil {
		return fmt.Errorf("can't set %s led: %w", status, err)
	}

	return nil
}

// Suspend suspends (or resumes) every LED. Every LED is attempted; the first
// error is returned.
func (b *Board) Suspend(enter bool) error {
	var first error
	for _, name := range b.names {
		if err := b.leds[name].Suspend(enter); err != nil {
			b.logger.WithField("led", name).WithError(err).Warn("unable to change suspend state")
			if first == nil {
				first = fmt.Errorf("led %q: %w", name, err)
			}
		}
	}

	return first
}

// Close turns every LED off, releases their pins and closes the bank.
func (b *Board) Close() error {
	err := b.release()

	if c, ok := b.bank.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("unable to close gpio bank: %w", cerr)
		}
	}

	return err
}

func (b *Board) release() error {
	var first error
	for name, dev := range b.leds {
		if s := dev.State(); s != led.Active && s != led.Suspended {
			continue
		}

		if err := dev.DeInit(); err != nil {
			b.logger.WithField("led", name).WithError(err).Warn("unable to release led")
			if first == nil {
				first = fmt.Errorf("unable to release led %q: %w", name, err)
			}
		}
	}

	return first
}
