// Package led drives a single GPIO line used as an indicator LED.
//
// A Device composes the pin configuration, pin I/O and clock-gating
// capabilities of a gpio.Bank into one object with a small state machine:
//
//	Uninitialized -> Active <-> Suspended
//	Active, Suspended -> Released -> Active (re-Init)
//
// Every public operation takes the device's guard for its whole duration. The
// guard is a flag, not a lock: a caller that finds it held gets
// ErrConcurrentAccess straight away and nothing is written to the hardware.
// Devices never log; errors are returned to the caller.
package led

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gloworm-vision/gloworm-led/hardware/gpio"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotConfigured     = errors.New("led not configured")
	ErrConcurrentAccess  = errors.New("led busy with another operation")
	ErrAlreadyConfigured = errors.New("led already configured")
)

// State is the lifecycle state of a Device.
type State int32

const (
	Uninitialized State = iota
	Active
	Suspended
	Released
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Value is the logical state of the LED.
type Value bool

const (
	Off Value = false
	On  Value = true
)

// DefaultPinConfig is the configuration applied to the pin at Init.
var DefaultPinConfig = gpio.PinConfig{
	Mode:  gpio.ModePushPullOutput,
	Pull:  gpio.NoPull,
	Speed: gpio.SpeedFast,
}

// Device is one LED bound to one pin of one port. The zero value is not
// usable; create devices with New.
type Device struct {
	bank         gpio.Bank
	sleeper      gpio.Sleeper
	releaseClock bool

	guard atomic.Bool

	// written only while the guard is held
	port  gpio.Port
	pin   uint8
	saved gpio.PinConfig

	// read by the accessors without the guard
	state    atomic.Int32
	polarity atomic.Int32
	portPin  atomic.Uint32
}

// Option configures a Device at construction.
type Option func(*Device)

// WithSleeper sets the delay service used by Blink. Defaults to
// gpio.SystemSleeper.
func WithSleeper(s gpio.Sleeper) Option {
	return func(d *Device) {
		d.sleeper = s
	}
}

// WithClockRelease makes DeInit gate the port clock after releasing the pin.
// By default the clock is left running, since other users of the port may
// still need it.
func WithClockRelease(release bool) Option {
	return func(d *Device) {
		d.releaseClock = release
	}
}

// New creates an uninitialized device on bank.
func New(bank gpio.Bank, opts ...Option) *Device {
	d := &Device{
		bank:    bank,
		sleeper: gpio.SystemSleeper,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// InitOption configures a single Init call.
type InitOption func(*initOptions)

type initOptions struct {
	polarity Polarity
}

// WithPolarity initializes the device with p instead of ActiveHigh.
func WithPolarity(p Polarity) InitOption {
	return func(o *initOptions) {
		o.polarity = p
	}
}

func (d *Device) acquire() error {
	if !d.guard.CompareAndSwap(false, true) {
		return ErrConcurrentAccess
	}
	return nil
}

func (d *Device) release() {
	d.guard.Store(false)
}

// State returns the lifecycle state of the device.
func (d *Device) State() State {
	return State(d.state.Load())
}

// Polarity returns the active mode the device writes with.
func (d *Device) Polarity() Polarity {
	return Polarity(d.polarity.Load())
}

// Port returns the port the device was initialized on.
func (d *Device) Port() gpio.Port {
	return gpio.Port(d.portPin.Load() >> 8)
}

// Pin returns the pin index the device was initialized on.
func (d *Device) Pin() uint8 {
	return uint8(d.portPin.Load())
}

// Init binds the device to a pin, enables the port clock, configures the pin
// as a push-pull output and drives it to logical off.
//
// Init fails with ErrInvalidArgument, without touching the hardware, if pin or
// port is out of range. Calling Init on a device that is Active or Suspended
// fails with ErrAlreadyConfigured; DeInit it first. If the hardware rejects the
// configuration the clock is gated again and the device stays as it was.
func (d *Device) Init(port gpio.Port, pin uint8, opts ...InitOption) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	o := initOptions{polarity: ActiveHigh}
	for _, opt := range opts {
		opt(&o)
	}

	if pin >= gpio.PinCount {
		return fmt.Errorf("pin %d out of range [0, %d): %w", pin, gpio.PinCount, ErrInvalidArgument)
	}
	if int(port) >= d.bank.Ports() {
		return fmt.Errorf("port %d not present on bank: %w", port, ErrInvalidArgument)
	}
	if !o.polarity.valid() {
		return fmt.Errorf("polarity %d: %w", o.polarity, ErrInvalidArgument)
	}

	if s := d.State(); s == Active || s == Suspended {
		return fmt.Errorf("led is %s: %w", s, ErrAlreadyConfigured)
	}

	if err := d.bank.EnableClock(port); err != nil {
		return fmt.Errorf("unable to enable port %d clock: %w", port, err)
	}

	if err := d.bank.ConfigurePin(port, gpio.Mask(pin), DefaultPinConfig); err != nil {
		d.bank.DisableClock(port)
		return fmt.Errorf("unable to configure pin %d: %w", pin, err)
	}

	off := o.polarity.level(Off)
	if err := d.bank.WritePin(port, gpio.Mask(pin), off); err != nil {
		d.bank.ReleasePin(port, gpio.Mask(pin))
		d.bank.DisableClock(port)
		return fmt.Errorf("unable to turn led off: %w", err)
	}

	d.port = port
	d.pin = pin
	d.saved = DefaultPinConfig
	d.portPin.Store(uint32(port)<<8 | uint32(pin))
	d.polarity.Store(int32(o.polarity))
	d.state.Store(int32(Active))

	return nil
}

// DeInit turns the LED off and releases the pin. A suspended device has
// already released its pin and clock and is simply marked Released.
func (d *Device) DeInit() error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	switch s := d.State(); s {
	case Suspended:
		d.state.Store(int32(Released))
		return nil
	case Active:
	default:
		return fmt.Errorf("led is %s: %w", s, ErrNotConfigured)
	}

	if err := d.write(Off); err != nil {
		return err
	}

	if err := d.bank.ReleasePin(d.port, gpio.Mask(d.pin)); err != nil {
		return fmt.Errorf("unable to release pin %d: %w", d.pin, err)
	}

	d.state.Store(int32(Released))

	if d.releaseClock {
		if err := d.bank.DisableClock(d.port); err != nil {
			return fmt.Errorf("unable to disable port %d clock: %w", d.port, err)
		}
	}

	return nil
}

// Suspend tears the pin and port clock down when enter is true and restores
// them when enter is false. A resumed LED is driven to logical off, so it
// never lights up just because the restored output defaults to the active
// level. Suspending a suspended device, or resuming an active one, does
// nothing.
func (d *Device) Suspend(enter bool) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	s := d.State()
	if s != Active && s != Suspended {
		return fmt.Errorf("led is %s: %w", s, ErrNotConfigured)
	}

	if enter {
		if s == Suspended {
			return nil
		}
		return d.suspend()
	}

	if s == Active {
		return nil
	}
	return d.resume()
}

func (d *Device) suspend() error {
	if err := d.write(Off); err != nil {
		return err
	}

	if err := d.bank.ReleasePin(d.port, gpio.Mask(d.pin)); err != nil {
		return fmt.Errorf("unable to release pin %d: %w", d.pin, err)
	}

	d.state.Store(int32(Suspended))

	if err := d.bank.DisableClock(d.port); err != nil {
		return fmt.Errorf("unable to disable port %d clock: %w", d.port, err)
	}

	return nil
}

func (d *Device) resume() error {
	if err := d.bank.EnableClock(d.port); err != nil {
		return fmt.Errorf("unable to enable port %d clock: %w", d.port, err)
	}

	if err := d.bank.ConfigurePin(d.port, gpio.Mask(d.pin), d.saved); err != nil {
		d.bank.DisableClock(d.port)
		return fmt.Errorf("unable to configure pin %d: %w", d.pin, err)
	}

	d.state.Store(int32(Active))

	return d.write(Off)
}

// SetActiveMode changes how logical on and off map to line levels for every
// later Write and Blink. It does not touch the hardware.
func (d *Device) SetActiveMode(p Polarity) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	if !p.valid() {
		return fmt.Errorf("polarity %d: %w", p, ErrInvalidArgument)
	}
	if err := d.checkActive(); err != nil {
		return err
	}

	d.polarity.Store(int32(p))
	return nil
}

// Write sets the logical state of the LED.
func (d *Device) Write(v Value) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	if err := d.checkActive(); err != nil {
		return err
	}

	return d.write(v)
}

// Toggle inverts the line. Inverting the line inverts the logical state under
// either polarity, so polarity is not consulted.
func (d *Device) Toggle() error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	if err := d.checkActive(); err != nil {
		return err
	}

	if err := d.bank.TogglePin(d.port, gpio.Mask(d.pin)); err != nil {
		return fmt.Errorf("unable to toggle pin %d: %w", d.pin, err)
	}

	return nil
}

// Blink turns the LED on for on, then off for off. The device stays busy for
// the whole sequence and it cannot be interrupted. A zero off skips the
// trailing delay.
func (d *Device) Blink(on, off time.Duration) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	if on < 0 || off < 0 {
		return fmt.Errorf("negative blink duration: %w", ErrInvalidArgument)
	}
	if err := d.checkActive(); err != nil {
		return err
	}

	if err := d.write(On); err != nil {
		return err
	}
	d.sleeper.Sleep(on)

	if err := d.write(Off); err != nil {
		return err
	}
	if off > 0 {
		d.sleeper.Sleep(off)
	}

	return nil
}

func (d *Device) checkActive() error {
	if s := d.State(); s != Active {
		return fmt.Errorf("led is %s: %w", s, ErrNotConfigured)
	}
	return nil
}

// write drives the line for v under the current polarity. The guard must be
// held.
func (d *Device) write(v Value) error {
	level := d.Polarity().level(v)
	if err := d.bank.WritePin(d.port, gpio.Mask(d.pin), level); err != nil {
		return fmt.Errorf("unable to write pin %d: %w", d.pin, err)
	}
	return nil
}
