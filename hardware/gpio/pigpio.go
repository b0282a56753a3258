package gpio

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
)

// pigpioLines is the number of user GPIO lines the pigpio daemon exposes.
const pigpioLines = 54

// Pigpio is used for controlling GPIO over the pigpio socket interface.
//
// Port p, pin i maps to BCM line p*PinCount+i. The Pi has no per-port clock
// gates, so EnableClock and DisableClock only validate the port.
type Pigpio struct {
	conn net.Conn
	mu   sync.Mutex
}

// compile-time check for whether Pigpio satisfies the Bank interface
var (
	_ Bank      = &Pigpio{}
	_ Inspector = &Pigpio{}
)

// DialPigpio dials into the pigpio socket interface (normally running on port 8888)
func DialPigpio(addr string) (*Pigpio, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("couldn't dial into pigpio socket: %w", err)
	}

	return &Pigpio{conn: conn}, nil
}

// Close closes the underlying pigpio socket interface connection
func (p *Pigpio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return fmt.Errorf("connection is already closed")
	}

	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *Pigpio) Ports() int {
	return (pigpioLines + PinCount - 1) / PinCount
}

func (p *Pigpio) EnableClock(port Port) error {
	return p.checkPort(port)
}

func (p *Pigpio) DisableClock(port Port) error {
	return p.checkPort(port)
}

// ConfigurePin sets the mode and pull of each line. pigpio has no slew-rate
// control, so Speed is ignored.
func (p *Pigpio) ConfigurePin(port Port, mask PinMask, cfg PinConfig) error {
	var mode uint32
	switch cfg.Mode {
	case ModeInput:
		mode = pigpioModeInput
	case ModePushPullOutput:
		mode = pigpioModeOutput
	default:
		return fmt.Errorf("pin mode %d not supported by pigpio", cfg.Mode)
	}

	var pud uint32
	switch cfg.Pull {
	case NoPull:
		pud = pigpioPudOff
	case PullDown:
		pud = pigpioPudDown
	case PullUp:
		pud = pigpioPudUp
	}

	return p.eachLine(port, mask, func(line uint32) error {
		if _, err := p.command(modes, line, mode); err != nil {
			return fmt.Errorf("unable to set mode of gpio %d: %w", line, err)
		}
		if _, err := p.command(pudCmd, line, pud); err != nil {
			return fmt.Errorf("unable to set pull of gpio %d: %w", line, err)
		}
		return nil
	})
}

// ReleasePin returns each line to a floating input.
func (p *Pigpio) ReleasePin(port Port, mask PinMask) error {
	return p.ConfigurePin(port, mask, PinConfig{Mode: ModeInput, Pull: NoPull})
}

// WritePin sets GPIO lines to LOW or HIGH.
func (p *Pigpio) WritePin(port Port, mask PinMask, level Level) error {
	var rawLevel uint32
	if level {
		rawLevel = 1
	}

	return p.eachLine(port, mask, func(line uint32) error {
		_, err := p.command(write, line, rawLevel)
		return err
	})
}

// TogglePin reads back each line and writes the inverse.
func (p *Pigpio) TogglePin(port Port, mask PinMask) error {
	return p.eachLine(port, mask, func(line uint32) error {
		level, err := p.command(read, line, 0)
		if err != nil {
			return err
		}

		_, err = p.command(write, line, 1-level)
		return err
	})
}

// PinConfig reads back the mode of a line. Pull cannot be read from pigpio
// and is reported as NoPull.
func (p *Pigpio) PinConfig(port Port, pin uint8) (PinConfig, bool) {
	if p.checkPort(port) != nil || pin >= PinCount {
		return PinConfig{}, false
	}

	mode, err := p.command(modeg, uint32(port)*PinCount+uint32(pin), 0)
	if err != nil {
		return PinConfig{}, false
	}

	// inputs and alternate functions are not driven by us
	if mode != pigpioModeOutput {
		return PinConfig{}, false
	}

	return PinConfig{Mode: ModePushPullOutput}, true
}

func (p *Pigpio) checkPort(port Port) error {
	if int(port) >= p.Ports() {
		return fmt.Errorf("port %d: %w", port, ErrUnknownPort)
	}
	return nil
}

func (p *Pigpio) eachLine(port Port, mask PinMask, fn func(line uint32) error) error {
	if err := p.checkPort(port); err != nil {
		return err
	}

	for i := uint8(0); i < PinCount; i++ {
		if mask&Mask(i) == 0 {
			continue
		}

		line := uint32(port)*PinCount + uint32(i)
		if line >= pigpioLines {
			return fmt.Errorf("gpio %d out of range", line)
		}

		if err := fn(line); err != nil {
			return err
		}
	}

	return nil
}

type cmd struct {
	Cmd uint32
	P1  uint32
	P2  uint32
	P3  uint32
}

const (
	modes  uint32 = 0
	modeg  uint32 = 1
	pudCmd uint32 = 2
	read   uint32 = 3
	write  uint32 = 4
)

const (
	pigpioModeInput  uint32 = 0
	pigpioModeOutput uint32 = 1

	pigpioPudOff  uint32 = 0
	pigpioPudDown uint32 = 1
	pigpioPudUp   uint32 = 2
)

// command sends one request and returns the daemon's result. pigpio reports
// failures as a negative result in P3.
func (p *Pigpio) command(c, p1, p2 uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return 0, fmt.Errorf("not connected to pigpio socket interface")
	}

	request := cmd{
		Cmd: c,
		P1:  p1,
		P2:  p2,
	}

	if err := binary.Write(p.conn, binary.LittleEndian, request); err != nil {
		return 0, fmt.Errorf("unable to write request to socket: %w", err)
	}

	var response cmd
	if err := binary.Read(p.conn, binary.LittleEndian, &response); err != nil {
		return 0, fmt.Errorf("unable to read response from socket: %w", err)
	}

	if res := int32(response.P3); res < 0 {
		return 0, fmt.Errorf("pigpio command %d on gpio %d failed with code %d", c, p1, res)
	}

	return response.P3, nil
}
