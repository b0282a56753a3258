package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Op names a call recorded in a Sim journal.
type Op string

const (
	OpEnableClock  Op = "enable-clock"
	OpDisableClock Op = "disable-clock"
	OpConfigure    Op = "configure"
	OpRelease      Op = "release"
	OpWrite        Op = "write"
	OpToggle       Op = "toggle"
	OpSleep        Op = "sleep"
)

// Event is one hardware call observed by a Sim.
type Event struct {
	Op       Op
	Port     Port
	Mask     PinMask
	Level    Level
	Config   PinConfig
	Duration time.Duration
}

func (e Event) String() string {
	switch e.Op {
	case OpWrite:
		return fmt.Sprintf("%s port=%d mask=%#04x level=%v", e.Op, e.Port, uint16(e.Mask), e.Level)
	case OpConfigure:
		return fmt.Sprintf("%s port=%d mask=%#04x %+v", e.Op, e.Port, uint16(e.Mask), e.Config)
	case OpSleep:
		return fmt.Sprintf("%s %s", e.Op, e.Duration)
	case OpEnableClock, OpDisableClock:
		return fmt.Sprintf("%s port=%d", e.Op, e.Port)
	default:
		return fmt.Sprintf("%s port=%d mask=%#04x", e.Op, e.Port, uint16(e.Mask))
	}
}

type simPort struct {
	clock   bool
	configs [PinCount]*PinConfig
	output  uint16
}

// Sim is an in-memory bank. Every call is appended to a journal, and register
// access to a port with a gated clock fails with ErrClockGated, the way real
// silicon ignores the write.
//
// A Sim is also a Sleeper: sleeps are journaled and return immediately.
type Sim struct {
	mu      sync.Mutex
	ports   []simPort
	journal []Event
}

// compile-time checks for whether Sim satisfies the bank interfaces
var (
	_ Bank      = &Sim{}
	_ Inspector = &Sim{}
	_ Sleeper   = &Sim{}
)

// NewSim creates a simulated bank with the given number of ports.
func NewSim(ports int) *Sim {
	return &Sim{ports: make([]simPort, ports)}
}

func (s *Sim) Ports() int {
	return len(s.ports)
}

func (s *Sim) port(p Port, needClock bool) (*simPort, error) {
	if int(p) >= len(s.ports) {
		return nil, fmt.Errorf("port %d: %w", p, ErrUnknownPort)
	}

	sp := &s.ports[p]
	if needClock && !sp.clock {
		return nil, fmt.Errorf("port %d: %w", p, ErrClockGated)
	}

	return sp, nil
}

func (s *Sim) EnableClock(p Port) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.port(p, false)
	if err != nil {
		return err
	}

	sp.clock = true
	s.journal = append(s.journal, Event{Op: OpEnableClock, Port: p})
	return nil
}

func (s *Sim) DisableClock(p Port) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.port(p, false)
	if err != nil {
		return err
	}

	sp.clock = false
	s.journal = append(s.journal, Event{Op: OpDisableClock, Port: p})
	return nil
}

func (s *Sim) ConfigurePin(p Port, mask PinMask, cfg PinConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.port(p, true)
	if err != nil {
		return err
	}

	for i := 0; i < PinCount; i++ {
		if mask&Mask(uint8(i)) != 0 {
			c := cfg
			sp.configs[i] = &c
		}
	}

	s.journal = append(s.journal, Event{Op: OpConfigure, Port: p, Mask: mask, Config: cfg})
	return nil
}

func (s *Sim) ReleasePin(p Port, mask PinMask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.port(p, true)
	if err != nil {
		return err
	}

	for i := 0; i < PinCount; i++ {
		if mask&Mask(uint8(i)) != 0 {
			sp.configs[i] = nil
		}
	}
	sp.output &^= uint16(mask)

	s.journal = append(s.journal, Event{Op: OpRelease, Port: p, Mask: mask})
	return nil
}

func (s *Sim) WritePin(p Port, mask PinMask, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.port(p, true)
	if err != nil {
		return err
	}

	if level {
		sp.output |= uint16(mask)
	} else {
		sp.output &^= uint16(mask)
	}

	s.journal = append(s.journal, Event{Op: OpWrite, Port: p, Mask: mask, Level: level})
	return nil
}

func (s *Sim) TogglePin(p Port, mask PinMask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.port(p, true)
	if err != nil {
		return err
	}

	sp.output ^= uint16(mask)

	s.journal = append(s.journal, Event{Op: OpToggle, Port: p, Mask: mask})
	return nil
}

// Sleep records d without blocking.
func (s *Sim) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = append(s.journal, Event{Op: OpSleep, Duration: d})
}

func (s *Sim) PinConfig(p Port, pin uint8) (PinConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(p) >= len(s.ports) || pin >= PinCount {
		return PinConfig{}, false
	}

	c := s.ports[p].configs[pin]
	if c == nil {
		return PinConfig{}, false
	}

	return *c, true
}

// Level returns the output register bit of a pin.
func (s *Sim) Level(p Port, pin uint8) Level {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(p) >= len(s.ports) || pin >= PinCount {
		return Low
	}

	return s.ports[p].output&uint16(Mask(pin)) != 0
}

// ClockEnabled reports whether the clock of a port is on.
func (s *Sim) ClockEnabled(p Port) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(p) >= len(s.ports) {
		return false
	}

	return s.ports[p].clock
}

// Journal returns a copy of every call recorded so far.
func (s *Sim) Journal() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Event(nil), s.journal...)
}

// Reset clears the journal, leaving port state untouched.
func (s *Sim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = nil
}

// Close is a no-op so a Sim can stand in wherever a closable bank is expected.
func (s *Sim) Close() error {
	return nil
}
