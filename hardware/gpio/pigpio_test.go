package gpio

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakePigpiod answers the subset of the pigpio socket protocol used by Pigpio.
type fakePigpiod struct {
	ln net.Listener

	mu     sync.Mutex
	modes  map[uint32]uint32
	pulls  map[uint32]uint32
	levels map[uint32]uint32
	cmds   []cmd
}

func startFakePigpiod(t *testing.T) *fakePigpiod {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to listen: %v", err)
	}

	f := &fakePigpiod{
		ln:     ln,
		modes:  make(map[uint32]uint32),
		pulls:  make(map[uint32]uint32),
		levels: make(map[uint32]uint32),
	}
	t.Cleanup(func() { ln.Close() })

	go f.serve()
	return f
}

func (f *fakePigpiod) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req cmd
		if err := binary.Read(conn, binary.LittleEndian, &req); err != nil {
			return
		}

		resp := req
		resp.P3 = f.handle(req)

		if err := binary.Write(conn, binary.LittleEndian, resp); err != nil {
			return
		}
	}
}

func (f *fakePigpiod) handle(req cmd) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cmds = append(f.cmds, req)

	if req.P1 >= pigpioLines {
		// PI_BAD_GPIO
		return uint32(0xFFFFFFFD)
	}

	switch req.Cmd {
	case modes:
		f.modes[req.P1] = req.P2
	case modeg:
		return f.modes[req.P1]
	case pudCmd:
		f.pulls[req.P1] = req.P2
	case read:
		return f.levels[req.P1]
	case write:
		f.levels[req.P1] = req.P2
	}

	return 0
}

func (f *fakePigpiod) level(line uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.levels[line]
}

func dialFake(t *testing.T) (*Pigpio, *fakePigpiod) {
	t.Helper()

	f := startFakePigpiod(t)
	p, err := DialPigpio(f.ln.Addr().String())
	if err != nil {
		t.Fatalf("DialPigpio() returned error: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	return p, f
}

func TestPigpio_ConfigureAndWrite(t *testing.T) {
	p, f := dialFake(t)

	// port 1 pin 2 is BCM 18
	if err := p.EnableClock(1); err != nil {
		t.Fatalf("EnableClock() returned error: %v", err)
	}
	if err := p.ConfigurePin(1, Mask(2), PinConfig{Mode: ModePushPullOutput, Pull: PullDown, Speed: SpeedFast}); err != nil {
		t.Fatalf("ConfigurePin() returned error: %v", err)
	}
	if err := p.WritePin(1, Mask(2), High); err != nil {
		t.Fatalf("WritePin() returned error: %v", err)
	}

	want := []cmd{
		{Cmd: modes, P1: 18, P2: pigpioModeOutput},
		{Cmd: pudCmd, P1: 18, P2: pigpioPudDown},
		{Cmd: write, P1: 18, P2: 1},
	}
	f.mu.Lock()
	got := append([]cmd(nil), f.cmds...)
	f.mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	cfg, ok := p.PinConfig(1, 2)
	if !ok || cfg.Mode != ModePushPullOutput {
		t.Errorf("PinConfig() = %+v, %v, want push-pull output", cfg, ok)
	}
}

func TestPigpio_Toggle(t *testing.T) {
	p, f := dialFake(t)

	if err := p.WritePin(0, Mask(4), Low); err != nil {
		t.Fatal(err)
	}
	if err := p.TogglePin(0, Mask(4)); err != nil {
		t.Fatalf("TogglePin() returned error: %v", err)
	}
	if got := f.level(4); got != 1 {
		t.Errorf("level after toggle = %d, want 1", got)
	}

	if err := p.TogglePin(0, Mask(4)); err != nil {
		t.Fatalf("TogglePin() returned error: %v", err)
	}
	if got := f.level(4); got != 0 {
		t.Errorf("level after second toggle = %d, want 0", got)
	}
}

func TestPigpio_Release(t *testing.T) {
	p, _ := dialFake(t)

	if err := p.ConfigurePin(0, Mask(7), PinConfig{Mode: ModePushPullOutput}); err != nil {
		t.Fatal(err)
	}
	if err := p.ReleasePin(0, Mask(7)); err != nil {
		t.Fatalf("ReleasePin() returned error: %v", err)
	}

	if _, ok := p.PinConfig(0, 7); ok {
		t.Error("PinConfig() reports released line as configured")
	}
}

func TestPigpio_Errors(t *testing.T) {
	p, _ := dialFake(t)

	if p.Ports() != 4 {
		t.Errorf("Ports() = %d, want 4", p.Ports())
	}
	if err := p.EnableClock(4); !errors.Is(err, ErrUnknownPort) {
		t.Errorf("EnableClock(4) error = %v, want ErrUnknownPort", err)
	}

	// BCM 54 does not exist
	if err := p.WritePin(3, Mask(6), High); err == nil {
		t.Error("WritePin() past the last line should return error")
	}
	if err := p.ConfigurePin(0, Mask(0), PinConfig{Mode: ModeOpenDrainOutput}); err == nil {
		t.Error("ConfigurePin() with open-drain mode should return error")
	}
}

func TestPigpio_Closed(t *testing.T) {
	p, _ := dialFake(t)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	if err := p.WritePin(0, Mask(0), High); err == nil {
		t.Error("WritePin() on closed connection should return error")
	}
	if err := p.Close(); err == nil {
		t.Error("second Close() should return error")
	}
}
