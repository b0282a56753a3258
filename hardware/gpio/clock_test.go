package gpio

import "testing"

func TestSharedClock_RefCounts(t *testing.T) {
	sim := NewSim(2)
	clock := NewSharedClock(sim)

	for i := 0; i < 2; i++ {
		if err := clock.EnableClock(1); err != nil {
			t.Fatalf("EnableClock() returned error: %v", err)
		}
	}
	if got := clock.Users(1); got != 2 {
		t.Errorf("Users(1) = %d, want 2", got)
	}

	if err := clock.DisableClock(1); err != nil {
		t.Fatalf("DisableClock() returned error: %v", err)
	}
	if !sim.ClockEnabled(1) {
		t.Error("clock gated while a user still holds it")
	}

	if err := clock.DisableClock(1); err != nil {
		t.Fatalf("DisableClock() returned error: %v", err)
	}
	if sim.ClockEnabled(1) {
		t.Error("clock still enabled after last user released it")
	}

	// one underlying enable and one underlying disable
	var enables, disables int
	for _, e := range sim.Journal() {
		switch e.Op {
		case OpEnableClock:
			enables++
		case OpDisableClock:
			disables++
		}
	}
	if enables != 1 || disables != 1 {
		t.Errorf("underlying enables, disables = %d, %d, want 1, 1", enables, disables)
	}
}

func TestSharedClock_DisableUnheld(t *testing.T) {
	sim := NewSim(1)
	clock := NewSharedClock(sim)

	if err := clock.DisableClock(0); err != nil {
		t.Errorf("DisableClock() of unheld clock returned error: %v", err)
	}
	if len(sim.Journal()) != 0 {
		t.Errorf("DisableClock() of unheld clock reached the bank: %v", sim.Journal())
	}
}

func TestSharedClock_EnableFailureNotCounted(t *testing.T) {
	sim := NewSim(1)
	clock := NewSharedClock(sim)

	if err := clock.EnableClock(5); err == nil {
		t.Fatal("EnableClock() of unknown port should return error")
	}
	if got := clock.Users(5); got != 0 {
		t.Errorf("Users(5) = %d, want 0", got)
	}
}
