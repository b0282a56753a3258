package gpio

import (
	"fmt"
	"sync"
)

// SharedClock wraps a Bank and reference counts its clock gates per port, so
// several users of one port can enable and disable the clock independently.
// The underlying gate is only touched on the first enable and the last
// disable.
type SharedClock struct {
	Bank

	mu    sync.Mutex
	users map[Port]int
}

// NewSharedClock wraps bank.
func NewSharedClock(bank Bank) *SharedClock {
	return &SharedClock{Bank: bank, users: make(map[Port]int)}
}

func (c *SharedClock) EnableClock(p Port) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.users[p] == 0 {
		if err := c.Bank.EnableClock(p); err != nil {
			return err
		}
	}

	c.users[p]++
	return nil
}

// DisableClock drops one user of the port clock. Disabling a clock nobody
// holds is a no-op.
func (c *SharedClock) DisableClock(p Port) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.users[p] {
	case 0:
		return nil
	case 1:
		if err := c.Bank.DisableClock(p); err != nil {
			return fmt.Errorf("unable to gate port %d clock: %w", p, err)
		}
		delete(c.users, p)
	default:
		c.users[p]--
	}

	return nil
}

// Users returns how many users currently hold the clock of a port.
func (c *SharedClock) Users(p Port) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.users[p]
}
