package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/sirupsen/logrus"
)

var errNoHardware = errors.New("no hardware configured")

// hardwareManager synchronizes access to the underlying board. Operations
// hold the read lock for their whole duration (a blink included), so a board
// is never closed while a caller might be using one of its LEDs.
type hardwareManager struct {
	board  *hardware.Board
	mu     *sync.RWMutex
	logger *logrus.Logger
}

// Update closes the current board and builds a new one from config. If the
// new board can't be built, no board is left in place.
func (h *hardwareManager) Update(config hardware.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.board != nil {
		if err := h.board.Close(); err != nil {
			h.logger.Warnf("unable to close old hardware cleanly: %s", err)
		}
		h.board = nil
	}

	board, err := hardware.New(config, h.logger)
	if err != nil {
		return fmt.Errorf("unable to create new hardware from config: %w", err)
	}

	h.board = board
	return nil
}

// View calls fn with the current board, or returns errNoHardware.
func (h *hardwareManager) View(fn func(b *hardware.Board) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.board == nil {
		return errNoHardware
	}

	return fn(h.board)
}

// Close releases the board, turning every LED off.
func (h *hardwareManager) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.board == nil {
		return nil
	}

	err := h.board.Close()
	h.board = nil
	return err
}
