package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/gloworm-vision/gloworm-led/hardware/gpio"
	"github.com/gloworm-vision/gloworm-led/led"
	"github.com/gloworm-vision/gloworm-led/store"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// maxBlink bounds each leg of a blink requested over HTTP, since the request
// blocks until the blink is done.
const maxBlink = 10 * time.Second

type ledStatus struct {
	Name     string       `json:"name"`
	State    led.State    `json:"state"`
	Polarity led.Polarity `json:"polarity"`
	Port     gpio.Port    `json:"port"`
	Pin      uint8        `json:"pin"`
}

func statusOf(name string, dev *led.Device) ledStatus {
	return ledStatus{
		Name:     name,
		State:    dev.State(),
		Polarity: dev.Polarity(),
		Port:     dev.Port(),
		Pin:      dev.Pin(),
	}
}

type stateRequest struct {
	On bool `json:"on"`
}

type modeRequest struct {
	Polarity led.Polarity `json:"polarity"`
}

type blinkRequest struct {
	OnMs  int64 `json:"onMs"`
	OffMs int64 `json:"offMs"`
}

func (s *Server) listLEDs(res http.ResponseWriter, req *http.Request) {
	var leds []ledStatus
	err := s.hardwareManager.View(func(b *hardware.Board) error {
		leds = make([]ledStatus, 0, len(b.Names()))
		for _, name := range b.Names() {
			dev, err := b.LED(name)
			if err != nil {
				return err
			}
			leds = append(leds, statusOf(name, dev))
		}
		return nil
	})
	if err != nil {
		respond(res, err, statusFor(err))
		return
	}

	respond(res, leds, http.StatusOK)
}

func (s *Server) getLED(res http.ResponseWriter, req *http.Request) {
	s.withLED(res, req, "", nil)
}

func (s *Server) putState(res http.ResponseWriter, req *http.Request) {
	var body stateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	s.withLED(res, req, "write", func(_ string, dev *led.Device) error {
		return dev.Write(led.Value(body.On))
	})
}

func (s *Server) putMode(res http.ResponseWriter, req *http.Request) {
	var body modeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	s.withLED(res, req, "set_active_mode", func(name string, dev *led.Device) error {
		if err := dev.SetActiveMode(body.Polarity); err != nil {
			return err
		}

		if err := s.Store.PutLEDSettings(name, store.LEDSettings{Polarity: body.Polarity}); err != nil {
			return fmt.Errorf("unable to persist polarity: %w", err)
		}

		return nil
	})
}

func (s *Server) toggle(res http.ResponseWriter, req *http.Request) {
	s.withLED(res, req, "toggle", func(_ string, dev *led.Device) error {
		return dev.Toggle()
	})
}

func (s *Server) blink(res http.ResponseWriter, req *http.Request) {
	var body blinkRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	on := time.Duration(body.OnMs) * time.Millisecond
	off := time.Duration(body.OffMs) * time.Millisecond
	if on > maxBlink || off > maxBlink {
		respond(res, fmt.Errorf("blink legs are limited to %s", maxBlink), http.StatusBadRequest)
		return
	}

	s.withLED(res, req, "blink", func(_ string, dev *led.Device) error {
		return dev.Blink(on, off)
	})
}

func (s *Server) suspend(enter bool) http.HandlerFunc {
	op := "resume"
	if enter {
		op = "suspend"
	}

	return func(res http.ResponseWriter, req *http.Request) {
		s.withLED(res, req, op, func(_ string, dev *led.Device) error {
			return dev.Suspend(enter)
		})
	}
}

// withLED runs fn against the LED named in the route and responds with the
// LED's status afterwards. A nil fn only reports the status.
func (s *Server) withLED(res http.ResponseWriter, req *http.Request, op string, fn func(name string, dev *led.Device) error) {
	name := httprouter.ParamsFromContext(req.Context()).ByName("name")

	var status ledStatus
	err := s.hardwareManager.View(func(b *hardware.Board) error {
		dev, err := b.LED(name)
		if err != nil {
			return err
		}

		if fn != nil {
			started := time.Now()
			err = fn(name, dev)
			s.metrics.Observe(name, op, dev, started, err)
			if err != nil {
				return err
			}
		}

		status = statusOf(name, dev)
		return nil
	})
	if err != nil {
		entry := s.Logger.WithFields(logrus.Fields{"led": name, "op": op}).WithError(err)
		if errors.Is(err, led.ErrConcurrentAccess) {
			entry.Debug("led busy")
		} else if op != "" {
			entry.Warn("led operation failed")
		}

		respond(res, err, statusFor(err))
		return
	}

	respond(res, status, http.StatusOK)
}

func (s *Server) getHardware(res http.ResponseWriter, req *http.Request) {
	config, err := s.Store.HardwareConfig()
	if err != nil {
		respond(res, err, statusFor(err))
		return
	}

	respond(res, config, http.StatusOK)
}

func (s *Server) putHardware(res http.ResponseWriter, req *http.Request) {
	var config hardware.Config
	if err := json.NewDecoder(req.Body).Decode(&config); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := config.Validate(); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.Store.PutHardwareConfig(config); err != nil {
		respond(res, err, http.StatusInternalServerError)
		return
	}

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) updateHardware(res http.ResponseWriter, req *http.Request) {
	if err := s.applyHardware(); err != nil {
		s.Logger.WithError(err).Warn("unable to update hardware")
		respond(res, err, statusFor(err))
		return
	}

	respond(res, nil, http.StatusOK)
}

// withBoard runs a board-wide operation and refreshes the state of every LED.
func (s *Server) withBoard(res http.ResponseWriter, op string, fn func(b *hardware.Board) error) {
	err := s.hardwareManager.View(func(b *hardware.Board) error {
		opErr := fn(b)

		for _, name := range b.Names() {
			if dev, err := b.LED(name); err == nil {
				s.metrics.SetState(name, dev.State())
			}
		}

		return opErr
	})
	if err != nil {
		s.Logger.WithField("op", op).WithError(err).Warn("board operation failed")
		respond(res, err, statusFor(err))
		return
	}

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) putLights(res http.ResponseWriter, req *http.Request) {
	var body stateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	s.withBoard(res, "set_lights", func(b *hardware.Board) error {
		return b.SetLights(body.On)
	})
}

func (s *Server) putStatus(res http.ResponseWriter, req *http.Request) {
	status, err := hardware.ParseStatus(httprouter.ParamsFromContext(req.Context()).ByName("status"))
	if err != nil {
		respond(res, err, statusFor(err))
		return
	}

	var body stateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	s.withBoard(res, "set_status", func(b *hardware.Board) error {
		return b.SetStatus(status, body.On)
	})
}

func (s *Server) suspendBoard(enter bool) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		s.withBoard(res, "suspend_board", func(b *hardware.Board) error {
			return b.Suspend(enter)
		})
	}
}
