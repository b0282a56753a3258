package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/gloworm-vision/gloworm-led/metrics"
	"github.com/gloworm-vision/gloworm-led/store"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	Addr string

	Store  store.Store
	Logger *logrus.Logger

	// Registry receives the LED metrics and is served on /metrics. A new
	// registry is created if nil.
	Registry *prometheus.Registry

	metrics         *metrics.Metrics
	hardwareManager *hardwareManager
}

func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return fmt.Errorf("unable to initialize: %w", err)
	}
	defer func() {
		if err := s.hardwareManager.Close(); err != nil {
			s.Logger.Warnf("unable to release hardware: %s", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadTimeout:       time.Second * 15,
		ReadHeaderTimeout: time.Second * 15,
		IdleTimeout:       time.Second * 30,
		MaxHeaderBytes:    4096,
	}

	listenErrs := make(chan error, 1)
	go func() {
		s.Logger.WithField("addr", s.Addr).Info("serving http")
		listenErrs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-listenErrs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), maxBlink+5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Handler initializes the server and returns its routes.
func (s *Server) Handler() (http.Handler, error) {
	if err := s.init(); err != nil {
		return nil, err
	}

	mux := httprouter.New()

	mux.HandlerFunc(http.MethodGet, "/leds", s.listLEDs)
	mux.HandlerFunc(http.MethodGet, "/leds/:name", s.getLED)
	mux.HandlerFunc(http.MethodPut, "/leds/:name/state", s.putState)
	mux.HandlerFunc(http.MethodPut, "/leds/:name/mode", s.putMode)
	mux.HandlerFunc(http.MethodPost, "/leds/:name/toggle", s.toggle)
	mux.HandlerFunc(http.MethodPost, "/leds/:name/blink", s.blink)
	mux.HandlerFunc(http.MethodPost, "/leds/:name/suspend", s.suspend(true))
	mux.HandlerFunc(http.MethodPost, "/leds/:name/resume", s.suspend(false))

	mux.HandlerFunc(http.MethodPut, "/lights", s.putLights)
	mux.HandlerFunc(http.MethodPut, "/status/:status", s.putStatus)

	mux.HandlerFunc(http.MethodGet, "/hardware", s.getHardware)
	mux.HandlerFunc(http.MethodPut, "/hardware", s.putHardware)

	mux.HandlerFunc(http.MethodPost, "/rpc/updateHardware", s.updateHardware)
	mux.HandlerFunc(http.MethodPost, "/rpc/suspend", s.suspendBoard(true))
	mux.HandlerFunc(http.MethodPost, "/rpc/resume", s.suspendBoard(false))

	mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))

	return mux, nil
}

// init attempts to initialize the hardware manager with the config from the
// store. A missing or broken config is not fatal: LED routes answer 503 until
// a working config is put and applied.
func (s *Server) init() error {
	if s.Store == nil {
		return errors.New("no store configured")
	}
	if s.Logger == nil {
		s.Logger = logrus.New()
	}
	if s.Registry == nil {
		s.Registry = prometheus.NewRegistry()
	}

	s.metrics = metrics.New(s.Registry)
	s.hardwareManager = &hardwareManager{mu: new(sync.RWMutex), logger: s.Logger}

	if err := s.applyHardware(); err != nil {
		s.Logger.Warnf("unable to setup hardware: %s", err)
	}

	return nil
}

// applyHardware rebuilds the board from the stored config and LED settings.
func (s *Server) applyHardware() error {
	config, err := s.Store.HardwareConfig()
	if err != nil {
		return err
	}

	settings, err := s.Store.ListLEDSettings()
	if err != nil {
		return err
	}

	var previous []string
	_ = s.hardwareManager.View(func(b *hardware.Board) error {
		previous = b.Names()
		return nil
	})
	for _, name := range previous {
		s.metrics.Forget(name)
	}

	if err := s.hardwareManager.Update(store.ApplySettings(config, settings)); err != nil {
		return err
	}

	return s.hardwareManager.View(func(b *hardware.Board) error {
		for _, name := range b.Names() {
			dev, err := b.LED(name)
			if err != nil {
				return err
			}
			s.metrics.SetState(name, dev.State())
		}
		return nil
	})
}
