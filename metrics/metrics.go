// Package metrics exports Prometheus metrics about LED operations.
package metrics

import (
	"errors"
	"time"

	"github.com/gloworm-vision/gloworm-led/led"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledd"

// Metrics holds the collectors for LED operations.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	state      *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "led",
			Name:      "operations_total",
			Help:      "LED operations by outcome.",
		}, []string{"led", "op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "led",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in LED operations, including blink delays.",
			Buckets:   []float64{.0001, .001, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "led",
			Name:      "state",
			Help:      "Lifecycle state: 0 uninitialized, 1 active, 2 suspended, 3 released.",
		}, []string{"led"}),
	}

	reg.MustRegister(m.operations, m.duration, m.state)

	return m
}

// Result classifies an operation error for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, led.ErrConcurrentAccess):
		return "busy"
	case errors.Is(err, led.ErrNotConfigured), errors.Is(err, led.ErrAlreadyConfigured):
		return "not_configured"
	case errors.Is(err, led.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}

// Observe records one operation on the named LED and its resulting state.
func (m *Metrics) Observe(name, op string, dev *led.Device, started time.Time, err error) {
	m.operations.WithLabelValues(name, op, Result(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.SetState(name, dev.State())
}

// SetState sets the state gauge of the named LED.
func (m *Metrics) SetState(name string, s led.State) {
	m.state.WithLabelValues(name).Set(float64(s))
}

// Forget drops every series of the named LED.
func (m *Metrics) Forget(name string) {
	m.state.DeleteLabelValues(name)
	m.operations.DeletePartialMatch(prometheus.Labels{"led": name})
}
