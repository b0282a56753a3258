package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/gloworm-vision/gloworm-led/led"
	"github.com/gloworm-vision/gloworm-led/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respond encodes the data and ResponseError to JSON and responds with it and
// the http code. If the encoding fails, sets an InternalServerError.
func respond(w http.ResponseWriter, data interface{}, httpCode int) {
	var resp interface{}
	if v, ok := data.(error); ok {
		resp = errorResponse{Error: v.Error()}
	} else {
		resp = data
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)

	if resp != nil {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// statusFor maps an error to the HTTP status it should be reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hardware.ErrUnknownLED), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, led.ErrInvalidArgument), errors.Is(err, hardware.ErrUnsupportedStatus{}):
		return http.StatusBadRequest
	case errors.Is(err, led.ErrNotConfigured), errors.Is(err, led.ErrAlreadyConfigured):
		return http.StatusConflict
	case errors.Is(err, led.ErrConcurrentAccess):
		return http.StatusLocked
	case errors.Is(err, errNoHardware):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
