package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/gloworm-vision/gloworm-led/led"
	"github.com/gloworm-vision/gloworm-led/store"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

var testHardware = hardware.Config{
	Bank: hardware.BankConfig{Driver: hardware.DriverSim, Ports: 2},
	LEDs: []hardware.LEDConfig{
		{Name: "status", Port: 0, Pin: 4},
		{Name: "cluster", Port: 1, Pin: 13, Polarity: led.ActiveLow},
	},
}

func newTestServer(t *testing.T, config *hardware.Config) (*httptest.Server, store.Store) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st, err := store.OpenBadgerInMemory(logger)
	if err != nil {
		t.Fatalf("OpenBadgerInMemory() returned error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if config != nil {
		if err := st.PutHardwareConfig(*config); err != nil {
			t.Fatal(err)
		}
	}

	s := &Server{Store: st, Logger: logger}
	handler, err := s.Handler()
	if err != nil {
		t.Fatalf("Handler() returned error: %v", err)
	}
	t.Cleanup(func() { s.hardwareManager.Close() })

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return ts, st
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, buf
}

type decodedStatus struct {
	Name     string       `json:"name"`
	State    string       `json:"state"`
	Polarity led.Polarity `json:"polarity"`
	Port     uint8        `json:"port"`
	Pin      uint8        `json:"pin"`
}

func decodeStatus(t *testing.T, buf []byte) decodedStatus {
	t.Helper()

	var status decodedStatus
	if err := json.Unmarshal(buf, &status); err != nil {
		t.Fatalf("unable to decode led status %q: %v", buf, err)
	}

	return status
}

func TestServer_ListLEDs(t *testing.T) {
	ts, _ := newTestServer(t, &testHardware)

	code, buf := do(t, ts, http.MethodGet, "/leds", "")
	if code != http.StatusOK {
		t.Fatalf("GET /leds = %d %s", code, buf)
	}

	var leds []map[string]interface{}
	if err := json.Unmarshal(buf, &leds); err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, l := range leds {
		names = append(names, l["name"].(string))
	}
	if diff := cmp.Diff([]string{"cluster", "status"}, names); diff != "" {
		t.Errorf("led names mismatch (-want +got):\n%s", diff)
	}
	if leds[0]["polarity"] != "active-low" || leds[0]["state"] != "active" {
		t.Errorf("cluster = %v, want active active-low", leds[0])
	}
}

func TestServer_Operations(t *testing.T) {
	ts, _ := newTestServer(t, &testHardware)

	tests := []struct {
		method, path, body string
		wantCode           int
		wantState          string
	}{
		{http.MethodPut, "/leds/status/state", `{"on":true}`, http.StatusOK, "active"},
		{http.MethodPost, "/leds/status/toggle", "", http.StatusOK, "active"},
		{http.MethodPost, "/leds/status/blink", `{"onMs":1,"offMs":1}`, http.StatusOK, "active"},
		{http.MethodPost, "/leds/status/suspend", "", http.StatusOK, "suspended"},
		{http.MethodPut, "/leds/status/state", `{"on":true}`, http.StatusConflict, ""},
		{http.MethodPost, "/leds/status/resume", "", http.StatusOK, "active"},
		{http.MethodPost, "/leds/status/blink", `{"onMs":-1}`, http.StatusBadRequest, ""},
		{http.MethodPost, "/leds/status/blink", `{"onMs":60000}`, http.StatusBadRequest, ""},
		{http.MethodPut, "/leds/status/state", `not json`, http.StatusUnprocessableEntity, ""},
		{http.MethodPost, "/leds/nope/toggle", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		code, buf := do(t, ts, tt.method, tt.path, tt.body)
		if code != tt.wantCode {
			t.Errorf("%s %s %s = %d %s, want %d", tt.method, tt.path, tt.body, code, buf, tt.wantCode)
			continue
		}

		if code == http.StatusOK {
			if got := decodeStatus(t, buf).State; got != tt.wantState {
				t.Errorf("%s %s state = %q, want %q", tt.method, tt.path, got, tt.wantState)
			}
		}
	}
}

func TestServer_PutModePersists(t *testing.T) {
	ts, st := newTestServer(t, &testHardware)

	code, buf := do(t, ts, http.MethodPut, "/leds/status/mode", `{"polarity":"active-low"}`)
	if code != http.StatusOK {
		t.Fatalf("PUT mode = %d %s", code, buf)
	}
	if got := decodeStatus(t, buf).Polarity; got != led.ActiveLow {
		t.Errorf("polarity = %v, want %v", got, led.ActiveLow)
	}

	settings, err := st.LEDSettings("status")
	if err != nil {
		t.Fatalf("LEDSettings() returned error: %v", err)
	}
	if settings.Polarity != led.ActiveLow {
		t.Errorf("stored polarity = %v, want %v", settings.Polarity, led.ActiveLow)
	}

	// settings survive a hardware rebuild
	if code, buf := do(t, ts, http.MethodPost, "/rpc/updateHardware", ""); code != http.StatusOK {
		t.Fatalf("updateHardware = %d %s", code, buf)
	}
	code, buf = do(t, ts, http.MethodGet, "/leds/status", "")
	if code != http.StatusOK {
		t.Fatalf("GET led = %d %s", code, buf)
	}
	if got := decodeStatus(t, buf).Polarity; got != led.ActiveLow {
		t.Errorf("polarity after rebuild = %v, want %v", got, led.ActiveLow)
	}

	if code, _ := do(t, ts, http.MethodPut, "/leds/status/mode", `{"polarity":"sideways"}`); code != http.StatusUnprocessableEntity {
		t.Errorf("PUT bad mode = %d, want %d", code, http.StatusUnprocessableEntity)
	}
}

func TestServer_NoHardware(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	if code, _ := do(t, ts, http.MethodGet, "/leds", ""); code != http.StatusServiceUnavailable {
		t.Errorf("GET /leds without hardware = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if code, _ := do(t, ts, http.MethodGet, "/hardware", ""); code != http.StatusNotFound {
		t.Errorf("GET /hardware without config = %d, want %d", code, http.StatusNotFound)
	}

	body, err := json.Marshal(testHardware)
	if err != nil {
		t.Fatal(err)
	}
	if code, buf := do(t, ts, http.MethodPut, "/hardware", string(body)); code != http.StatusNoContent {
		t.Fatalf("PUT /hardware = %d %s", code, buf)
	}
	if code, buf := do(t, ts, http.MethodPost, "/rpc/updateHardware", ""); code != http.StatusOK {
		t.Fatalf("updateHardware = %d %s", code, buf)
	}
	if code, _ := do(t, ts, http.MethodGet, "/leds", ""); code != http.StatusOK {
		t.Errorf("GET /leds after update = %d, want %d", code, http.StatusOK)
	}

	code, buf := do(t, ts, http.MethodGet, "/hardware", "")
	if code != http.StatusOK {
		t.Fatalf("GET /hardware = %d", code)
	}
	if !bytes.Contains(buf, []byte(`"cluster"`)) {
		t.Errorf("GET /hardware = %s, want the stored config", buf)
	}
}

func TestServer_PutHardwareValidates(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	if code, _ := do(t, ts, http.MethodPut, "/hardware", `{"bank":{"driver":"pigpio"}}`); code != http.StatusUnprocessableEntity {
		t.Errorf("PUT invalid hardware = %d, want %d", code, http.StatusUnprocessableEntity)
	}
}

func TestServer_Metrics(t *testing.T) {
	ts, _ := newTestServer(t, &testHardware)

	do(t, ts, http.MethodPost, "/leds/status/toggle", "")

	code, buf := do(t, ts, http.MethodGet, "/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}

	want := `ledd_led_operations_total{led="status",op="toggle",result="ok"} 1`
	if !strings.Contains(string(buf), want) {
		t.Errorf("metrics missing %q", want)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", hardware.ErrUnknownLED), http.StatusNotFound},
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{led.ErrInvalidArgument, http.StatusBadRequest},
		{led.ErrNotConfigured, http.StatusConflict},
		{led.ErrAlreadyConfigured, http.StatusConflict},
		{led.ErrConcurrentAccess, http.StatusLocked},
		{errNoHardware, http.StatusServiceUnavailable},
		{io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestServer_BoardOperations(t *testing.T) {
	config := testHardware
	config.LEDs = append([]hardware.LEDConfig{{Name: "ready", Port: 0, Pin: 5}}, testHardware.LEDs...)
	ts, _ := newTestServer(t, &config)

	tests := []struct {
		method, path, body string
		wantCode           int
	}{
		{http.MethodPut, "/lights", `{"on":true}`, http.StatusNoContent},
		{http.MethodPut, "/status/ready", `{"on":false}`, http.StatusNoContent},
		{http.MethodPut, "/status/target-acquired", `{"on":true}`, http.StatusNoContent},
		{http.MethodPut, "/status/bogus", `{"on":true}`, http.StatusBadRequest},
		{http.MethodPost, "/rpc/suspend", "", http.StatusNoContent},
		{http.MethodPut, "/lights", `{"on":true}`, http.StatusConflict},
		{http.MethodPost, "/rpc/resume", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		if code, buf := do(t, ts, tt.method, tt.path, tt.body); code != tt.wantCode {
			t.Errorf("%s %s %s = %d %s, want %d", tt.method, tt.path, tt.body, code, buf, tt.wantCode)
		}
	}

	code, buf := do(t, ts, http.MethodGet, "/leds/ready", "")
	if code != http.StatusOK {
		t.Fatalf("GET /leds/ready = %d", code)
	}
	if got := decodeStatus(t, buf).State; got != "active" {
		t.Errorf("ready state = %q, want %q", got, "active")
	}
}
