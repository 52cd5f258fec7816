package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicelink/pkg/cache"
	"devicelink/pkg/config"
	"devicelink/pkg/device"
	"devicelink/pkg/event"
	"devicelink/pkg/scheduler"
)

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

type request struct {
	method    string
	attribute string
	params    url.Values
}

// fakeDevice serves one Alpaca device from a table of attribute values.
// Attributes set to an *Error answer with that error.
type fakeDevice struct {
	mu       sync.Mutex
	values   map[string]any
	requests []request
}

func newFakeDevice(t *testing.T, deviceType string, values map[string]any) (*fakeDevice, *httptest.Server) {
	f := &fakeDevice{values: values}
	prefix := "/api/v1/" + deviceType + "/0/"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		attribute := strings.TrimPrefix(r.URL.Path, prefix)

		f.mu.Lock()
		f.requests = append(f.requests, request{method: r.Method, attribute: attribute, params: r.Form})
		value, ok := f.values[attribute]
		if r.Method == http.MethodPut && attribute == "connected" {
			f.values["connected"] = r.Form.Get("Connected") == "true"
		}
		f.mu.Unlock()

		if value == "http500" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		resp := Response{ServerTransactionID: 1}
		if id, err := json.Number(r.Form.Get("ClientTransactionID")).Int64(); err == nil {
			resp.ClientTransactionID = uint32(id)
		}
		switch v := value.(type) {
		case *Error:
			resp.ErrorNumber, resp.ErrorMessage = v.Number, v.Message
		default:
			if r.Method == http.MethodGet && !ok {
				resp.ErrorNumber, resp.ErrorMessage = ErrorNotImplemented, "not implemented"
			} else if r.Method == http.MethodGet {
				resp.Value = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeDevice) set(attribute string, value any) {
	f.mu.Lock()
	f.values[attribute] = value
	f.mu.Unlock()
}

func (f *fakeDevice) puts() []request {
	f.mu.Lock()
	defer f.mu.Unlock()

	var puts []request
	for _, r := range f.requests {
		if r.method == http.MethodPut {
			puts = append(puts, r)
		}
	}
	return puts
}

type harness struct {
	driver *Driver
	device *fakeDevice
	store  *cache.Store
	clock  *scheduler.ManualClock
	events <-chan event.Event
}

func newHarness(t *testing.T, deviceType string, values map[string]any) *harness {
	fake, ts := newFakeDevice(t, deviceType, values)

	clock := scheduler.NewManualClock()
	pool := scheduler.NewPool(4, clock, testLogger())
	bus := event.NewBus(testLogger())
	events, cancel := bus.Subscribe(64)
	t.Cleanup(cancel)

	store := cache.New()
	d := NewDriver(deviceType, store, bus.Emitter(deviceType), pool, testLogger())
	d.Configure(config.FrameworkConfig{
		Address:    strings.TrimPrefix(ts.URL, "http://"),
		DeviceName: "Simulator",
	})
	t.Cleanup(func() { d.StopCommunication() })

	return &harness{driver: d, device: fake, store: store, clock: clock, events: events}
}

// poll runs one poll cycle synchronously.
func (h *harness) poll(t *testing.T) {
	h.driver.mu.Lock()
	client, writer := h.driver.client, h.driver.writer
	h.driver.mu.Unlock()
	require.NotNil(t, client)

	h.driver.pollTick(context.Background(), client, writer)
}

func (h *harness) waitEvent(t *testing.T, kind event.Kind) event.Event {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func domeValues() map[string]any {
	return map[string]any{
		"connected":     true,
		"azimuth":       123.4,
		"altitude":      0.0,
		"shutterstatus": ShutterClosed,
		"slewing":       false,
		"atpark":        false,
		"athome":        &Error{Number: ErrorValueNotSet, Message: "unknown"},
	}
}

func TestClientTransactionParams(t *testing.T) {
	fake, ts := newFakeDevice(t, "dome", domeValues())
	cfg := config.FrameworkConfig{Address: strings.TrimPrefix(ts.URL, "http://")}
	c := NewClient(cfg, "Dome", nil, testLogger())

	assert.Equal(t, ts.URL+"/api/v1/dome/0", c.BaseURL())

	az, err := c.GetFloat(context.Background(), "azimuth")
	require.NoError(t, err)
	assert.Equal(t, 123.4, az)

	_, err = c.Put(context.Background(), "slewtoazimuth", url.Values{"Azimuth": {"10"}})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 2)
	first, second := fake.requests[0].params, fake.requests[1].params
	assert.Equal(t, first.Get("ClientID"), second.Get("ClientID"))
	assert.Equal(t, "1", first.Get("ClientTransactionID"))
	assert.Equal(t, "2", second.Get("ClientTransactionID"))
	assert.Equal(t, "10", second.Get("Azimuth"))
}

func TestClientErrors(t *testing.T) {
	values := domeValues()
	values["slewing"] = "http500"
	_, ts := newFakeDevice(t, "dome", values)
	c := NewClient(config.FrameworkConfig{Address: strings.TrimPrefix(ts.URL, "http://")}, "dome", nil, testLogger())

	_, err := c.GetBool(context.Background(), "athome")
	assert.ErrorIs(t, err, &Error{Number: ErrorValueNotSet})

	_, err = c.GetBool(context.Background(), "slewing")
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)

	_, err = c.GetFloat(context.Background(), "doesnotexist")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestPollMirrorsAttributes(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	require.True(t, h.driver.StartCommunication())
	assert.Equal(t, device.Connecting, h.driver.State())

	h.poll(t)
	assert.Equal(t, device.Connected, h.driver.State())
	h.waitEvent(t, event.DeviceConnected)

	az, ok := h.store.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
	require.True(t, ok)
	assert.Equal(t, 123.4, az)

	slewing, ok := h.store.Bool("slewing")
	require.True(t, ok)
	assert.False(t, slewing)

	closed, _ := h.store.Bool("DOME_SHUTTER.SHUTTER_CLOSE")
	assert.True(t, closed)

	// an attribute answering with an error is absent
	_, ok = h.store.Get("athome")
	assert.False(t, ok)

	h.device.set("athome", true)
	h.poll(t)
	home, ok := h.store.Bool("athome")
	require.True(t, ok)
	assert.True(t, home)

	h.device.set("athome", &Error{Number: ErrorUnspecified})
	h.poll(t)
	_, ok = h.store.Get("athome")
	assert.False(t, ok)
}

func TestPollConnectsDevice(t *testing.T) {
	values := domeValues()
	values["connected"] = false
	h := newHarness(t, "dome", values)
	require.True(t, h.driver.StartCommunication())

	h.poll(t)
	h.poll(t)
	puts := h.device.puts()
	require.Len(t, puts, 1)
	assert.Equal(t, "connected", puts[0].attribute)
	assert.Equal(t, "true", puts[0].params.Get("Connected"))
	assert.Equal(t, device.Connected, h.driver.State())
}

func TestCommandsAreQueuedForTheNextPoll(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	assert.False(t, h.driver.OpenShutter(), "not started")

	require.True(t, h.driver.StartCommunication())
	assert.False(t, h.driver.OpenShutter(), "not connected yet")

	h.poll(t)
	require.True(t, h.driver.OpenShutter())
	require.True(t, h.driver.SlewToAltAz(0, 200))
	assert.Empty(t, h.device.puts())

	slewing, _ := h.store.Bool("slewing")
	assert.True(t, slewing)

	// the device still reports the old state, the queued slew wins
	h.poll(t)
	slewing, _ = h.store.Bool("slewing")
	assert.True(t, slewing)

	h.poll(t)
	puts := h.device.puts()
	require.Len(t, puts, 2)
	assert.Equal(t, "openshutter", puts[0].attribute)
	assert.Equal(t, "slewtoazimuth", puts[1].attribute)
	assert.Equal(t, "200", puts[1].params.Get("Azimuth"))
}

func TestSlewFinishedAfterSettling(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	require.NoError(t, h.driver.Set(device.PropSettlingTime, time.Second))
	require.True(t, h.driver.StartCommunication())
	h.poll(t)

	require.True(t, h.driver.SlewToAltAz(0, 200))
	h.device.set("slewing", true)
	h.poll(t)

	h.device.set("slewing", false)
	h.poll(t)
	assert.Eventually(t, func() bool { return h.clock.Tickers() == 2 }, time.Second, 5*time.Millisecond)

	// the settle timer and the poll ticker both fire; the poll is harmless
	h.clock.Tick()
	ev := h.waitEvent(t, event.SlewFinished)
	assert.Equal(t, "Simulator", ev.Device)
}

func TestSwitchValues(t *testing.T) {
	h := newHarness(t, "switch", map[string]any{
		"connected":      true,
		"maxswitch":      2,
		"getswitchvalue": 1.0,
	})
	require.True(t, h.driver.StartCommunication())
	h.poll(t)

	n, _ := h.store.Int("maxswitch")
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"POWER_CONTROL.POWER_CONTROL_1", "POWER_CONTROL.POWER_CONTROL_2"}, h.store.Keys("POWER_CONTROL."))

	h.device.mu.Lock()
	var ids []string
	for _, r := range h.device.requests {
		if r.attribute == "getswitchvalue" {
			ids = append(ids, r.params.Get("Id"))
		}
	}
	h.device.mu.Unlock()
	assert.Equal(t, []string{"0", "1"}, ids)

	h.device.set("getswitchvalue", &Error{Number: ErrorInvalidValue})
	h.poll(t)
	assert.Empty(t, h.store.Keys("POWER_CONTROL."))
}

func TestStopPreventsLateWrites(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	require.True(t, h.driver.StartCommunication())
	h.poll(t)

	h.driver.mu.Lock()
	client, writer := h.driver.client, h.driver.writer
	h.driver.mu.Unlock()

	require.True(t, h.driver.StopCommunication())
	h.waitEvent(t, event.DeviceDisconnected)
	assert.Equal(t, device.Disconnected, h.driver.State())
	assert.Equal(t, 0, h.store.Len())

	// a poll that was in flight when the driver stopped
	h.driver.pollTick(context.Background(), client, writer)
	assert.Equal(t, 0, h.store.Len())
	assert.Eventually(t, func() bool { return h.clock.Tickers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDeviceDisconnectClearsCache(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	require.True(t, h.driver.StartCommunication())
	h.poll(t)
	h.waitEvent(t, event.DeviceConnected)
	require.True(t, h.driver.SlewToAltAz(0, 200))
	require.Positive(t, h.store.Len())

	h.device.set("connected", false)
	h.poll(t)
	h.waitEvent(t, event.DeviceDisconnected)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, device.Connecting, h.driver.State())

	// the reconnect is sent, the slew queued before the drop is not
	h.poll(t)
	h.waitEvent(t, event.DeviceConnected)
	puts := h.device.puts()
	require.Len(t, puts, 1)
	assert.Equal(t, "connected", puts[0].attribute)

	az, ok := h.store.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
	require.True(t, ok)
	assert.Equal(t, 123.4, az)
	slewing, _ := h.store.Bool("slewing")
	assert.False(t, slewing)
}

func TestStartRestartsWithNewSettings(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	require.True(t, h.driver.StartCommunication())
	h.poll(t)

	other, ts := newFakeDevice(t, "dome", domeValues())
	other.set("azimuth", 42.0)
	h.driver.Configure(config.FrameworkConfig{
		Address:    strings.TrimPrefix(ts.URL, "http://"),
		DeviceName: "Simulator",
	})
	require.True(t, h.driver.StartCommunication())
	assert.Equal(t, 0, h.store.Len())

	h.poll(t)
	az, _ := h.store.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
	assert.Equal(t, 42.0, az)
	assert.Eventually(t, func() bool { return h.clock.Tickers() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduledPolling(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	require.True(t, h.driver.StartCommunication())
	assert.Eventually(t, func() bool { return h.clock.Tickers() == 1 }, time.Second, 5*time.Millisecond)

	h.clock.Tick()
	h.waitEvent(t, event.DeviceConnected)
	assert.Eventually(t, func() bool {
		_, ok := h.store.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestUnreachableDevice(t *testing.T) {
	h := newHarness(t, "dome", domeValues())
	h.driver.Configure(config.FrameworkConfig{Address: "127.0.0.1:1"})
	require.True(t, h.driver.StartCommunication())

	h.poll(t)
	assert.Equal(t, device.Connecting, h.driver.State())
	assert.Equal(t, 0, h.store.Len())
}

func TestDiscoverDevices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/management/v1/configureddevices" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Response{Value: []DeviceInfo{
			{Name: "Dome Sim", Type: "Dome", Number: 0},
			{Name: "Camera Sim", Type: "Camera", Number: 1},
			{Name: "Dome 2", Type: "dome", Number: 2},
		}})
	}))
	t.Cleanup(ts.Close)
	addr := strings.TrimPrefix(ts.URL, "http://")

	pool := scheduler.NewPool(1, scheduler.NewManualClock(), testLogger())
	d := NewDriver("dome", cache.New(), event.Emitter{}, pool, testLogger())
	d.Configure(config.FrameworkConfig{Address: addr})
	// nobody answers the broadcast
	d.DiscoveryTarget = "127.0.0.1:9"
	d.DiscoveryWait = 50 * time.Millisecond

	devices, err := d.DiscoverDevices(context.Background(), "dome")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Dome 2 [" + addr + "/2]",
		"Dome Sim [" + addr + "/0]",
	}, devices)
}

func TestConfiguredDevicesRejectsErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{ErrorNumber: ErrorUnspecified, ErrorMessage: "broken"})
	}))
	t.Cleanup(ts.Close)

	_, err := ConfiguredDevices(context.Background(), nil, "http", strings.TrimPrefix(ts.URL, "http://"))
	assert.ErrorIs(t, err, &Error{Number: ErrorUnspecified})
}
