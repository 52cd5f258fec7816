package indi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
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

const domeName = "Dome Simulator"

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

// fakeServer accepts INDI clients on a loopback port.
type fakeServer struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{ln: ln, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.conns <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) accept(t *testing.T) *serverConn {
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { conn.Close() })
		return &serverConn{conn: conn, r: bufio.NewReader(conn)}
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
	}
	return nil
}

type serverConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *serverConn) readLine(t *testing.T) string {
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func (c *serverConn) write(t *testing.T, format string, args ...any) {
	_, err := fmt.Fprintf(c.conn, format, args...)
	require.NoError(t, err)
}

type harness struct {
	driver *Driver
	store  *cache.Store
	clock  *scheduler.ManualClock
	events <-chan event.Event
	server *fakeServer
}

func newHarness(t *testing.T, cfg config.FrameworkConfig) *harness {
	server := newFakeServer(t)
	clock := scheduler.NewManualClock()
	pool := scheduler.NewPool(4, clock, testLogger())
	bus := event.NewBus(testLogger())
	events, cancel := bus.Subscribe(64)
	t.Cleanup(cancel)

	store := cache.New()
	d := NewDriver("dome", store, bus.Emitter("dome"), pool, testLogger())
	cfg.Host = "127.0.0.1"
	cfg.Port = server.port()
	d.Configure(cfg)
	t.Cleanup(func() { d.StopCommunication() })

	return &harness{driver: d, store: store, clock: clock, events: events, server: server}
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

// connect starts the driver and walks the server through the handshake up
// to the point where the device reports itself connected.
func (h *harness) connect(t *testing.T) *serverConn {
	require.True(t, h.driver.StartCommunication())
	h.clock.Tick()

	conn := h.server.accept(t)
	assert.Contains(t, conn.readLine(t), `<getProperties version="1.7" device="Dome Simulator">`)
	h.waitEvent(t, event.ServerConnected)

	conn.write(t, `<defSwitchVector device="%s" name="CONNECTION" state="Idle" perm="rw" rule="OneOfMany">
<defSwitch name="CONNECT">Off</defSwitch><defSwitch name="DISCONNECT">On</defSwitch>
</defSwitchVector>`, domeName)
	h.waitEvent(t, event.DeviceFound)
	assert.Contains(t, conn.readLine(t), `<oneSwitch name="CONNECT">On</oneSwitch>`)

	conn.write(t, `<defNumberVector device="%s" name="POLLING_PERIOD" state="Idle" perm="rw">
<defNumber name="PERIOD_MS">1000</defNumber></defNumberVector>`, domeName)
	conn.write(t, `<defNumberVector device="%s" name="ABS_DOME_POSITION" state="Idle" perm="rw">
<defNumber name="DOME_ABSOLUTE_POSITION">10</defNumber></defNumberVector>`, domeName)
	conn.write(t, `<setSwitchVector device="%s" name="CONNECTION" state="Ok">
<oneSwitch name="CONNECT">On</oneSwitch><oneSwitch name="DISCONNECT">Off</oneSwitch>
</setSwitchVector>`, domeName)
	h.waitEvent(t, event.DeviceConnected)
	return conn
}

func TestDriverConnectsAndMirrorsProperties(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName, LoadConfig: true, UpdateRate: 500})
	conn := h.connect(t)

	assert.Contains(t, conn.readLine(t), `<newSwitchVector device="Dome Simulator" name="CONFIG_PROCESS"><oneSwitch name="CONFIG_LOAD">On</oneSwitch>`)
	assert.Contains(t, conn.readLine(t), `<oneNumber name="PERIOD_MS">500</oneNumber>`)

	conn.write(t, `<setNumberVector device="%s" name="ABS_DOME_POSITION" state="Ok">
<oneNumber name="DOME_ABSOLUTE_POSITION">123.4</oneNumber></setNumberVector>`, domeName)

	assert.Eventually(t, func() bool {
		az, ok := h.store.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
		return ok && az == 123.4
	}, 2*time.Second, 5*time.Millisecond)

	connected, _ := h.store.Bool("CONNECTION.CONNECT")
	assert.True(t, connected)
	assert.Equal(t, "indi", h.store.Owner())
	assert.Equal(t, device.Connected, h.driver.State())
}

func TestDriverDetectsINDIGO(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)
	assert.False(t, h.driver.IsINDIGO())

	conn.write(t, `<defSwitchVector device="%s" name="PROFILE" state="Ok" perm="rw" rule="OneOfMany">
<defSwitch name="INDIGO">On</defSwitch></defSwitchVector>`, domeName)
	conn.write(t, `<defNumberVector device="%s" name="AUX_POWER_OUTLET" state="Ok" perm="rw">
<defNumber name="OUTLET_1">1</defNumber></defNumberVector>`, domeName)

	assert.Eventually(t, h.driver.IsINDIGO, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, ok := h.store.Float("POWER_CONTROL.POWER_CONTROL_1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	on, ok := h.store.Bool("PROFILE.INDIGO")
	require.True(t, ok)
	assert.True(t, on)
}

func TestDriverIgnoresOtherDevices(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)

	conn.write(t, `<defNumberVector device="Telescope Simulator" name="HORIZONTAL_COORD" state="Ok" perm="rw">
<defNumber name="ALT">45</defNumber></defNumberVector>`)
	conn.write(t, `<defTextVector device="%s" name="DRIVER_INFO" state="Ok" perm="ro">
<defText name="DRIVER_NAME">Dome Simulator</defText></defTextVector>`, domeName)

	assert.Eventually(t, func() bool {
		_, ok := h.store.String("DRIVER_INFO.DRIVER_NAME")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	_, ok := h.store.Get("HORIZONTAL_COORD.ALT")
	assert.False(t, ok)
}

func TestDriverMessages(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName, ShowMessages: true})
	conn := h.connect(t)

	conn.write(t, `<message device="%s" timestamp="2024-03-01T20:00:00" message="[WARNING] Rain detected"/>`, domeName)

	ev := h.waitEvent(t, event.Message)
	assert.Equal(t, event.LevelWarning, ev.Level)
	assert.Equal(t, "Rain detected", ev.Text)
	assert.Equal(t, "dome", ev.Slot)
}

func TestDriverCommands(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	assert.False(t, h.driver.OpenShutter())

	conn := h.connect(t)
	conn.readLine(t) // polling period

	require.True(t, h.driver.SlewToAltAz(0, 200))
	assert.Contains(t, conn.readLine(t), `<newNumberVector device="Dome Simulator" name="ABS_DOME_POSITION"><oneNumber name="DOME_ABSOLUTE_POSITION">200</oneNumber>`)

	require.True(t, h.driver.OpenShutter())
	assert.Contains(t, conn.readLine(t), `name="DOME_SHUTTER"><oneSwitch name="SHUTTER_OPEN">On</oneSwitch>`)

	require.True(t, h.driver.AbortSlew())
	assert.Contains(t, conn.readLine(t), `name="DOME_ABORT_MOTION"><oneSwitch name="ABORT">On</oneSwitch>`)
}

func TestDriverSlewFinished(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)

	conn.write(t, `<setNumberVector device="%s" name="ABS_DOME_POSITION" state="Busy">
<oneNumber name="DOME_ABSOLUTE_POSITION">50</oneNumber></setNumberVector>`, domeName)
	conn.write(t, `<setNumberVector device="%s" name="ABS_DOME_POSITION" state="Ok">
<oneNumber name="DOME_ABSOLUTE_POSITION">90</oneNumber></setNumberVector>`, domeName)

	assert.Eventually(t, func() bool {
		az, _ := h.store.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
		return az == 90
	}, 2*time.Second, 5*time.Millisecond)

	// retry ticker plus settle timer
	require.Eventually(t, func() bool { return h.clock.Tickers() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.clock.Tick()
	ev := h.waitEvent(t, event.SlewFinished)
	assert.Equal(t, domeName, ev.Device)
}

func TestServerDisconnectClearsCache(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)
	require.Positive(t, h.store.Len())

	conn.conn.Close()
	ev := h.waitEvent(t, event.ServerDisconnected)
	assert.Equal(t, []string{domeName}, ev.Devices)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, device.Disconnected, h.driver.State())

	// the retry ticker reconnects
	h.clock.Tick()
	h.server.accept(t)
}

func TestDeviceRemovedClearsCache(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)
	require.Positive(t, h.store.Len())

	conn.write(t, `<delProperty device="%s"/>`, domeName)
	ev := h.waitEvent(t, event.DeviceRemoved)
	assert.Equal(t, domeName, ev.Device)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, device.Connecting, h.driver.State())
	assert.False(t, h.driver.OpenShutter())
}

func TestDeviceDisconnectKeepsWatching(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)

	conn.write(t, `<setSwitchVector device="%s" name="CONNECTION" state="Ok">
<oneSwitch name="CONNECT">Off</oneSwitch><oneSwitch name="DISCONNECT">On</oneSwitch>
</setSwitchVector>`, domeName)
	ev := h.waitEvent(t, event.DeviceDisconnected)
	assert.Equal(t, domeName, ev.Device)
	assert.Equal(t, device.Connecting, h.driver.State())
	assert.False(t, h.driver.OpenShutter())

	connected, ok := h.store.Bool("CONNECTION.CONNECT")
	require.True(t, ok)
	assert.False(t, connected)

	// connecting again is reported once more
	conn.write(t, `<setSwitchVector device="%s" name="CONNECTION" state="Ok">
<oneSwitch name="CONNECT">On</oneSwitch><oneSwitch name="DISCONNECT">Off</oneSwitch>
</setSwitchVector>`, domeName)
	h.waitEvent(t, event.DeviceConnected)
	assert.Equal(t, device.Connected, h.driver.State())
}

func TestStartRestartsWithNewSettings(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	old := h.connect(t)

	other := newFakeServer(t)
	h.driver.Configure(config.FrameworkConfig{DeviceName: domeName, Host: "127.0.0.1", Port: other.port()})
	require.True(t, h.driver.StartCommunication())

	// the old connection is closed
	require.NoError(t, old.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, err := old.r.ReadByte(); err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
	}

	h.clock.Tick()
	conn := other.accept(t)
	assert.Contains(t, conn.readLine(t), `<getProperties version="1.7" device="Dome Simulator">`)
}

func TestClosedClientDiscardsLateDial(t *testing.T) {
	server := newFakeServer(t)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(server.port()))
	client := NewClient(addr, &discoveryHandler{interfaces: make(map[string]int)}, testLogger())

	client.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := new(net.Dialer).DialContext(ctx, network, addr)
		// the owner stops while the dial is in flight
		assert.NoError(t, client.DisconnectServer())
		return conn, err
	}

	assert.ErrorIs(t, client.ConnectServer(context.Background()), ErrClientClosed)
	assert.False(t, client.IsServerConnected())

	conn := server.accept(t)
	require.NoError(t, conn.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, client.ConnectServer(context.Background()), ErrClientClosed)
}

func TestStopPreventsLateWrites(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{DeviceName: domeName})
	conn := h.connect(t)

	require.True(t, h.driver.StopCommunication())
	require.True(t, h.driver.StopCommunication())
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, "", h.store.Owner())

	// the client is gone, so the write may fail
	fmt.Fprintf(conn.conn, `<setNumberVector device="%s" name="ABS_DOME_POSITION" state="Ok">
<oneNumber name="DOME_ABSOLUTE_POSITION">1</oneNumber></setNumberVector>`, domeName)
	h.clock.Tick()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, 0, h.clock.Tickers())
}

func TestRetryWithoutDeviceNameDoesNothing(t *testing.T) {
	h := newHarness(t, config.FrameworkConfig{})
	require.True(t, h.driver.StartCommunication())
	h.clock.Tick()

	select {
	case <-h.server.conns:
		t.Fatal("connected without a device name")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, device.Disconnected, h.driver.State())
}

func TestDiscoverDevices(t *testing.T) {
	server := newFakeServer(t)
	d := NewDriver("dome", cache.New(), event.Emitter{}, scheduler.NewPool(1, nil, testLogger()), testLogger())
	d.Configure(config.FrameworkConfig{Host: "127.0.0.1", Port: server.port()})
	d.DiscoverySettle = 200 * time.Millisecond

	go func() {
		conn := <-server.conns
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		for name, iface := range map[string]int{
			"Dome Simulator":      InterfaceDome,
			"Telescope Simulator": InterfaceTelescope,
			"Generic Device":      InterfaceGeneral,
		} {
			fmt.Fprintf(conn, `<defTextVector device="%s" name="DRIVER_INFO" state="Idle" perm="ro">
<defText name="DRIVER_INTERFACE">%d</defText></defTextVector>`, name, iface)
		}
		time.Sleep(time.Second)
	}()

	names, err := d.DiscoverDevices(context.Background(), "dome")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dome Simulator", "Generic Device"}, names)
}

func TestDiscoverDevicesUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := NewDriver("dome", cache.New(), event.Emitter{}, scheduler.NewPool(1, nil, testLogger()), testLogger())
	d.Configure(config.FrameworkConfig{Host: "127.0.0.1", Port: port})

	_, err = d.DiscoverDevices(context.Background(), "dome")
	assert.Error(t, err)
}
