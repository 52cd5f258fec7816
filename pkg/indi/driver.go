package indi

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"devicelink/pkg/cache"
	"devicelink/pkg/config"
	"devicelink/pkg/device"
	"devicelink/pkg/event"
	"devicelink/pkg/scheduler"
)

const (
	DefaultRetryDelay      = 1500 * time.Millisecond
	DefaultDiscoverySettle = 2 * time.Second

	owner = "indi"
)

var (
	_ device.Backend            = (*Driver)(nil)
	_ device.Discoverer         = (*Driver)(nil)
	_ device.DomeControl        = (*Driver)(nil)
	_ device.TelescopeControl   = (*Driver)(nil)
	_ device.CoverControl       = (*Driver)(nil)
	_ device.FilterWheelControl = (*Driver)(nil)
	_ device.FocuserControl     = (*Driver)(nil)
)

type phase int

const (
	phaseIdle phase = iota
	phaseConnecting
	phaseWatching
	phaseConnected
)

// Driver serves a device slot from an INDI server. It keeps trying to reach
// the server while started, binds to the configured device once the server
// announces it, and mirrors every property of that device into the cache.
type Driver struct {
	device.Settings

	deviceType string
	store      *cache.Store
	events     event.Emitter
	pool       *scheduler.Pool
	logger     log.FieldLogger

	RetryDelay      time.Duration
	DiscoverySettle time.Duration

	mu           sync.Mutex
	port         int
	loadConfig   bool
	showMessages bool
	deviceList   []string

	gen       uint64
	client    *Client
	writer    *cache.Writer
	retry     *scheduler.Task
	settle    *scheduler.Task
	phase     phase
	bound     string
	connected bool
	isINDIGO  bool
	states    map[string]string
}

func NewDriver(deviceType string, store *cache.Store, events event.Emitter, pool *scheduler.Pool, logger log.FieldLogger) *Driver {
	d := &Driver{
		deviceType:      deviceType,
		store:           store,
		events:          events,
		pool:            pool,
		logger:          logger.WithField("framework", owner),
		RetryDelay:      DefaultRetryDelay,
		DiscoverySettle: DefaultDiscoverySettle,
		port:            config.DefaultINDIPort,
		states:          make(map[string]string),
	}
	d.Settings.Set(device.PropUpdateRate, config.DefaultUpdateRate)
	d.Settings.Set(device.PropHost, "localhost")
	return d
}

func (d *Driver) Configure(cfg config.FrameworkConfig) {
	cfg = cfg.WithDefaults(config.FrameworkINDI)

	d.Settings.Set(device.PropHost, cfg.Host)
	d.Settings.Set(device.PropDeviceName, cfg.DeviceName)
	d.Settings.Set(device.PropUpdateRate, cfg.UpdateRate)

	d.mu.Lock()
	d.port = cfg.Port
	d.loadConfig = cfg.LoadConfig
	d.showMessages = cfg.ShowMessages
	d.deviceList = append([]string(nil), cfg.DeviceList...)
	d.mu.Unlock()
}

// addr combines the host setting with the configured port. A host that
// already carries a port wins.
func (d *Driver) addr() string {
	host := d.Host()
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (d *Driver) State() device.ConnState {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.phase {
	case phaseConnecting, phaseWatching:
		return device.Connecting
	case phaseConnected:
		return device.Connected
	}
	return device.Disconnected
}

// IsINDIGO reports whether the server identified itself as INDIGO.
func (d *Driver) IsINDIGO() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isINDIGO
}

// StartCommunication arms the reconnect ticker. The first connection
// attempt happens one retry delay later. A running driver is restarted so
// that new settings take effect.
func (d *Driver) StartCommunication() bool {
	d.StopCommunication()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.retry != nil {
		return true
	}

	d.gen++
	d.writer = d.store.Acquire(owner)
	d.writer.Clear()
	d.client = NewClient(d.addr(), &clientHandler{d: d, gen: d.gen}, d.logger)
	d.phase = phaseIdle
	d.bound = ""
	d.connected = false
	d.isINDIGO = false
	d.states = make(map[string]string)
	d.retry = d.pool.Every(d.RetryDelay, d.retryTick)

	d.logger.WithField("server", d.client.Addr()).Info("Started INDI communication")
	return true
}

func (d *Driver) StopCommunication() bool {
	d.mu.Lock()
	if d.retry == nil {
		d.mu.Unlock()
		return true
	}

	d.retry.Stop()
	d.retry = nil
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
	d.writer.Clear()
	d.writer.Release()
	d.gen++

	client := d.client
	d.client = nil
	wasConnected := client.IsServerConnected()
	devices := client.Devices()
	d.phase = phaseIdle
	d.bound = ""
	d.connected = false
	d.mu.Unlock()

	if err := client.DisconnectServer(); err != nil {
		d.logger.WithError(err).Debug("Failed to close INDI connection")
	}
	if wasConnected {
		d.events.Emit(event.Event{Kind: event.ServerDisconnected, Devices: devices})
	}

	d.logger.Info("Stopped INDI communication")
	return true
}

func (d *Driver) retryTick(ctx context.Context) {
	if d.DeviceName() == "" {
		return
	}

	d.mu.Lock()
	client := d.client
	gen := d.gen
	if client == nil || client.IsServerConnected() {
		d.mu.Unlock()
		return
	}
	d.phase = phaseConnecting
	d.mu.Unlock()

	if err := client.ConnectServer(ctx); err != nil {
		d.logger.WithError(err).Debug("INDI server not reachable")

		d.mu.Lock()
		if d.gen == gen && d.phase == phaseConnecting {
			d.phase = phaseIdle
		}
		d.mu.Unlock()
	}
}

// current returns the client and bound device if h belongs to the running
// generation.
func (d *Driver) current(gen uint64) (*Client, *cache.Writer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gen != gen || d.client == nil {
		return nil, nil, false
	}
	return d.client, d.writer, true
}

// clientHandler routes client callbacks to the driver generation that
// created the client. Callbacks of an old client are ignored.
type clientHandler struct {
	d   *Driver
	gen uint64
}

func (h *clientHandler) ServerConnected() {
	d := h.d
	client, _, ok := d.current(h.gen)
	if !ok {
		return
	}

	d.mu.Lock()
	d.phase = phaseWatching
	d.mu.Unlock()

	name := d.DeviceName()
	if err := client.WatchDevice(name); err != nil {
		d.logger.WithError(err).Warn("Failed to watch INDI device")
	}
	d.logger.WithFields(log.Fields{
		"server": client.Addr(),
		"device": name,
	}).Info("INDI server connected")
	d.events.Emit(event.Event{Kind: event.ServerConnected})
}

func (h *clientHandler) ServerDisconnected(devices []string, err error) {
	d := h.d
	_, writer, ok := d.current(h.gen)
	if !ok {
		return
	}

	d.mu.Lock()
	d.phase = phaseIdle
	d.bound = ""
	d.connected = false
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
	d.mu.Unlock()

	writer.Clear()
	entry := d.logger.WithField("devices", devices)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("INDI server disconnected")
	d.events.Emit(event.Event{Kind: event.ServerDisconnected, Devices: devices})
}

func (h *clientHandler) NewDevice(name string) {
	d := h.d
	if _, _, ok := d.current(h.gen); !ok || name != d.DeviceName() {
		return
	}

	d.mu.Lock()
	d.bound = name
	d.mu.Unlock()

	d.logger.WithField("device", name).Info("INDI device found")
	d.events.Emit(event.Event{Kind: event.DeviceFound, Device: name})
}

func (h *clientHandler) RemoveDevice(name string) {
	d := h.d
	_, writer, ok := d.current(h.gen)
	if !ok {
		return
	}

	d.mu.Lock()
	if d.bound != name {
		d.mu.Unlock()
		return
	}
	d.bound = ""
	d.connected = false
	d.phase = phaseWatching
	d.mu.Unlock()

	writer.Clear()
	d.logger.WithField("device", name).Info("INDI device removed")
	d.events.Emit(event.Event{Kind: event.DeviceRemoved, Device: name})
}

func (h *clientHandler) NewProperty(v *Vector) {
	d := h.d
	client, _, ok := d.current(h.gen)
	if !ok || v.Name != "CONNECTION" || v.Device != d.boundDevice() {
		return
	}
	if err := client.ConnectDevice(v.Device); err != nil {
		d.logger.WithError(err).Warn("Failed to connect INDI device")
	}
}

func (h *clientHandler) UpdateProperty(v *Vector) {
	d := h.d
	client, writer, ok := d.current(h.gen)
	if !ok || v.Kind == BLOBKind || v.Device != d.boundDevice() {
		return
	}

	if v.Name == "PROFILE" && v.Kind == SwitchKind {
		if _, ok := v.Element("INDIGO"); ok {
			d.mu.Lock()
			d.isINDIGO = true
			d.mu.Unlock()
		}
	}

	for _, e := range v.Elements {
		key := Translate(v.Name + "." + e.Name)
		value, ok := coerce(v.Kind, e.Value)
		if !ok {
			writer.Delete(key)
			continue
		}
		writer.Set(key, value)
	}

	if v.Name == "CONNECTION" {
		d.connectionChanged(client, v.Device, v.Switch("CONNECT"))
	}
	d.trackSlew(v)
}

func (h *clientHandler) RemoveProperty(v *Vector) {
	d := h.d
	_, writer, ok := d.current(h.gen)
	if !ok || v.Device != d.boundDevice() {
		return
	}
	for _, e := range v.Elements {
		writer.Delete(Translate(v.Name + "." + e.Name))
	}
}

func (h *clientHandler) NewMessage(name, text string) {
	d := h.d
	if _, _, ok := d.current(h.gen); !ok {
		return
	}

	d.mu.Lock()
	show := d.showMessages
	bound := d.bound
	d.mu.Unlock()

	if !show || (name != "" && name != bound) {
		return
	}

	level, text := classifyMessage(text)
	d.events.Emit(event.Event{Kind: event.Message, Device: name, Level: level, Text: text})
}

func (d *Driver) boundDevice() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bound
}

func (d *Driver) connectionChanged(client *Client, name string, connected bool) {
	d.mu.Lock()
	if d.connected == connected {
		d.mu.Unlock()
		return
	}
	d.connected = connected
	loadConfig := d.loadConfig
	if connected {
		d.phase = phaseConnected
	} else {
		d.phase = phaseWatching
	}
	d.mu.Unlock()

	logger := d.logger.WithField("device", name)
	if !connected {
		logger.Info("INDI device disconnected")
		d.events.Emit(event.Event{Kind: event.DeviceDisconnected, Device: name})
		return
	}

	logger.Info("INDI device connected")
	if loadConfig {
		if err := client.SendNewSwitch(name, "CONFIG_PROCESS", map[string]bool{"CONFIG_LOAD": true}); err != nil {
			logger.WithError(err).Warn("Failed to load INDI device configuration")
		}
	}
	if _, ok := client.Number(name, "POLLING_PERIOD"); ok {
		period := map[string]float64{"PERIOD_MS": float64(d.UpdateRate())}
		if err := client.SendNewNumber(name, "POLLING_PERIOD", period); err != nil {
			logger.WithError(err).Warn("Failed to set INDI polling period")
		}
	} else {
		logger.Debug("Device has no polling period")
	}
	d.events.Emit(event.Event{Kind: event.DeviceConnected, Device: name})
}

// slewProperties are watched for a Busy to Ok transition, which ends a slew.
var slewProperties = map[string]bool{
	"ABS_DOME_POSITION":    true,
	"HORIZONTAL_COORD":     true,
	"EQUATORIAL_EOD_COORD": true,
}

func (d *Driver) trackSlew(v *Vector) {
	if !slewProperties[v.Name] {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	previous := d.states[v.Name]
	d.states[v.Name] = v.State
	if previous != StateBusy || v.State == StateBusy || v.State == StateAlert {
		return
	}

	if d.settle != nil {
		d.settle.Stop()
	}
	gen := d.gen
	d.settle = d.pool.After(d.settleDelay(), func(ctx context.Context) {
		if _, _, ok := d.current(gen); !ok || ctx.Err() != nil {
			return
		}
		d.events.Emit(event.Event{Kind: event.SlewFinished, Device: v.Device})
	})
}

func (d *Driver) settleDelay() time.Duration {
	if t := d.SettlingTime(); t > 0 {
		return t
	}
	// After with a zero duration would spin the ticker.
	return time.Millisecond
}

// coerce converts an element value to the cache representation of its kind.
func coerce(kind Kind, value string) (any, bool) {
	switch kind {
	case NumberKind:
		f, err := ParseNumber(value)
		if err != nil {
			return nil, false
		}
		return f, true
	case SwitchKind:
		return isOn(value), true
	case TextKind, LightKind:
		return value, true
	}
	return nil, false
}
