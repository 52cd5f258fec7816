package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
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

const owner = "alpaca"

var (
	_ device.Backend            = (*Driver)(nil)
	_ device.Discoverer         = (*Driver)(nil)
	_ device.DomeControl        = (*Driver)(nil)
	_ device.TelescopeControl   = (*Driver)(nil)
	_ device.CoverControl       = (*Driver)(nil)
	_ device.FilterWheelControl = (*Driver)(nil)
	_ device.FocuserControl     = (*Driver)(nil)
)

// command is a PUT waiting for the next poll tick.
type command struct {
	attribute string
	params    url.Values
}

// Driver serves a device slot by polling an Alpaca server. There is no
// session: while started, a periodic task reads the device's attributes into
// the cache and sends at most one queued command per tick.
type Driver struct {
	device.Settings

	deviceType string
	store      *cache.Store
	events     event.Emitter
	pool       *scheduler.Pool
	logger     log.FieldLogger

	// HTTPClient is used for every request; nil means a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	DiscoveryTarget string
	DiscoveryWait   time.Duration

	mu          sync.Mutex
	cfg         config.FrameworkConfig
	client      *Client
	writer      *cache.Writer
	poll        *scheduler.Task
	settle      *scheduler.Task
	queue       []command
	connected   bool
	connectSent bool
	slewing     bool
}

func NewDriver(deviceType string, store *cache.Store, events event.Emitter, pool *scheduler.Pool, logger log.FieldLogger) *Driver {
	d := &Driver{
		deviceType: deviceType,
		store:      store,
		events:     events,
		pool:       pool,
		logger:     logger.WithField("framework", owner),
		cfg:        config.FrameworkConfig{}.WithDefaults(config.FrameworkAlpaca),

		DiscoveryTarget: DefaultBroadcast,
		DiscoveryWait:   DefaultDiscoveryWait,
	}
	d.Settings.Set(device.PropHost, d.cfg.Address)
	d.Settings.Set(device.PropUpdateRate, d.cfg.UpdateRate)
	return d
}

func (d *Driver) Configure(cfg config.FrameworkConfig) {
	cfg = cfg.WithDefaults(config.FrameworkAlpaca)

	d.Settings.Set(device.PropHost, cfg.Address)
	d.Settings.Set(device.PropDeviceName, cfg.DeviceName)
	d.Settings.Set(device.PropUpdateRate, cfg.UpdateRate)

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

// clientConfig returns the framework settings with the live passthrough
// values applied.
func (d *Driver) clientConfig() config.FrameworkConfig {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	if host := d.Host(); host != "" {
		cfg.Address = host
	}
	cfg.UpdateRate = d.UpdateRate()
	return cfg
}

func (d *Driver) State() device.ConnState {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.poll == nil:
		return device.Disconnected
	case d.connected:
		return device.Connected
	}
	return device.Connecting
}

// StartCommunication starts the poll task. It never touches the network.
// A running driver is restarted so that new settings take effect.
func (d *Driver) StartCommunication() bool {
	d.StopCommunication()
	cfg := d.clientConfig()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.poll != nil {
		return true
	}

	d.client = NewClient(cfg, d.deviceType, d.HTTPClient, d.logger)
	d.writer = d.store.Acquire(owner)
	d.writer.Clear()
	d.queue = nil
	d.connected = false
	d.connectSent = false
	d.slewing = false

	interval := time.Duration(cfg.UpdateRate) * time.Millisecond
	client, writer := d.client, d.writer
	d.poll = d.pool.Every(interval, func(ctx context.Context) {
		d.pollTick(ctx, client, writer)
	})

	d.logger.WithFields(log.Fields{
		"url":      client.BaseURL(),
		"interval": interval,
	}).Info("Started Alpaca polling")
	return true
}

// StopCommunication cancels polling. Requests still in flight complete, but
// their results are dropped because the cache writer has been revoked.
func (d *Driver) StopCommunication() bool {
	d.mu.Lock()
	if d.poll == nil {
		d.mu.Unlock()
		return true
	}

	d.poll.Stop()
	d.poll = nil
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
	d.writer.Clear()
	d.writer.Release()
	d.client = nil
	d.queue = nil
	wasConnected := d.connected
	d.connected = false
	d.mu.Unlock()

	if wasConnected {
		d.events.Emit(event.Event{Kind: event.DeviceDisconnected, Device: d.DeviceName()})
	}
	d.logger.Info("Stopped Alpaca polling")
	return true
}

// pollTick is one cycle: connection check, queued command, attributes.
func (d *Driver) pollTick(ctx context.Context, client *Client, writer *cache.Writer) {
	// Requests are not aborted by a stop; the revoked writer discards them.
	reqCtx := context.WithoutCancel(ctx)

	connected, err := client.GetBool(reqCtx, "connected")
	if err != nil {
		d.logger.WithError(err).Warn("Alpaca device not reachable")
		d.setConnected(ctx, writer, false)
		return
	}
	if !connected {
		if d.setConnected(ctx, writer, false) {
			d.sendConnect(reqCtx, client)
		}
		return
	}
	if !d.setConnected(ctx, writer, true) {
		return
	}

	if cmd, ok := d.nextCommand(); ok {
		if _, err := client.Put(reqCtx, cmd.attribute, cmd.params); err != nil {
			d.logger.WithError(err).WithField("attribute", cmd.attribute).Error("Alpaca command failed")
		}
	}

	var maxSwitch int
	for _, attr := range attributeTables[d.deviceType] {
		if ctx.Err() != nil {
			return
		}

		value, err := d.read(reqCtx, client, attr)
		if err != nil {
			d.logger.WithError(err).WithField("attribute", attr.name).Error("Failed to read Alpaca attribute")
			for _, key := range attr.keys() {
				writer.Delete(key)
			}
			continue
		}
		if attr.name == "slewing" {
			value = d.reconcileSlewing(writer, value.(bool))
		}
		if attr.name == "maxswitch" {
			maxSwitch, _ = value.(int)
		}
		for key, v := range attr.values(value) {
			writer.Set(key, v)
		}
	}

	for id := 0; id < maxSwitch && ctx.Err() == nil; id++ {
		d.readSwitch(reqCtx, client, writer, id)
	}
}

func (d *Driver) read(ctx context.Context, client *Client, attr attribute) (any, error) {
	raw, err := client.Get(ctx, attr.name, nil)
	if err != nil {
		return nil, err
	}
	return attr.decode(raw)
}

func (d *Driver) readSwitch(ctx context.Context, client *Client, writer *cache.Writer, id int) {
	key := fmt.Sprintf("POWER_CONTROL.POWER_CONTROL_%d", id+1)
	raw, err := client.Get(ctx, "getswitchvalue", url.Values{"Id": {strconv.Itoa(id)}})
	if err == nil {
		var value float64
		if value, err = Decode[float64](raw); err == nil {
			writer.Set(key, value)
			return
		}
	}
	d.logger.WithError(err).WithField("switch", id).Error("Failed to read Alpaca switch")
	writer.Delete(key)
}

// setConnected records the device's connected state and emits the
// transition. It reports false if the driver was stopped meanwhile.
func (d *Driver) setConnected(ctx context.Context, writer *cache.Writer, connected bool) bool {
	d.mu.Lock()
	if ctx.Err() != nil || d.writer != writer || !writer.Active() {
		d.mu.Unlock()
		return false
	}
	changed := d.connected != connected
	d.connected = connected
	if connected {
		d.connectSent = false
	} else if changed {
		d.dropPending()
		writer.Clear()
	}
	d.mu.Unlock()

	if changed {
		kind := event.DeviceDisconnected
		if connected {
			kind = event.DeviceConnected
		}
		d.logger.WithField("device", d.DeviceName()).Infof("Alpaca %s", kind)
		d.events.Emit(event.Event{Kind: kind, Device: d.DeviceName()})
	}
	return true
}

// dropPending forgets queued commands and the settle timer of a device that
// went away. d.mu must be held.
func (d *Driver) dropPending() {
	d.queue = nil
	d.slewing = false
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
}

// sendConnect asks the device to connect, once per disconnected period.
func (d *Driver) sendConnect(ctx context.Context, client *Client) {
	d.mu.Lock()
	sent := d.connectSent
	d.connectSent = true
	d.mu.Unlock()

	if sent {
		return
	}
	if _, err := client.Put(ctx, "connected", url.Values{"Connected": {"true"}}); err != nil {
		d.logger.WithError(err).Error("Failed to connect Alpaca device")
	}
}

func (d *Driver) nextCommand() (command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return command{}, false
	}
	cmd := d.queue[0]
	d.queue = d.queue[1:]
	return cmd, true
}

// reconcileSlewing applies a polled slewing value and returns the value to
// publish. When a slew has just ended the settle timer starts, and
// slewFinished follows it.
func (d *Driver) reconcileSlewing(writer *cache.Writer, slewing bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writer != writer || !writer.Active() {
		return slewing
	}
	// a queued slew has not reached the device yet
	for _, cmd := range d.queue {
		if isSlewCommand(cmd.attribute) {
			return true
		}
	}

	finished := d.slewing && !slewing
	d.slewing = slewing
	if !finished {
		return slewing
	}

	if d.settle != nil {
		d.settle.Stop()
	}
	delay := d.SettlingTime()
	if delay <= 0 {
		delay = time.Millisecond
	}
	d.settle = d.pool.After(delay, func(ctx context.Context) {
		if ctx.Err() != nil || !writer.Active() {
			return
		}
		d.events.Emit(event.Event{Kind: event.SlewFinished, Device: d.DeviceName()})
	})
	return slewing
}

func isSlewCommand(attribute string) bool {
	switch attribute {
	case "slewtoazimuth", "slewtoaltaz", "slewtoaltazasync", "slewtoaltitude":
		return true
	}
	return false
}
