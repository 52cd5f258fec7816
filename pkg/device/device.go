// Package device provides the facade that consumers hold for each device
// slot. The facade forwards every call to whichever backend is currently
// selected, so consumers never care which protocol serves the slot.
package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"devicelink/pkg/cache"
	"devicelink/pkg/config"
	"devicelink/pkg/event"
)

// Device is the facade of one device slot.
type Device struct {
	slot   string
	store  *cache.Store
	events event.Emitter
	logger log.FieldLogger

	mu        sync.RWMutex
	backends  map[string]Backend
	framework string

	// Last values set through the facade, reported while no backend is active.
	settings Settings
}

func New(slot string, store *cache.Store, events event.Emitter, logger log.FieldLogger) *Device {
	if store == nil {
		store = cache.New()
	}
	return &Device{
		slot:     slot,
		store:    store,
		events:   events,
		logger:   logger.WithField("slot", slot),
		backends: make(map[string]Backend),
	}
}

func (d *Device) Slot() string {
	return d.slot
}

// Cache returns the property cache of the slot.
func (d *Device) Cache() *cache.Store {
	return d.store
}

// Events returns the emitter backends of this slot publish through.
func (d *Device) Events() event.Emitter {
	return d.events
}

// AddBackend makes b selectable under framework.
func (d *Device) AddBackend(framework string, b Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backends[framework] = b
}

// Frameworks returns the names of the configured backends.
func (d *Device) Frameworks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.backends))
	for name := range d.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetFramework selects the backend used by all further calls. An empty name
// deselects. It does not start communication.
func (d *Device) SetFramework(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name != config.FrameworkNone {
		if _, ok := d.backends[name]; !ok {
			return fmt.Errorf("%w: %q for %s", ErrUnknownFramework, name, d.slot)
		}
	}
	d.framework = name
	return nil
}

func (d *Device) Framework() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.framework
}

// Backend returns the selected backend or nil.
func (d *Device) Backend() Backend {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.backends[d.framework]
}

// BackendFor returns the backend registered under framework.
func (d *Device) BackendFor(framework string) (Backend, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.backends[framework]
	return b, ok
}

// Configure applies cfg to the backend of framework.
func (d *Device) Configure(framework string, cfg config.FrameworkConfig) error {
	b, ok := d.BackendFor(framework)
	if !ok {
		return fmt.Errorf("%w: %q for %s", ErrUnknownFramework, framework, d.slot)
	}
	b.Configure(cfg)
	return nil
}

// StartCommunication clears the cache and starts the selected backend. It
// returns false when no framework is selected.
func (d *Device) StartCommunication() bool {
	b := d.Backend()
	if b == nil {
		return false
	}

	d.store.Clear()
	ok := b.StartCommunication()
	d.logger.Debugf("Start communication via %s: %v", d.Framework(), ok)
	return ok
}

// StopCommunication stops the selected backend. It is idempotent.
func (d *Device) StopCommunication() bool {
	b := d.Backend()
	if b == nil {
		return true
	}
	return b.StopCommunication()
}

// State returns the connection state of the selected backend.
func (d *Device) State() ConnState {
	b := d.Backend()
	if b == nil {
		return Disconnected
	}
	return b.State()
}

// Set records value locally and forwards it to the selected backend.
func (d *Device) Set(prop string, value any) error {
	if err := d.settings.Set(prop, value); err != nil {
		return err
	}
	if b := d.Backend(); b != nil {
		return b.Set(prop, value)
	}
	return nil
}

// Get returns the backend's value, or the last value set on the facade when
// no backend is selected.
func (d *Device) Get(prop string) (any, bool) {
	if b := d.Backend(); b != nil {
		if v, ok := b.Get(prop); ok {
			return v, true
		}
	}
	return d.settings.Get(prop)
}

func (d *Device) SetHost(host string) error {
	return d.Set(PropHost, host)
}

func (d *Device) Host() string {
	v, _ := d.Get(PropHost)
	s, _ := v.(string)
	return s
}

func (d *Device) SetDeviceName(name string) error {
	return d.Set(PropDeviceName, name)
}

func (d *Device) DeviceName() string {
	v, _ := d.Get(PropDeviceName)
	s, _ := v.(string)
	return s
}

func (d *Device) SetSettlingTime(t time.Duration) error {
	return d.Set(PropSettlingTime, t)
}

func (d *Device) SettlingTime() time.Duration {
	v, _ := d.Get(PropSettlingTime)
	t, _ := v.(time.Duration)
	return t
}

func (d *Device) SetUpdateRate(ms int) error {
	return d.Set(PropUpdateRate, ms)
}

func (d *Device) UpdateRate() int {
	v, _ := d.Get(PropUpdateRate)
	n, _ := v.(int)
	return n
}

// Discover lists the devices offered by the server of framework.
func (d *Device) Discover(ctx context.Context, framework, deviceType string) ([]string, error) {
	b, ok := d.BackendFor(framework)
	if !ok {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownFramework, framework, d.slot)
	}
	disc, ok := b.(Discoverer)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no discovery", ErrUnsupported, framework)
	}
	return disc.DiscoverDevices(ctx, deviceType)
}

// control returns the selected backend as T.
func control[T any](d *Device) (T, error) {
	var zero T

	b := d.Backend()
	if b == nil {
		return zero, fmt.Errorf("%w: %s", ErrNoActiveFramework, d.slot)
	}
	c, ok := b.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnsupported, b)
	}
	return c, nil
}
