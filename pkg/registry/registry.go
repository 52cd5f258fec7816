// Package registry owns the device slots of the application. It builds a
// facade for every persisted slot, starts and stops their backends and
// keeps their configuration in the store.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"devicelink/pkg/cache"
	"devicelink/pkg/config"
	"devicelink/pkg/device"
	"devicelink/pkg/event"
)

// Stat is the connection indicator of a slot.
type Stat int

const (
	StatUnknown Stat = iota // never tried since the last stop
	StatFailed
	StatConnected
)

func (s Stat) String() string {
	switch s {
	case StatFailed:
		return "failed"
	case StatConnected:
		return "connected"
	}
	return "unknown"
}

// BuildFunc creates the backend of framework for a slot. It returns nil for
// frameworks it cannot serve.
type BuildFunc func(framework string, slot config.Slot, store *cache.Store, events event.Emitter) device.Backend

// Registry holds the slots and their facades.
type Registry struct {
	store  config.Store
	bus    *event.Bus
	logger log.FieldLogger

	mu      sync.RWMutex
	slots   map[string]config.Slot
	devices map[string]*device.Device
	stats   map[string]Stat
	prefs   config.Preferences
}

func New(store config.Store, bus *event.Bus, logger log.FieldLogger) *Registry {
	r := &Registry{
		store:   store,
		bus:     bus,
		logger:  logger.WithField("component", "registry"),
		slots:   make(map[string]config.Slot),
		devices: make(map[string]*device.Device),
		stats:   make(map[string]Stat),
	}
	bus.Handle(r.handleEvent)
	return r
}

// Load creates a facade for every slot in the store, with the backends
// build returns.
func (r *Registry) Load(build BuildFunc) error {
	prefs, err := r.store.Preferences()
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	r.mu.Lock()
	r.prefs = prefs
	r.mu.Unlock()

	slots, err := r.store.Slots()
	if err != nil {
		return fmt.Errorf("failed to load slots: %w", err)
	}

	for _, slot := range slots {
		store := cache.New()
		emitter := r.bus.Emitter(slot.Name)
		dev := device.New(slot.Name, store, emitter, r.logger)

		for _, fw := range sortedFrameworks(slot) {
			if b := build(fw, slot, store, emitter); b != nil {
				dev.AddBackend(fw, b)
			}
		}
		r.Add(slot, dev)
	}
	return nil
}

// Add registers dev as the facade of slot and selects the slot's framework.
func (r *Registry) Add(slot config.Slot, dev *device.Device) {
	emitter := dev.Events()
	dev.Cache().OnChange(func(key string, value any) {
		emitter.Emit(event.Event{Kind: event.PropertyChanged, Key: key, Value: value})
	})

	for fw, cfg := range slot.Frameworks {
		if _, ok := dev.BackendFor(fw); ok {
			dev.Configure(fw, cfg)
		}
	}
	if err := dev.SetFramework(slot.Framework); err != nil {
		r.logger.WithError(err).Warnf("Slot %s has no backend for its framework", slot.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot.Name] = slot.Clone()
	r.devices[slot.Name] = dev
	r.stats[slot.Name] = StatUnknown
}

// Names returns the slot names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Device(name string) (*device.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[name]
	return dev, ok
}

// Slot returns a copy of the slot's configuration.
func (r *Registry) Slot(name string) (config.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[name]
	if !ok {
		return config.Slot{}, fmt.Errorf("%w: %s", config.ErrSlotNotFound, name)
	}
	return slot.Clone(), nil
}

func (r *Registry) lookup(name string) (config.Slot, *device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[name]
	if !ok {
		return config.Slot{}, nil, fmt.Errorf("%w: %s", config.ErrSlotNotFound, name)
	}
	return slot.Clone(), r.devices[name], nil
}

// DeviceStat returns the connection indicator of the slot.
func (r *Registry) DeviceStat(name string) Stat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats[name]
}

func (r *Registry) setStat(name string, stat Stat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[name]; ok {
		r.stats[name] = stat
	}
}

func (r *Registry) handleEvent(ev event.Event) {
	switch ev.Kind {
	case event.DeviceConnected:
		r.setStat(ev.Slot, StatConnected)
	case event.DeviceDisconnected, event.ServerDisconnected:
		r.setStat(ev.Slot, StatFailed)
	}
}

func (r *Registry) Preferences() config.Preferences {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prefs
}

func (r *Registry) SetPreferences(prefs config.Preferences) error {
	if err := r.store.SavePreferences(prefs); err != nil {
		return err
	}
	r.mu.Lock()
	r.prefs = prefs
	r.mu.Unlock()
	return nil
}

// AutoStart reports whether the slot connects without user action. Alpaca
// and ASCOM slots only do when the AutoConnectASCOM preference is set.
func (r *Registry) AutoStart(name string) bool {
	slot, _, err := r.lookup(name)
	if err != nil {
		return false
	}
	switch slot.Framework {
	case config.FrameworkAlpaca, config.FrameworkASCOM:
		return r.Preferences().AutoConnectASCOM
	}
	return true
}

// StartDriver applies the slot's settings to the selected backend and
// starts it if autoStart is set. A running backend restarts with the new
// settings.
func (r *Registry) StartDriver(name string, autoStart bool) error {
	slot, dev, err := r.lookup(name)
	if err != nil {
		return err
	}
	if slot.Framework == config.FrameworkNone {
		return nil
	}

	cfg, _ := slot.Config(slot.Framework)
	if err := dev.Configure(slot.Framework, cfg); err != nil {
		return err
	}
	if err := dev.SetFramework(slot.Framework); err != nil {
		return err
	}
	if !autoStart {
		r.logger.Debugf("Slot %s configured for %s, not started", name, slot.Framework)
		return nil
	}

	if !dev.StartCommunication() {
		r.logger.Warnf("Slot %s could not start %s", name, slot.Framework)
		r.setStat(name, StatFailed)
		return nil
	}
	r.logger.Infof("Slot %s started via %s", name, slot.Framework)
	return nil
}

// StopDriver stops the slot's backend and clears its cache. Stopping a
// stopped slot is harmless.
func (r *Registry) StopDriver(name string) error {
	_, dev, err := r.lookup(name)
	if err != nil {
		return err
	}

	dev.StopCommunication()
	dev.Cache().Clear()
	r.setStat(name, StatUnknown)
	return nil
}

// DispatchDriverDropdown switches the slot to framework choice. The old
// backend is stopped before the new one is started, whatever the
// AutoConnectASCOM preference says; an empty choice only disables the slot.
func (r *Registry) DispatchDriverDropdown(name, choice string) error {
	slot, dev, err := r.lookup(name)
	if err != nil {
		return err
	}
	if choice != config.FrameworkNone {
		if _, ok := dev.BackendFor(choice); !ok {
			return fmt.Errorf("%w: %q for %s", device.ErrUnknownFramework, choice, name)
		}
	}

	if err := r.StopDriver(name); err != nil {
		return err
	}

	slot.Framework = choice
	if _, ok := slot.Config(choice); !ok && choice != config.FrameworkNone {
		slot.Frameworks[choice] = config.FrameworkConfig{}.WithDefaults(choice)
	}
	if err := r.save(slot); err != nil {
		return err
	}
	if err := dev.SetFramework(choice); err != nil {
		return err
	}

	r.logger.Infof("Slot %s switched to %q", name, choice)
	if choice == config.FrameworkNone {
		return nil
	}
	return r.StartDriver(name, true)
}

// UpdateConfig replaces the settings of one framework of the slot. They take
// effect on the next start.
func (r *Registry) UpdateConfig(name, framework string, cfg config.FrameworkConfig) error {
	slot, _, err := r.lookup(name)
	if err != nil {
		return err
	}
	slot.Frameworks[framework] = cfg
	return r.save(slot)
}

// CopyConfig copies the framework parameters of source to every other slot
// that has the framework, keeping their device names and lists.
func (r *Registry) CopyConfig(source, framework string) error {
	src, _, err := r.lookup(source)
	if err != nil {
		return err
	}
	cfg, ok := src.Config(framework)
	if !ok {
		return fmt.Errorf("%w: %q for %s", device.ErrUnknownFramework, framework, source)
	}

	for _, name := range r.Names() {
		if name == source {
			continue
		}
		dst, _, err := r.lookup(name)
		if err != nil {
			return err
		}
		current, ok := dst.Config(framework)
		if !ok {
			continue
		}
		dst.Frameworks[framework] = cfg.CopyParams(current)
		if err := r.save(dst); err != nil {
			return fmt.Errorf("failed to copy config to %s: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) save(slot config.Slot) error {
	if err := r.store.SaveSlot(slot); err != nil {
		return fmt.Errorf("failed to save slot %s: %w", slot.Name, err)
	}
	r.mu.Lock()
	r.slots[slot.Name] = slot.Clone()
	r.mu.Unlock()
	return nil
}

// StartAll starts every slot with a selected framework.
func (r *Registry) StartAll() error {
	for _, name := range r.Names() {
		if err := r.StartDriver(name, r.AutoStart(name)); err != nil {
			r.logger.WithError(err).Errorf("Failed to start slot %s", name)
		}
	}
	return nil
}

// StopAll stops every slot concurrently.
func (r *Registry) StopAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, name := range r.Names() {
		g.Go(func() error {
			return r.StopDriver(name)
		})
	}
	return g.Wait()
}

func sortedFrameworks(slot config.Slot) []string {
	names := make([]string, 0, len(slot.Frameworks))
	for name := range slot.Frameworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
