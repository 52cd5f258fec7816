package indi

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// DiscoverDevices connects a temporary client to the configured server,
// waits for the devices to announce themselves and returns the names of
// those whose driver interface serves deviceType.
func (d *Driver) DiscoverDevices(ctx context.Context, deviceType string) ([]string, error) {
	found := &discoveryHandler{interfaces: make(map[string]int)}
	client := NewClient(d.addr(), found, d.logger.WithField("discovery", deviceType))

	if err := client.ConnectServer(ctx); err != nil {
		return nil, err
	}
	defer client.DisconnectServer()

	if err := client.WatchDevice(""); err != nil {
		return nil, err
	}

	timer := time.NewTimer(d.DiscoverySettle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	mask := InterfaceMask(deviceType)
	names := found.matching(mask)
	d.logger.WithField("devices", names).Debug("INDI discovery finished")
	return names, nil
}

// discoveryHandler collects DRIVER_INFO.DRIVER_INTERFACE of every device.
type discoveryHandler struct {
	mu         sync.Mutex
	interfaces map[string]int
}

func (h *discoveryHandler) matching(mask int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var names []string
	for name, iface := range h.interfaces {
		if matchesInterface(iface, mask) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (h *discoveryHandler) UpdateProperty(v *Vector) {
	if v.Name != "DRIVER_INFO" {
		return
	}
	e, ok := v.Element("DRIVER_INTERFACE")
	if !ok {
		return
	}
	iface, err := strconv.Atoi(e.Value)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.interfaces[v.Device] = iface
	h.mu.Unlock()
}

func (h *discoveryHandler) ServerConnected()                   {}
func (h *discoveryHandler) ServerDisconnected([]string, error) {}
func (h *discoveryHandler) NewDevice(string)                   {}
func (h *discoveryHandler) RemoveDevice(string)                {}
func (h *discoveryHandler) NewProperty(*Vector)                {}
func (h *discoveryHandler) RemoveProperty(*Vector)             {}
func (h *discoveryHandler) NewMessage(string, string)          {}
