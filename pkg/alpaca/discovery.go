package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DiscoveryPort    = 32227
	DiscoveryMessage = "alpacadiscovery1"
	DefaultPort      = 11111

	DefaultDiscoveryWait = time.Second
)

// DefaultBroadcast is where discovery requests are sent.
var DefaultBroadcast = net.JoinHostPort("255.255.255.255", strconv.Itoa(DiscoveryPort))

type discoveryReply struct {
	AlpacaPort int `json:"AlpacaPort"`
}

// Discover sends a discovery request to target and collects the address of
// every server answering within wait.
func Discover(ctx context.Context, target string, wait time.Duration) ([]string, error) {
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve discovery address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("cannot bind discovery socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(wait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.WriteToUDP([]byte(DiscoveryMessage), dst); err != nil {
		return nil, fmt.Errorf("cannot send discovery request: %w", err)
	}

	seen := make(map[string]bool)
	buf := make([]byte, 1024)
	for ctx.Err() == nil {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				break
			}
			return nil, err
		}

		var r discoveryReply
		if err := json.Unmarshal(buf[:n], &r); err != nil || r.AlpacaPort == 0 {
			continue
		}
		seen[net.JoinHostPort(from.IP.String(), strconv.Itoa(r.AlpacaPort))] = true
	}

	addrs := make([]string, 0, len(seen))
	for addr := range seen {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, nil
}

// ConfiguredDevices lists the devices of the server at address through the
// management API.
func ConfiguredDevices(ctx context.Context, client *http.Client, protocol, address string) ([]DeviceInfo, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	u := fmt.Sprintf("%s://%s/management/v1/configureddevices", protocol, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("invalid management response: %w", err)
	}
	if r.ErrorNumber != 0 {
		return nil, &Error{Status: resp.StatusCode, Number: r.ErrorNumber, Message: r.ErrorMessage}
	}
	return Decode[[]DeviceInfo](r.Value)
}

// DiscoverDevices looks for servers on the local network, adds the
// configured address, and returns the devices of deviceType they offer as
// "name [address/number]".
func (d *Driver) DiscoverDevices(ctx context.Context, deviceType string) ([]string, error) {
	cfg := d.clientConfig()

	addrs := []string{cfg.Address}
	found, err := Discover(ctx, d.DiscoveryTarget, d.DiscoveryWait)
	if err != nil {
		d.logger.WithError(err).Warn("Alpaca discovery failed")
	}
	for _, addr := range found {
		if addr != cfg.Address {
			addrs = append(addrs, addr)
		}
	}

	var (
		mu      sync.Mutex
		devices []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		g.Go(func() error {
			infos, err := ConfiguredDevices(gctx, d.HTTPClient, cfg.Protocol, addr)
			if err != nil {
				d.logger.WithError(err).WithField("address", addr).Debug("No Alpaca management API")
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, info := range infos {
				if strings.EqualFold(info.Type, deviceType) {
					devices = append(devices, fmt.Sprintf("%s [%s/%d]", info.Name, addr, info.Number))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(devices)
	return devices, nil
}
