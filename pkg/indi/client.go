package indi

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultDialTimeout  = 3 * time.Second
	defaultWriteTimeout = 2 * time.Second
)

var (
	ErrNotConnected = errors.New("not connected to INDI server")
	ErrClientClosed = errors.New("INDI client closed")
)

// Handler receives the callbacks of a Client. All methods except
// ServerConnected are invoked on the reader goroutine and must not block.
type Handler interface {
	ServerConnected()
	ServerDisconnected(devices []string, err error)
	NewDevice(device string)
	RemoveDevice(device string)
	// NewProperty is called once when a property is first defined.
	NewProperty(v *Vector)
	// UpdateProperty is called for every definition and value update.
	UpdateProperty(v *Vector)
	RemoveProperty(v *Vector)
	NewMessage(device, text string)
}

// Client is a connection to an INDI server speaking the XML protocol over
// TCP. It keeps a copy of every property it has been sent.
type Client struct {
	addr    string
	handler Handler
	logger  log.FieldLogger

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)

	mu      sync.Mutex
	conn    net.Conn
	closed  bool
	devices map[string]map[string]*Vector
	watched map[string]struct{}

	writeMu sync.Mutex
}

func NewClient(addr string, handler Handler, logger log.FieldLogger) *Client {
	return &Client{
		addr:         addr,
		handler:      handler,
		logger:       logger.WithField("indi", addr),
		DialTimeout:  defaultDialTimeout,
		WriteTimeout: defaultWriteTimeout,
		dial:         new(net.Dialer).DialContext,
		devices:      make(map[string]map[string]*Vector),
		watched:      make(map[string]struct{}),
	}
}

func (c *Client) Addr() string {
	return c.addr
}

// ConnectServer dials the server and starts reading. It is a no-op when the
// client is already connected, and fails once the client has been closed.
func (c *Client) ConnectServer(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.DialTimeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClientClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("Connected to INDI server")
	go c.readLoop(conn)
	c.handler.ServerConnected()
	return nil
}

// DisconnectServer closes the connection for good. A dial still in progress
// is discarded when it completes. The reader goroutine reports
// ServerDisconnected once it notices.
func (c *Client) DisconnectServer() error {
	c.mu.Lock()
	conn := c.conn
	c.closed = true
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) IsServerConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// WatchDevice asks the server for the properties of device. Once a device is
// watched, messages about other devices are ignored. An empty name requests
// every device.
func (c *Client) WatchDevice(device string) error {
	if device != "" {
		c.mu.Lock()
		c.watched[device] = struct{}{}
		c.mu.Unlock()
	}
	return c.send(xmlGetProperties{Version: protocolVersion, Device: device})
}

func (c *Client) ConnectDevice(device string) error {
	return c.SendNewSwitch(device, "CONNECTION", map[string]bool{"CONNECT": true, "DISCONNECT": false})
}

func (c *Client) DisconnectDevice(device string) error {
	return c.SendNewSwitch(device, "CONNECTION", map[string]bool{"CONNECT": false, "DISCONNECT": true})
}

// Devices returns the names of all known devices.
func (c *Client) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceNames()
}

func (c *Client) deviceNames() []string {
	names := make([]string, 0, len(c.devices))
	for name := range c.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Device reports whether device has defined any property.
func (c *Client) Device(device string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.devices[device]
	return ok
}

// Property returns a copy of the named property.
func (c *Client) Property(device, name string) (*Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.devices[device][name]
	if !ok {
		return nil, false
	}
	return v.clone(), true
}

func (c *Client) Number(device, name string) (*Vector, bool) {
	return c.typed(device, name, NumberKind)
}

func (c *Client) Switch(device, name string) (*Vector, bool) {
	return c.typed(device, name, SwitchKind)
}

func (c *Client) Text(device, name string) (*Vector, bool) {
	return c.typed(device, name, TextKind)
}

func (c *Client) Light(device, name string) (*Vector, bool) {
	return c.typed(device, name, LightKind)
}

func (c *Client) typed(device, name string, kind Kind) (*Vector, bool) {
	v, ok := c.Property(device, name)
	if !ok || v.Kind != kind {
		return nil, false
	}
	return v, true
}

// SendNewNumber sends new values for the number property name.
func (c *Client) SendNewNumber(device, name string, values map[string]float64) error {
	text := make(map[string]string, len(values))
	for elm, f := range values {
		text[elm] = formatNumber(f)
	}
	return c.send(newVector(NumberKind, device, name, text))
}

// SendNewSwitch sends new states for the switch property name.
func (c *Client) SendNewSwitch(device, name string, values map[string]bool) error {
	text := make(map[string]string, len(values))
	for elm, on := range values {
		text[elm] = "Off"
		if on {
			text[elm] = "On"
		}
	}
	return c.send(newVector(SwitchKind, device, name, text))
}

func (c *Client) SendNewText(device, name string, values map[string]string) error {
	return c.send(newVector(TextKind, device, name, values))
}

func (c *Client) send(msg any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := xml.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode INDI message: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to write to %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	dec := xml.NewDecoder(conn)
	dec.Strict = false

	var readErr error
	for {
		tok, err := dec.Token()
		if err != nil {
			readErr = err
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var msg xmlMessage
		if err := dec.DecodeElement(&msg, &start); err != nil {
			readErr = err
			break
		}
		c.dispatch(&msg)
	}

	c.mu.Lock()
	devices := c.deviceNames()
	c.devices = make(map[string]map[string]*Vector)
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()

	if errors.Is(readErr, io.EOF) || errors.Is(readErr, net.ErrClosed) {
		readErr = nil
	}
	if readErr != nil {
		c.logger.WithError(readErr).Warn("INDI connection lost")
	} else {
		c.logger.Debug("INDI connection closed")
	}
	c.handler.ServerDisconnected(devices, readErr)
}

func (c *Client) dispatch(msg *xmlMessage) {
	tag := msg.XMLName.Local

	if !c.isWatched(msg.Device) {
		return
	}

	switch tag {
	case "message":
		if msg.Message != "" {
			c.handler.NewMessage(msg.Device, msg.Message)
		}
		return
	case "delProperty":
		c.delProperty(msg.Device, msg.Name)
		return
	}

	prefix, kind, ok := splitTag(tag)
	if !ok {
		c.logger.WithField("tag", tag).Debug("Ignoring INDI message")
		return
	}

	switch prefix {
	case "def":
		c.defProperty(msg.vector(kind))
	case "set":
		c.setProperty(msg.vector(kind))
	}

	if msg.Message != "" {
		c.handler.NewMessage(msg.Device, msg.Message)
	}
}

func (c *Client) isWatched(device string) bool {
	if device == "" {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.watched) == 0 {
		return true
	}
	_, ok := c.watched[device]
	return ok
}

func (c *Client) defProperty(v *Vector) {
	c.mu.Lock()
	props, knownDevice := c.devices[v.Device]
	if !knownDevice {
		props = make(map[string]*Vector)
		c.devices[v.Device] = props
	}
	_, knownProperty := props[v.Name]
	props[v.Name] = v
	update := v.clone()
	c.mu.Unlock()

	if !knownDevice {
		c.handler.NewDevice(v.Device)
	}
	if !knownProperty {
		c.handler.NewProperty(update.clone())
	}
	c.handler.UpdateProperty(update)
}

func (c *Client) setProperty(v *Vector) {
	c.mu.Lock()
	current, ok := c.devices[v.Device][v.Name]
	if !ok {
		c.mu.Unlock()
		c.logger.WithFields(log.Fields{
			"device":   v.Device,
			"property": v.Name,
		}).Debug("Update for undefined property")
		return
	}
	current.update(v)
	update := current.clone()
	c.mu.Unlock()

	c.handler.UpdateProperty(update)
}

func (c *Client) delProperty(device, name string) {
	c.mu.Lock()
	props, ok := c.devices[device]
	if !ok {
		c.mu.Unlock()
		return
	}

	if name == "" {
		delete(c.devices, device)
		c.mu.Unlock()
		c.handler.RemoveDevice(device)
		return
	}

	v, ok := props[name]
	delete(props, name)
	c.mu.Unlock()

	if ok {
		c.handler.RemoveProperty(v.clone())
	}
}
