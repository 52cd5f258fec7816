package device

//go:generate mockgen -destination=mock_backend.go -package=device devicelink/pkg/device Backend

import (
	"context"

	"devicelink/pkg/config"
)

// Property names shared by all backends.
const (
	PropHost         = "host"         // string, INDI host or Alpaca address
	PropDeviceName   = "deviceName"   // string
	PropSettlingTime = "settlingTime" // time.Duration
	PropUpdateRate   = "updateRate"   // int, milliseconds
)

// Backend is one protocol implementation serving a device slot.
type Backend interface {
	// Configure applies the framework settings of the slot.
	Configure(cfg config.FrameworkConfig)

	// StartCommunication starts connecting or polling. It never blocks on
	// the network and reports false only for configuration errors.
	StartCommunication() bool

	// StopCommunication stops all timers and network activity. After it
	// returns the backend never writes to the property cache again.
	StopCommunication() bool

	Set(prop string, value any) error
	Get(prop string) (any, bool)
	State() ConnState
}

// Discoverer is implemented by backends that can list the devices offered
// by their server.
type Discoverer interface {
	DiscoverDevices(ctx context.Context, deviceType string) ([]string, error)
}

type DomeControl interface {
	SlewToAltAz(altitude, azimuth float64) bool
	OpenShutter() bool
	CloseShutter() bool
	AbortSlew() bool
}

type TelescopeControl interface {
	SlewToAltAz(altitude, azimuth float64) bool
	Park() bool
	Unpark() bool
	AbortSlew() bool
}

type CoverControl interface {
	OpenCover() bool
	CloseCover() bool
	LightOn() bool
	LightOff() bool
	SetBrightness(value float64) bool
}

type FilterWheelControl interface {
	SetFilterNumber(number int) bool
}

type FocuserControl interface {
	MoveAbsolute(position int) bool
	Halt() bool
}
