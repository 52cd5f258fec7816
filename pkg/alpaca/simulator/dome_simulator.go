package simulator

import (
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"devicelink/pkg/alpaca"
)

const (
	domeUID       = "621ca2e0-399a-43f6-b9e7-e6575d953507"
	deviceName    = "Dome Simulator"
	deviceType    = "Dome"
	driverName    = "devicelink dome simulator"
	driverVersion = "1.0"
)

// DomeSimulator is an in-memory dome. Slews take
// distance / SlewRate seconds.
type DomeSimulator struct {
	logger log.FieldLogger
	store  *Store
	now    func() time.Time

	mu        sync.Mutex
	info      alpaca.DeviceInfo
	config    DomeConfig
	status    DomeStatus
	slewFrom  float64
	target    float64
	slewStart time.Time
	slewEnd   time.Time
	connected bool
}

// NewDomeSimulator creates a dome parked at cfg.ParkPosition. A nil store
// keeps SetPark in memory.
func NewDomeSimulator(number int, cfg DomeConfig, store *Store, logger log.FieldLogger) *DomeSimulator {
	return &DomeSimulator{
		logger: logger.WithField("device", deviceName),
		store:  store,
		now:    time.Now,
		config: cfg,
		info: alpaca.DeviceInfo{
			Name:     deviceName,
			Type:     deviceType,
			Number:   number,
			UniqueID: domeUID,
		},
		status: DomeStatus{
			AtPark:  true,
			Azimuth: cfg.ParkPosition,
			Shutter: alpaca.ShutterClosed,
		},
		target: cfg.ParkPosition,
	}
}

func (d *DomeSimulator) DeviceInfo() alpaca.DeviceInfo {
	return d.info
}

func (d *DomeSimulator) DriverInfo() DriverInfo {
	return DriverInfo{Name: driverName, Version: driverVersion, InterfaceVersion: 2}
}

func (d *DomeSimulator) Capabilities() DomeCapabilities {
	return DomeCapabilities{
		CanFindHome:    true,
		CanPark:        true,
		CanSetAzimuth:  true,
		CanSetPark:     true,
		CanSetShutter:  true,
		CanSyncAzimuth: true,
	}
}

func (d *DomeSimulator) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *DomeSimulator) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		d.connected = true
		d.logger.Info("Connected")
	}
	return nil
}

func (d *DomeSimulator) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		d.logger.Info("Disconnected")
	}
	return nil
}

// Status advances a running slew and returns the current state.
func (d *DomeSimulator) Status() DomeStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.advance()
	return d.status
}

func (d *DomeSimulator) advance() {
	if !d.status.Slewing {
		return
	}

	now := d.now()
	if !now.Before(d.slewEnd) {
		d.status.Azimuth = d.target
		d.status.Slewing = false
		d.status.AtPark = d.target == d.config.ParkPosition
		d.status.AtHome = d.target == d.config.HomePosition
		return
	}

	delta := shortestDelta(d.slewFrom, d.target)
	total := d.slewEnd.Sub(d.slewStart).Seconds()
	done := now.Sub(d.slewStart).Seconds()
	d.status.Azimuth = math.Mod(d.slewFrom+delta*done/total+360, 360)
}

// shortestDelta returns the signed rotation from a to b in (-180, 180].
func shortestDelta(a, b float64) float64 {
	delta := math.Mod(b-a+540, 360) - 180
	if delta == -180 {
		return 180
	}
	return delta
}

func (d *DomeSimulator) slewTo(azimuth float64) {
	d.advance()

	d.slewFrom = d.status.Azimuth
	d.target = azimuth
	d.status.AtHome = false
	d.status.AtPark = false
	d.slewStart = d.now()

	duration := time.Duration(0)
	if d.config.SlewRate > 0 {
		distance := math.Abs(shortestDelta(d.status.Azimuth, azimuth))
		duration = time.Duration(distance / d.config.SlewRate * float64(time.Second))
	}
	d.slewEnd = d.slewStart.Add(duration)
	d.status.Slewing = true
	d.advance()
}

func (d *DomeSimulator) SlewToAzimuth(azimuth float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.logger.Infof("Slewing to azimuth: %f", azimuth)
	d.slewTo(azimuth)
	return nil
}

func (d *DomeSimulator) SyncToAzimuth(azimuth float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.logger.Infof("Syncing to azimuth: %f", azimuth)
	d.status.Slewing = false
	d.status.Azimuth = azimuth
	d.target = azimuth
	return nil
}

func (d *DomeSimulator) AbortSlew() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.logger.Info("Aborting slew")
	d.advance()
	d.status.Slewing = false
	d.target = d.status.Azimuth
	return nil
}

func (d *DomeSimulator) FindHome() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.logger.Info("Finding home")
	d.slewTo(d.config.HomePosition)
	return nil
}

func (d *DomeSimulator) Park() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.logger.Info("Parking")
	d.slewTo(d.config.ParkPosition)
	return nil
}

func (d *DomeSimulator) SetPark() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.advance()
	d.logger.Infof("Setting park position to %f", d.status.Azimuth)
	d.config.ParkPosition = d.status.Azimuth
	d.status.AtPark = !d.status.Slewing

	if d.store == nil {
		return nil
	}
	return d.store.SetDomeConfig(d.config)
}

func (d *DomeSimulator) OpenShutter() error {
	return d.setShutter(alpaca.ShutterOpen)
}

func (d *DomeSimulator) CloseShutter() error {
	return d.setShutter(alpaca.ShutterClosed)
}

func (d *DomeSimulator) setShutter(status int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return alpaca.ErrNotConnected
	}
	d.logger.Infof("Setting shutter status: %d", status)
	d.status.Shutter = status
	return nil
}
