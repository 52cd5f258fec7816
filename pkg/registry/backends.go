package registry

import (
	log "github.com/sirupsen/logrus"

	"devicelink/pkg/alpaca"
	"devicelink/pkg/cache"
	"devicelink/pkg/config"
	"devicelink/pkg/device"
	"devicelink/pkg/event"
	"devicelink/pkg/indi"
	"devicelink/pkg/scheduler"
)

// Backends returns the BuildFunc creating the INDI and Alpaca drivers on
// pool. ASCOM has no backend here.
func Backends(pool *scheduler.Pool, logger log.FieldLogger) BuildFunc {
	return func(framework string, slot config.Slot, store *cache.Store, events event.Emitter) device.Backend {
		l := logger.WithField("slot", slot.Name)
		switch framework {
		case config.FrameworkINDI:
			return indi.NewDriver(slot.DeviceType, store, events, pool, l)
		case config.FrameworkAlpaca:
			return alpaca.NewDriver(slot.DeviceType, store, events, pool, l)
		}
		return nil
	}
}
