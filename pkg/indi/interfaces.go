package indi

// Driver interface bits announced in DRIVER_INFO.DRIVER_INTERFACE.
const (
	InterfaceGeneral      = 0
	InterfaceTelescope    = 1 << 0
	InterfaceCCD          = 1 << 1
	InterfaceGuider       = 1 << 2
	InterfaceFocuser      = 1 << 3
	InterfaceFilter       = 1 << 4
	InterfaceDome         = 1 << 5
	InterfaceGPS          = 1 << 6
	InterfaceWeather      = 1 << 7
	InterfaceAO           = 1 << 8
	InterfaceDustcap      = 1 << 9
	InterfaceLightbox     = 1 << 10
	InterfaceDetector     = 1 << 11
	InterfaceRotator      = 1 << 12
	InterfaceSpectrograph = 1 << 13
	InterfaceCorrelator   = 1 << 14
	InterfaceAux          = 1 << 15

	InterfaceAll = 0xFFFF
)

var deviceTypeInterfaces = map[string]int{
	"telescope":           InterfaceTelescope,
	"camera":              InterfaceCCD,
	"dome":                InterfaceDome,
	"filterwheel":         InterfaceFilter,
	"focuser":             InterfaceFocuser,
	"covercalibrator":     InterfaceDustcap | InterfaceLightbox,
	"switch":              InterfaceAux,
	"observingconditions": InterfaceWeather | InterfaceAux,
	"safetymonitor":       InterfaceWeather | InterfaceAux,
	"rotator":             InterfaceRotator,
}

// InterfaceMask returns the interface bits matching a device type. Unknown
// types match everything.
func InterfaceMask(deviceType string) int {
	if mask, ok := deviceTypeInterfaces[deviceType]; ok {
		return mask
	}
	return InterfaceAll
}

// matchesInterface reports whether a device announcing iface serves mask. A
// device announcing no interface is treated as serving all of them.
func matchesInterface(iface, mask int) bool {
	if iface == InterfaceGeneral {
		iface = InterfaceAll
	}
	return iface&mask != 0
}
