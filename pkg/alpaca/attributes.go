package alpaca

import (
	"encoding/json"
	"fmt"
)

type valueKind int

const (
	kindFloat valueKind = iota
	kindBool
	kindInt
	kindString
	kindStrings
)

// attribute maps one polled Alpaca attribute onto cache keys. Without split
// the decoded value is stored under key; with split it is expanded into
// several keys.
type attribute struct {
	name  string
	key   string
	kind  valueKind
	split func(value any) map[string]any
}

func (a attribute) decode(raw json.RawMessage) (any, error) {
	switch a.kind {
	case kindFloat:
		return Decode[float64](raw)
	case kindBool:
		return Decode[bool](raw)
	case kindInt:
		return Decode[int](raw)
	case kindString:
		return Decode[string](raw)
	case kindStrings:
		return Decode[[]string](raw)
	}
	return nil, fmt.Errorf("unknown kind %d", a.kind)
}

// values returns the cache entries produced by a decoded value.
func (a attribute) values(value any) map[string]any {
	if a.split != nil {
		return a.split(value)
	}
	return map[string]any{a.key: value}
}

// keys returns every cache key the attribute may write.
func (a attribute) keys() []string {
	if a.split == nil {
		return []string{a.key}
	}
	keys := []string{}
	for k := range a.split(nil) {
		keys = append(keys, k)
	}
	return keys
}

// Alpaca shutter and cover states.
const (
	ShutterOpen    = 0
	ShutterClosed  = 1
	ShutterOpening = 2
	ShutterClosing = 3
	ShutterError   = 4

	CoverNotPresent = 0
	CoverClosed     = 1
	CoverMoving     = 2
	CoverOpen       = 3
	CoverUnknown    = 4
	CoverError      = 5
)

func shutterKeys(value any) map[string]any {
	status, _ := value.(int)
	return map[string]any{
		"shutterstatus":              status,
		"DOME_SHUTTER.SHUTTER_OPEN":  status == ShutterOpen,
		"DOME_SHUTTER.SHUTTER_CLOSE": status == ShutterClosed,
	}
}

func coverKeys(value any) map[string]any {
	state, _ := value.(int)
	return map[string]any{
		"coverstate":      state,
		"CAP_PARK.PARK":   state == CoverClosed,
		"CAP_PARK.UNPARK": state == CoverOpen,
	}
}

// filterNames has a fixed key set of 16 names so keys() can enumerate it.
const maxFilterNames = 16

func filterNameKeys(value any) map[string]any {
	names, _ := value.([]string)
	out := make(map[string]any, maxFilterNames)
	for i := 0; i < maxFilterNames; i++ {
		key := fmt.Sprintf("FILTER_NAME.FILTER_SLOT_NAME_%d", i+1)
		if i < len(names) {
			out[key] = names[i]
		} else if value == nil {
			out[key] = ""
		}
	}
	return out
}

// attributeTables lists what is polled for each device type, after
// "connected".
var attributeTables = map[string][]attribute{
	"dome": {
		{name: "azimuth", key: "ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION", kind: kindFloat},
		{name: "altitude", key: "DOME_ALTITUDE.DOME_ALTITUDE_VALUE", kind: kindFloat},
		{name: "shutterstatus", kind: kindInt, split: shutterKeys},
		{name: "slewing", key: "slewing", kind: kindBool},
		{name: "atpark", key: "DOME_PARK.PARK", kind: kindBool},
		{name: "athome", key: "athome", kind: kindBool},
	},
	"telescope": {
		{name: "altitude", key: "HORIZONTAL_COORD.ALT", kind: kindFloat},
		{name: "azimuth", key: "HORIZONTAL_COORD.AZ", kind: kindFloat},
		{name: "rightascension", key: "EQUATORIAL_EOD_COORD.RA", kind: kindFloat},
		{name: "declination", key: "EQUATORIAL_EOD_COORD.DEC", kind: kindFloat},
		{name: "atpark", key: "TELESCOPE_PARK.PARK", kind: kindBool},
		{name: "tracking", key: "TELESCOPE_TRACK_STATE.TRACK_ON", kind: kindBool},
		{name: "slewing", key: "slewing", kind: kindBool},
	},
	"camera": {
		{name: "cameraxsize", key: "CCD_INFO.CCD_MAX_X", kind: kindInt},
		{name: "cameraysize", key: "CCD_INFO.CCD_MAX_Y", kind: kindInt},
		{name: "pixelsizex", key: "CCD_INFO.CCD_PIXEL_SIZE_X", kind: kindFloat},
		{name: "pixelsizey", key: "CCD_INFO.CCD_PIXEL_SIZE_Y", kind: kindFloat},
		{name: "binx", key: "CCD_BINNING.HOR_BIN", kind: kindInt},
		{name: "biny", key: "CCD_BINNING.VER_BIN", kind: kindInt},
		{name: "ccdtemperature", key: "CCD_TEMPERATURE.CCD_TEMPERATURE_VALUE", kind: kindFloat},
		{name: "cooleron", key: "CCD_COOLER.COOLER_ON", kind: kindBool},
		{name: "coolerpower", key: "CCD_COOLER_POWER.CCD_COOLER_VALUE", kind: kindFloat},
		{name: "gain", key: "CCD_GAIN.GAIN", kind: kindInt},
		{name: "offset", key: "CCD_OFFSET.OFFSET", kind: kindInt},
		{name: "camerastate", key: "camerastate", kind: kindInt},
	},
	"filterwheel": {
		{name: "position", key: "FILTER_SLOT.FILTER_SLOT_VALUE", kind: kindInt},
		{name: "names", kind: kindStrings, split: filterNameKeys},
	},
	"focuser": {
		{name: "position", key: "ABS_FOCUS_POSITION.FOCUS_ABSOLUTE_POSITION", kind: kindInt},
		{name: "ismoving", key: "ismoving", kind: kindBool},
		{name: "temperature", key: "FOCUS_TEMPERATURE.TEMPERATURE", kind: kindFloat},
	},
	"covercalibrator": {
		{name: "coverstate", kind: kindInt, split: coverKeys},
		{name: "calibratorstate", key: "calibratorstate", kind: kindInt},
		{name: "brightness", key: "FLAT_LIGHT_INTENSITY.FLAT_LIGHT_INTENSITY_VALUE", kind: kindInt},
		{name: "maxbrightness", key: "maxbrightness", kind: kindInt},
	},
	"switch": {
		{name: "maxswitch", key: "maxswitch", kind: kindInt},
	},
	"observingconditions": {
		{name: "temperature", key: "WEATHER_PARAMETERS.WEATHER_TEMPERATURE", kind: kindFloat},
		{name: "humidity", key: "WEATHER_PARAMETERS.WEATHER_HUMIDITY", kind: kindFloat},
		{name: "dewpoint", key: "WEATHER_PARAMETERS.WEATHER_DEWPOINT", kind: kindFloat},
		{name: "pressure", key: "WEATHER_PARAMETERS.WEATHER_PRESSURE", kind: kindFloat},
		{name: "cloudcover", key: "WEATHER_PARAMETERS.WEATHER_CLOUD_COVER", kind: kindFloat},
		{name: "rainrate", key: "WEATHER_PARAMETERS.WEATHER_RAIN_RATE", kind: kindFloat},
		{name: "windspeed", key: "WEATHER_PARAMETERS.WEATHER_WIND_SPEED", kind: kindFloat},
		{name: "skyquality", key: "SKY_QUALITY.SKY_BRIGHTNESS", kind: kindFloat},
		{name: "skytemperature", key: "SKY_QUALITY.SKY_TEMPERATURE", kind: kindFloat},
	},
	"safetymonitor": {
		{name: "issafe", key: "issafe", kind: kindBool},
	},
}
