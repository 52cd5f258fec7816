package indi

import "strings"

// indigoElements renames single INDIGO elements to their INDI counterparts.
var indigoElements = map[string]string{
	"WEATHER_PARAMETERS.WEATHER_BAROMETER":      "WEATHER_PARAMETERS.WEATHER_PRESSURE",
	"WEATHER_PARAMETERS.WEATHER_DEW_POINT":      "WEATHER_PARAMETERS.WEATHER_DEWPOINT",
	"WEATHER_PARAMETERS.WEATHER_SKY_BRIGHTNESS": "SKY_QUALITY.SKY_BRIGHTNESS",
	"AUX_WEATHER.AUX_WEATHER_TEMPERATURE":       "WEATHER_PARAMETERS.WEATHER_TEMPERATURE",
	"AUX_WEATHER.AUX_WEATHER_HUMIDITY":          "WEATHER_PARAMETERS.WEATHER_HUMIDITY",
	"AUX_WEATHER.AUX_WEATHER_DEWPOINT":          "WEATHER_PARAMETERS.WEATHER_DEWPOINT",
	"AUX_WEATHER.AUX_WEATHER_PRESSURE":          "WEATHER_PARAMETERS.WEATHER_PRESSURE",
	"AUX_INFO.X_AUX_TEMPERATURE":                "WEATHER_PARAMETERS.WEATHER_TEMPERATURE",
	"AUX_INFO.X_AUX_HUMIDITY":                   "WEATHER_PARAMETERS.WEATHER_HUMIDITY",
	"AUX_INFO.X_AUX_DEW_POINT":                  "WEATHER_PARAMETERS.WEATHER_DEWPOINT",
	"AUX_INFO.X_AUX_VOLTAGE":                    "POWER_SENSORS.SENSOR_VOLTAGE",
	"AUX_INFO.X_AUX_CURRENT":                    "POWER_SENSORS.SENSOR_CURRENT",
	"AUX_INFO.X_AUX_POWER":                      "POWER_SENSORS.SENSOR_POWER",
	"AUX_SKY_BRIGHTNESS.SKY_BRIGHTNESS":         "SKY_QUALITY.SKY_BRIGHTNESS",
	"AUX_SKY_BRIGHTNESS.AUX_SKY_BRIGHTNESS":     "SKY_QUALITY.SKY_BRIGHTNESS",
	"AUX_SKY_TEMPERATURE.AUX_SKY_TEMPERATURE":   "SKY_QUALITY.SKY_TEMPERATURE",
	"AUX_POWER_OUTLET.OUTLET_1":                 "POWER_CONTROL.POWER_CONTROL_1",
	"AUX_POWER_OUTLET.OUTLET_2":                 "POWER_CONTROL.POWER_CONTROL_2",
	"AUX_POWER_OUTLET.OUTLET_3":                 "POWER_CONTROL.POWER_CONTROL_3",
	"AUX_POWER_OUTLET.OUTLET_4":                 "POWER_CONTROL.POWER_CONTROL_4",
	"AUX_HEATER_OUTLET.OUTLET_1":                "DEW_PWM.DEW_A",
	"AUX_HEATER_OUTLET.OUTLET_2":                "DEW_PWM.DEW_B",
	"AUX_HEATER_OUTLET.OUTLET_3":                "DEW_PWM.DEW_C",
	"AUX_DEW_CONTROL.MANUAL":                    "AUTO_DEW.DEW_AUTO_OFF",
	"AUX_DEW_CONTROL.AUTOMATIC":                 "AUTO_DEW.DEW_AUTO_ON",
	"AUX_USB_PORT.PORT_1":                       "USB_PORT_CONTROL.PORT_1",
	"AUX_USB_PORT.PORT_2":                       "USB_PORT_CONTROL.PORT_2",
	"AUX_USB_PORT.PORT_3":                       "USB_PORT_CONTROL.PORT_3",
	"CCD_COOLER_POWER.CCD_COOLER_POWER":         "CCD_COOLER_POWER.CCD_COOLER_VALUE",
	"FOCUSER_POSITION.POSITION":                 "ABS_FOCUS_POSITION.FOCUS_ABSOLUTE_POSITION",
	"FOCUSER_TEMPERATURE.TEMPERATURE":           "FOCUS_TEMPERATURE.TEMPERATURE",
	"WHEEL_SLOT.SLOT":                           "FILTER_SLOT.FILTER_SLOT_VALUE",
	"DOME_HORIZONTAL_COORDINATES.AZ":            "ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION",
	"DOME_SHUTTER.OPENED":                       "DOME_SHUTTER.SHUTTER_OPEN",
	"DOME_SHUTTER.CLOSED":                       "DOME_SHUTTER.SHUTTER_CLOSE",
	"MOUNT_PARK.PARKED":                         "TELESCOPE_PARK.PARK",
	"MOUNT_PARK.UNPARKED":                       "TELESCOPE_PARK.UNPARK",
	"MOUNT_HORIZONTAL_COORDINATES.ALT":          "HORIZONTAL_COORD.ALT",
	"MOUNT_HORIZONTAL_COORDINATES.AZ":           "HORIZONTAL_COORD.AZ",
	"MOUNT_EQUATORIAL_COORDINATES.RA":           "EQUATORIAL_EOD_COORD.RA",
	"MOUNT_EQUATORIAL_COORDINATES.DEC":          "EQUATORIAL_EOD_COORD.DEC",
}

// indigoProperties renames whole INDIGO properties whose element names
// already match INDI.
var indigoProperties = map[string]string{
	"AUX_LIGHT_SWITCH":         "FLAT_LIGHT_CONTROL",
	"AUX_LIGHT_INTENSITY":      "FLAT_LIGHT_INTENSITY",
	"AUX_COVER":                "CAP_PARK",
	"MOUNT_ABORT_MOTION":       "TELESCOPE_ABORT_MOTION",
	"FOCUSER_ABORT_MOTION":     "FOCUS_ABORT_MOTION",
	"WHEEL_SLOT_NAME":          "FILTER_NAME",
	"MOUNT_TRACKING":           "TELESCOPE_TRACK_STATE",
	"MOUNT_ON_COORDINATES_SET": "ON_COORD_SET",
	"AUX_DEW_WARNING":          "DEW_WARNING",
}

// Translate maps an INDIGO cache key of the form "PROPERTY.ELEMENT" to the
// INDI name used throughout the cache. Keys without an INDIGO counterpart
// are returned unchanged. Translating twice gives the same result as
// translating once; the mapping is one way only.
func Translate(key string) string {
	if name, ok := indigoElements[key]; ok {
		return name
	}

	property, element, found := strings.Cut(key, ".")
	if !found {
		return key
	}
	if name, ok := indigoProperties[property]; ok {
		return name + "." + element
	}
	return key
}
