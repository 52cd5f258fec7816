package indi

import log "github.com/sirupsen/logrus"

// command returns the client and the bound device if the device is
// connected.
func (d *Driver) command() (*Client, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil || !d.connected || d.bound == "" {
		return nil, "", false
	}
	return d.client, d.bound, true
}

func (d *Driver) sendSwitch(property, element string) bool {
	client, name, ok := d.command()
	if !ok {
		return false
	}
	if err := client.SendNewSwitch(name, property, map[string]bool{element: true}); err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"property": property,
			"element":  element,
		}).Warn("Failed to send INDI switch")
		return false
	}
	return true
}

func (d *Driver) sendNumber(property string, values map[string]float64) bool {
	client, name, ok := d.command()
	if !ok {
		return false
	}
	if err := client.SendNewNumber(name, property, values); err != nil {
		d.logger.WithError(err).WithField("property", property).Warn("Failed to send INDI number")
		return false
	}
	return true
}

// SlewToAltAz moves a dome to azimuth, or points a telescope at the given
// horizontal coordinates.
func (d *Driver) SlewToAltAz(altitude, azimuth float64) bool {
	if d.deviceType == "dome" {
		return d.sendNumber("ABS_DOME_POSITION", map[string]float64{"DOME_ABSOLUTE_POSITION": azimuth})
	}
	if !d.sendSwitch("ON_COORD_SET", "SLEW") {
		return false
	}
	return d.sendNumber("HORIZONTAL_COORD", map[string]float64{"ALT": altitude, "AZ": azimuth})
}

func (d *Driver) AbortSlew() bool {
	if d.deviceType == "dome" {
		return d.sendSwitch("DOME_ABORT_MOTION", "ABORT")
	}
	return d.sendSwitch("TELESCOPE_ABORT_MOTION", "ABORT")
}

func (d *Driver) OpenShutter() bool {
	return d.sendSwitch("DOME_SHUTTER", "SHUTTER_OPEN")
}

func (d *Driver) CloseShutter() bool {
	return d.sendSwitch("DOME_SHUTTER", "SHUTTER_CLOSE")
}

func (d *Driver) Park() bool {
	return d.sendSwitch("TELESCOPE_PARK", "PARK")
}

func (d *Driver) Unpark() bool {
	return d.sendSwitch("TELESCOPE_PARK", "UNPARK")
}

func (d *Driver) OpenCover() bool {
	return d.sendSwitch("CAP_PARK", "UNPARK")
}

func (d *Driver) CloseCover() bool {
	return d.sendSwitch("CAP_PARK", "PARK")
}

func (d *Driver) LightOn() bool {
	return d.sendSwitch("FLAT_LIGHT_CONTROL", "FLAT_LIGHT_ON")
}

func (d *Driver) LightOff() bool {
	return d.sendSwitch("FLAT_LIGHT_CONTROL", "FLAT_LIGHT_OFF")
}

func (d *Driver) SetBrightness(value float64) bool {
	return d.sendNumber("FLAT_LIGHT_INTENSITY", map[string]float64{"FLAT_LIGHT_INTENSITY_VALUE": value})
}

func (d *Driver) SetFilterNumber(number int) bool {
	return d.sendNumber("FILTER_SLOT", map[string]float64{"FILTER_SLOT_VALUE": float64(number)})
}

func (d *Driver) MoveAbsolute(position int) bool {
	return d.sendNumber("ABS_FOCUS_POSITION", map[string]float64{"FOCUS_ABSOLUTE_POSITION": float64(position)})
}

func (d *Driver) Halt() bool {
	return d.sendSwitch("FOCUS_ABORT_MOTION", "ABORT")
}
