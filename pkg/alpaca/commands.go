package alpaca

import (
	"net/url"
	"strconv"
)

// enqueue queues a PUT for the next poll tick. It fails unless the device
// is connected.
func (d *Driver) enqueue(attribute string, params url.Values) bool {
	d.mu.Lock()
	if d.poll == nil || !d.connected {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, command{attribute: attribute, params: params})
	slew := isSlewCommand(attribute)
	if slew {
		d.slewing = true
	}
	writer := d.writer
	d.mu.Unlock()

	if slew {
		// reflect the intent until the device confirms it
		writer.Set("slewing", true)
	}
	return true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// SlewToAltAz moves a dome to azimuth, or a telescope to the given
// horizontal coordinates.
func (d *Driver) SlewToAltAz(altitude, azimuth float64) bool {
	if d.deviceType == "dome" {
		return d.enqueue("slewtoazimuth", url.Values{"Azimuth": {formatFloat(azimuth)}})
	}
	return d.enqueue("slewtoaltazasync", url.Values{
		"Altitude": {formatFloat(altitude)},
		"Azimuth":  {formatFloat(azimuth)},
	})
}

func (d *Driver) AbortSlew() bool {
	return d.enqueue("abortslew", nil)
}

func (d *Driver) OpenShutter() bool {
	return d.enqueue("openshutter", nil)
}

func (d *Driver) CloseShutter() bool {
	return d.enqueue("closeshutter", nil)
}

func (d *Driver) Park() bool {
	return d.enqueue("park", nil)
}

func (d *Driver) Unpark() bool {
	return d.enqueue("unpark", nil)
}

func (d *Driver) OpenCover() bool {
	return d.enqueue("opencover", nil)
}

func (d *Driver) CloseCover() bool {
	return d.enqueue("closecover", nil)
}

// LightOn switches the calibrator on at its maximum brightness.
func (d *Driver) LightOn() bool {
	brightness, ok := d.store.Int("maxbrightness")
	if !ok {
		brightness = 1
	}
	return d.enqueue("calibratoron", url.Values{"Brightness": {strconv.Itoa(brightness)}})
}

func (d *Driver) LightOff() bool {
	return d.enqueue("calibratoroff", nil)
}

func (d *Driver) SetBrightness(value float64) bool {
	return d.enqueue("calibratoron", url.Values{"Brightness": {strconv.Itoa(int(value))}})
}

func (d *Driver) SetFilterNumber(number int) bool {
	return d.enqueue("position", url.Values{"Position": {strconv.Itoa(number)}})
}

func (d *Driver) MoveAbsolute(position int) bool {
	return d.enqueue("move", url.Values{"Position": {strconv.Itoa(position)}})
}

func (d *Driver) Halt() bool {
	return d.enqueue("halt", nil)
}
