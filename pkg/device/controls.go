package device

// Dome is the facade of a dome slot.
type Dome struct{ *Device }

func (d Dome) SlewToAltAz(altitude, azimuth float64) (bool, error) {
	c, err := control[DomeControl](d.Device)
	if err != nil {
		return false, err
	}
	return c.SlewToAltAz(altitude, azimuth), nil
}

func (d Dome) OpenShutter() (bool, error) {
	c, err := control[DomeControl](d.Device)
	if err != nil {
		return false, err
	}
	return c.OpenShutter(), nil
}

func (d Dome) CloseShutter() (bool, error) {
	c, err := control[DomeControl](d.Device)
	if err != nil {
		return false, err
	}
	return c.CloseShutter(), nil
}

func (d Dome) AbortSlew() (bool, error) {
	c, err := control[DomeControl](d.Device)
	if err != nil {
		return false, err
	}
	return c.AbortSlew(), nil
}

// Telescope is the facade of a mount slot.
type Telescope struct{ *Device }

func (t Telescope) SlewToAltAz(altitude, azimuth float64) (bool, error) {
	c, err := control[TelescopeControl](t.Device)
	if err != nil {
		return false, err
	}
	return c.SlewToAltAz(altitude, azimuth), nil
}

func (t Telescope) Park() (bool, error) {
	c, err := control[TelescopeControl](t.Device)
	if err != nil {
		return false, err
	}
	return c.Park(), nil
}

func (t Telescope) Unpark() (bool, error) {
	c, err := control[TelescopeControl](t.Device)
	if err != nil {
		return false, err
	}
	return c.Unpark(), nil
}

func (t Telescope) AbortSlew() (bool, error) {
	c, err := control[TelescopeControl](t.Device)
	if err != nil {
		return false, err
	}
	return c.AbortSlew(), nil
}

// Cover is the facade of a cover/calibrator slot.
type Cover struct{ *Device }

func (c Cover) OpenCover() (bool, error) {
	ctl, err := control[CoverControl](c.Device)
	if err != nil {
		return false, err
	}
	return ctl.OpenCover(), nil
}

func (c Cover) CloseCover() (bool, error) {
	ctl, err := control[CoverControl](c.Device)
	if err != nil {
		return false, err
	}
	return ctl.CloseCover(), nil
}

func (c Cover) LightOn() (bool, error) {
	ctl, err := control[CoverControl](c.Device)
	if err != nil {
		return false, err
	}
	return ctl.LightOn(), nil
}

func (c Cover) LightOff() (bool, error) {
	ctl, err := control[CoverControl](c.Device)
	if err != nil {
		return false, err
	}
	return ctl.LightOff(), nil
}

func (c Cover) SetBrightness(value float64) (bool, error) {
	ctl, err := control[CoverControl](c.Device)
	if err != nil {
		return false, err
	}
	return ctl.SetBrightness(value), nil
}

// FilterWheel is the facade of a filter wheel slot.
type FilterWheel struct{ *Device }

func (f FilterWheel) SetFilterNumber(number int) (bool, error) {
	c, err := control[FilterWheelControl](f.Device)
	if err != nil {
		return false, err
	}
	return c.SetFilterNumber(number), nil
}

// Focuser is the facade of a focuser slot.
type Focuser struct{ *Device }

func (f Focuser) MoveAbsolute(position int) (bool, error) {
	c, err := control[FocuserControl](f.Device)
	if err != nil {
		return false, err
	}
	return c.MoveAbsolute(position), nil
}

func (f Focuser) Halt() (bool, error) {
	c, err := control[FocuserControl](f.Device)
	if err != nil {
		return false, err
	}
	return c.Halt(), nil
}
