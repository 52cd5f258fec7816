package simulator

import (
	"net/http"

	"devicelink/pkg/alpaca"
)

type DomeCapabilities struct {
	CanFindHome    bool
	CanPark        bool
	CanSetAltitude bool
	CanSetAzimuth  bool
	CanSetPark     bool
	CanSetShutter  bool
	CanSlave       bool
	CanSyncAzimuth bool
}

type DomeStatus struct {
	AtHome   bool
	AtPark   bool
	Slewing  bool
	Slaved   bool
	Altitude float64
	Azimuth  float64
	Shutter  int
}

type Dome interface {
	Device

	Capabilities() DomeCapabilities
	Status() DomeStatus

	SlewToAzimuth(float64) error
	SyncToAzimuth(float64) error
	AbortSlew() error

	FindHome() error
	Park() error
	SetPark() error
	OpenShutter() error
	CloseShutter() error
}

type DomeHandler struct {
	DeviceHandler
	dev Dome
}

func NewDomeHandler(dev Dome) *DomeHandler {
	return &DomeHandler{
		DeviceHandler: DeviceHandler{dev: dev},
		dev:           dev,
	}
}

func (dh *DomeHandler) RegisterRoutes(mux *http.ServeMux) {
	dh.DeviceHandler.RegisterRoutes(mux)

	status := func(get func(DomeStatus) any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !dh.dev.Connected() {
				handleError(w, r, alpaca.ErrNotConnected)
				return
			}
			handleResponse(w, r, get(dh.dev.Status()))
		}
	}
	mux.HandleFunc("GET /altitude", status(func(s DomeStatus) any { return s.Altitude }))
	mux.HandleFunc("GET /athome", status(func(s DomeStatus) any { return s.AtHome }))
	mux.HandleFunc("GET /atpark", status(func(s DomeStatus) any { return s.AtPark }))
	mux.HandleFunc("GET /azimuth", status(func(s DomeStatus) any { return s.Azimuth }))
	mux.HandleFunc("GET /shutterstatus", status(func(s DomeStatus) any { return s.Shutter }))
	mux.HandleFunc("GET /slewing", status(func(s DomeStatus) any { return s.Slewing }))
	mux.HandleFunc("GET /slaved", status(func(s DomeStatus) any { return s.Slaved }))

	capability := func(get func(DomeCapabilities) bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			handleResponse(w, r, get(dh.dev.Capabilities()))
		}
	}
	mux.HandleFunc("GET /canfindhome", capability(func(c DomeCapabilities) bool { return c.CanFindHome }))
	mux.HandleFunc("GET /canpark", capability(func(c DomeCapabilities) bool { return c.CanPark }))
	mux.HandleFunc("GET /cansetaltitude", capability(func(c DomeCapabilities) bool { return c.CanSetAltitude }))
	mux.HandleFunc("GET /cansetazimuth", capability(func(c DomeCapabilities) bool { return c.CanSetAzimuth }))
	mux.HandleFunc("GET /cansetpark", capability(func(c DomeCapabilities) bool { return c.CanSetPark }))
	mux.HandleFunc("GET /cansetshutter", capability(func(c DomeCapabilities) bool { return c.CanSetShutter }))
	mux.HandleFunc("GET /canslave", capability(func(c DomeCapabilities) bool { return c.CanSlave }))
	mux.HandleFunc("GET /cansyncazimuth", capability(func(c DomeCapabilities) bool { return c.CanSyncAzimuth }))

	mux.HandleFunc("PUT /slewtoazimuth", dh.handleAzimuth(dh.dev.SlewToAzimuth))
	mux.HandleFunc("PUT /synctoazimuth", dh.handleAzimuth(dh.dev.SyncToAzimuth))
	mux.HandleFunc("PUT /slewtoaltitude", dh.handleAction(func() error { return alpaca.ErrNotImplemented }))
	mux.HandleFunc("PUT /abortslew", dh.handleAction(dh.dev.AbortSlew))
	mux.HandleFunc("PUT /findhome", dh.handleAction(dh.dev.FindHome))
	mux.HandleFunc("PUT /park", dh.handleAction(dh.dev.Park))
	mux.HandleFunc("PUT /setpark", dh.handleAction(dh.dev.SetPark))
	mux.HandleFunc("PUT /openshutter", dh.handleAction(dh.dev.OpenShutter))
	mux.HandleFunc("PUT /closeshutter", dh.handleAction(dh.dev.CloseShutter))
}

func (dh *DomeHandler) handleAzimuth(fn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		azimuth, err := parseFloat(r, "Azimuth")
		if err == nil && (azimuth < 0 || azimuth >= 360) {
			err = alpaca.ErrInvalidValue
		}
		if err == nil {
			err = fn(azimuth)
		}
		if err != nil {
			handleError(w, r, err)
			return
		}
		handleResponse(w, r, nil)
	}
}

func (dh *DomeHandler) handleAction(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			handleError(w, r, err)
			return
		}
		handleResponse(w, r, nil)
	}
}
