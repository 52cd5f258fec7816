package simulator

import (
	"net/http"

	"devicelink/pkg/alpaca"
)

type DriverInfo struct {
	Name             string
	Version          string
	InterfaceVersion int
}

// Device is the part every simulated device shares.
type Device interface {
	DeviceInfo() alpaca.DeviceInfo
	DriverInfo() DriverInfo

	Connected() bool
	Connect() error
	Disconnect() error
}

// DeviceHandler serves the common device endpoints.
type DeviceHandler struct {
	dev Device
}

func (h *DeviceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /name", h.handleName)
	mux.HandleFunc("GET /description", h.handleDescription)
	mux.HandleFunc("GET /driverinfo", h.handleDriverInfo)
	mux.HandleFunc("GET /driverversion", h.handleDriverVersion)
	mux.HandleFunc("GET /interfaceversion", h.handleInterfaceVersion)

	mux.HandleFunc("GET /connected", h.handleConnected)
	mux.HandleFunc("PUT /connected", h.handleSetConnected)
	mux.HandleFunc("PUT /connect", h.handleConnect)
	mux.HandleFunc("PUT /disconnect", h.handleDisconnect)
}

func (h *DeviceHandler) handleName(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, h.dev.DeviceInfo().Name)
}

func (h *DeviceHandler) handleDescription(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, h.dev.DeviceInfo().Name+" simulator")
}

func (h *DeviceHandler) handleDriverInfo(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, h.dev.DriverInfo().Name)
}

func (h *DeviceHandler) handleDriverVersion(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, h.dev.DriverInfo().Version)
}

func (h *DeviceHandler) handleInterfaceVersion(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, h.dev.DriverInfo().InterfaceVersion)
}

func (h *DeviceHandler) handleConnected(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, h.dev.Connected())
}

func (h *DeviceHandler) handleSetConnected(w http.ResponseWriter, r *http.Request) {
	connected, err := parseBool(r, "Connected")
	if err != nil {
		handleError(w, r, err)
		return
	}
	if connected {
		err = h.dev.Connect()
	} else {
		err = h.dev.Disconnect()
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	handleResponse(w, r, nil)
}

func (h *DeviceHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Connect(); err != nil {
		handleError(w, r, err)
		return
	}
	handleResponse(w, r, nil)
}

func (h *DeviceHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Disconnect(); err != nil {
		handleError(w, r, err)
		return
	}
	handleResponse(w, r, nil)
}
