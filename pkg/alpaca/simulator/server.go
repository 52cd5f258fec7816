// Documentation: https://ascom-standards.org/api/?urls.primaryName=ASCOM+Alpaca+Management+API

// Package simulator serves simulated devices over the Alpaca protocol.
package simulator

import (
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"devicelink/pkg/alpaca"
)

// Server is an Alpaca server exposing the management API and the
// devices it simulates.
type Server struct {
	description alpaca.ServerDescription
	devices     []Device
	logger      log.FieldLogger
}

func NewServer(description alpaca.ServerDescription, devices []Device, logger log.FieldLogger) *Server {
	server := Server{
		description: description,
		devices:     devices,
		logger:      logger,
	}

	return &server
}

type DeviceHTTPHandler interface {
	RegisterRoutes(mux *http.ServeMux)
}

func (s *Server) AddRoutes() *http.ServeMux {
	r := http.NewServeMux()

	// Add management routes
	r.HandleFunc("GET /management/apiversions", s.handleAPIVersions)
	r.HandleFunc("GET /management/v1/description", s.handleDescription)
	r.HandleFunc("GET /management/v1/configureddevices", s.handleConfiguredDevices)

	// Create handlers for each device
	for _, dev := range s.devices {
		mux := http.NewServeMux()
		var handler DeviceHTTPHandler

		switch d := dev.(type) {
		case Dome:
			s.logger.Infof("Creating new DomeHandler for %s", dev.DeviceInfo().Name)
			handler = NewDomeHandler(d)
		default:
			s.logger.Warnf("No specific handler for device type: %T", dev)
			handler = &DeviceHandler{dev: dev}
		}
		handler.RegisterRoutes(mux)

		devType := strings.ToLower(dev.DeviceInfo().Type)
		devNumber := dev.DeviceInfo().Number

		apiPrefix := fmt.Sprintf("/api/v1/%s/%d", devType, devNumber)
		r.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, mux))

		if setup, ok := dev.(Setuper); ok {
			r.HandleFunc(fmt.Sprintf("/setup/v1/%s/%d/setup", devType, devNumber), setup.HandleSetup)
		}
	}

	return r
}

func (s *Server) handleAPIVersions(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, []int{1})
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, r, s.description)
}

func (s *Server) handleConfiguredDevices(w http.ResponseWriter, r *http.Request) {
	deviceInfo := make([]alpaca.DeviceInfo, 0, len(s.devices))
	for _, device := range s.devices {
		deviceInfo = append(deviceInfo, device.DeviceInfo())
	}

	handleResponse(w, r, deviceInfo)
}
