package simulator

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Setuper is implemented by devices with a setup page.
type Setuper interface {
	HandleSetup(w http.ResponseWriter, r *http.Request)
}

func (d *DomeSimulator) HandleSetup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		d.mu.Lock()
		cfg := d.config
		d.mu.Unlock()
		d.renderSetupForm(w, cfg, false, "")

	case http.MethodPost:
		cfg, err := parseDomeSetupForm(r)
		if err != nil {
			d.renderSetupForm(w, cfg, false, err.Error())
			return
		}

		d.logger.Infof("Setting dome config: %+v", cfg)
		if d.store != nil {
			if err := d.store.SetDomeConfig(cfg); err != nil {
				d.renderSetupForm(w, cfg, false, err.Error())
				return
			}
		}
		d.mu.Lock()
		d.config = cfg
		d.mu.Unlock()

		d.renderSetupForm(w, cfg, true, "")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *DomeSimulator) renderSetupForm(w http.ResponseWriter, cfg DomeConfig, success bool, err string) {
	data := struct {
		DomeConfig
		Success bool
		Error   string
	}{cfg, success, err}

	if err := templates.ExecuteTemplate(w, "dome_setup.html", data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		d.logger.Errorf("Error rendering template: %v", err)
	}
}

func parseDomeSetupForm(r *http.Request) (DomeConfig, error) {
	if err := r.ParseForm(); err != nil {
		return DomeConfig{}, fmt.Errorf("error parsing form: %v", err)
	}

	homePosition, err := getFormFloat(r, "home-position")
	if err != nil {
		return DomeConfig{}, err
	}
	parkPosition, err := getFormFloat(r, "park-position")
	if err != nil {
		return DomeConfig{}, err
	}
	slewRate, err := getFormFloat(r, "slew-rate")
	if err != nil {
		return DomeConfig{}, err
	}
	if slewRate < 0 {
		return DomeConfig{}, fmt.Errorf("invalid slew-rate: %v", slewRate)
	}

	return DomeConfig{
		HomePosition: homePosition,
		ParkPosition: parkPosition,
		SlewRate:     slewRate,
	}, nil
}

func getFormFloat(r *http.Request, key string) (float64, error) {
	value, err := strconv.ParseFloat(r.FormValue(key), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return value, nil
}
