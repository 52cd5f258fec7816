// Package config describes device slots and the per-framework settings of
// their backends.
package config

import (
	"errors"
	"fmt"
)

// Framework names.
const (
	FrameworkNone   = ""
	FrameworkINDI   = "indi"
	FrameworkAlpaca = "alpaca"
	FrameworkASCOM  = "ascom"
)

// Defaults applied to empty settings.
const (
	DefaultINDIPort      = 7624
	DefaultAlpacaAddress = "localhost:11111"
	DefaultAPIVersion    = 1
	DefaultProtocol      = "http"
	DefaultUpdateRate    = 1000 // ms
)

var ErrSlotNotFound = errors.New("slot not found")

// FrameworkConfig holds the settings of one backend of a slot. INDI uses
// Host, Port, LoadConfig and ShowMessages; Alpaca uses Address,
// DeviceNumber, APIVersion and Protocol. DeviceName and DeviceList identify
// the device and are never copied between slots.
type FrameworkConfig struct {
	DeviceName string   `json:"deviceName" yaml:"device_name"`
	DeviceList []string `json:"deviceList,omitempty" yaml:"device_list,omitempty"`
	UpdateRate int      `json:"updateRate" yaml:"update_rate"` // ms

	Host         string `json:"host,omitempty" yaml:"host,omitempty"`
	Port         int    `json:"port,omitempty" yaml:"port,omitempty"`
	LoadConfig   bool   `json:"loadConfig,omitempty" yaml:"load_config,omitempty"`
	ShowMessages bool   `json:"showMessages,omitempty" yaml:"show_messages,omitempty"`

	Address      string `json:"address,omitempty" yaml:"address,omitempty"`
	DeviceNumber int    `json:"deviceNumber,omitempty" yaml:"device_number,omitempty"`
	APIVersion   int    `json:"apiVersion,omitempty" yaml:"api_version,omitempty"`
	Protocol     string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// WithDefaults fills the unset fields that framework relies on.
func (c FrameworkConfig) WithDefaults(framework string) FrameworkConfig {
	if c.UpdateRate <= 0 {
		c.UpdateRate = DefaultUpdateRate
	}
	switch framework {
	case FrameworkINDI:
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = DefaultINDIPort
		}
	case FrameworkAlpaca:
		if c.Address == "" {
			c.Address = DefaultAlpacaAddress
		}
		if c.APIVersion == 0 {
			c.APIVersion = DefaultAPIVersion
		}
		if c.Protocol == "" {
			c.Protocol = DefaultProtocol
		}
	}
	return c
}

// CopyParams returns dst with every parameter of c except the identifying
// fields DeviceName and DeviceList.
func (c FrameworkConfig) CopyParams(dst FrameworkConfig) FrameworkConfig {
	out := c
	out.DeviceName = dst.DeviceName
	if dst.DeviceList != nil {
		out.DeviceList = append([]string(nil), dst.DeviceList...)
	} else {
		out.DeviceList = nil
	}
	return out
}

// Slot is one logical device role such as "dome" or "camera".
type Slot struct {
	Name       string                     `json:"name" yaml:"name"`
	DeviceType string                     `json:"deviceType" yaml:"device_type"`
	Framework  string                     `json:"framework" yaml:"framework"`
	Frameworks map[string]FrameworkConfig `json:"frameworks" yaml:"frameworks"`
}

// Config returns the settings of framework.
func (s Slot) Config(framework string) (FrameworkConfig, bool) {
	cfg, ok := s.Frameworks[framework]
	return cfg, ok
}

// Clone returns a deep copy of s.
func (s Slot) Clone() Slot {
	out := s
	out.Frameworks = make(map[string]FrameworkConfig, len(s.Frameworks))
	for name, cfg := range s.Frameworks {
		if cfg.DeviceList != nil {
			cfg.DeviceList = append([]string(nil), cfg.DeviceList...)
		}
		out.Frameworks[name] = cfg
	}
	return out
}

func (s Slot) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("slot name cannot be empty")
	}
	if s.Framework != FrameworkNone {
		if _, ok := s.Frameworks[s.Framework]; !ok {
			return fmt.Errorf("slot %s: framework %q is not configured", s.Name, s.Framework)
		}
	}
	return nil
}

// Preferences are application wide settings consumed by the registry.
type Preferences struct {
	AutoConnectASCOM bool `json:"autoConnectASCOM" yaml:"auto_connect_ascom"`
}

// Store persists slots and preferences.
type Store interface {
	Slots() ([]Slot, error)
	Slot(name string) (Slot, error)
	SaveSlot(slot Slot) error
	Preferences() (Preferences, error)
	SavePreferences(prefs Preferences) error
}
