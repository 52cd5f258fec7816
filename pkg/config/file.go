package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MQTTConfig describes the broker the event bridge publishes to. An empty
// Broker disables the bridge.
type MQTTConfig struct {
	Broker    string `yaml:"broker"` // e.g. tcp://localhost:1883
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TopicRoot string `yaml:"topic_root"`
	QoS       byte   `yaml:"qos"`
}

// File is the bootstrap configuration read by the command line tool. Slots
// listed here seed the database the first time it is opened; afterwards the
// database is authoritative.
type File struct {
	Database    string      `yaml:"database"`
	PoolSize    int64       `yaml:"pool_size"`
	Preferences Preferences `yaml:"preferences"`
	MQTT        MQTTConfig  `yaml:"mqtt"`
	Slots       []Slot      `yaml:"slots"`
}

// DefaultFile returns the configuration used when no file is given: every
// supported slot, with no framework selected.
func DefaultFile() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// LoadFile loads the YAML configuration at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	f.applyDefaults()
	for _, slot := range f.Slots {
		if err := slot.Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// DefaultSlots lists the device roles and the discovery capability each expects.
var DefaultSlots = []Slot{
	{Name: "telescope", DeviceType: "telescope"},
	{Name: "camera", DeviceType: "camera"},
	{Name: "dome", DeviceType: "dome"},
	{Name: "filterwheel", DeviceType: "filterwheel"},
	{Name: "focuser", DeviceType: "focuser"},
	{Name: "cover", DeviceType: "covercalibrator"},
	{Name: "power", DeviceType: "switch"},
	{Name: "sensor", DeviceType: "observingconditions"},
	{Name: "skymeter", DeviceType: "observingconditions"},
}

func (f *File) applyDefaults() {
	if f.Database == "" {
		f.Database = "devicelink.db"
	}
	if f.PoolSize <= 0 {
		f.PoolSize = 8
	}

	seen := make(map[string]bool, len(f.Slots))
	for i := range f.Slots {
		seen[f.Slots[i].Name] = true
	}
	for _, slot := range DefaultSlots {
		if !seen[slot.Name] {
			f.Slots = append(f.Slots, slot)
		}
	}

	for i := range f.Slots {
		slot := &f.Slots[i]
		if slot.Frameworks == nil {
			slot.Frameworks = map[string]FrameworkConfig{}
		}
		// Every slot can be served by both protocols.
		for _, fw := range []string{FrameworkINDI, FrameworkAlpaca} {
			slot.Frameworks[fw] = slot.Frameworks[fw].WithDefaults(fw)
		}
	}
}
