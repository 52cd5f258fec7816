package alpaca

import (
	"encoding/json"
	"fmt"
)

// Response is the envelope of every Alpaca reply.
type Response struct {
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
	Value               any    `json:"Value,omitempty"`
}

// reply is Response as seen by the client, with the value left undecoded.
type reply struct {
	ClientTransactionID uint32          `json:"ClientTransactionID"`
	ServerTransactionID uint32          `json:"ServerTransactionID"`
	ErrorNumber         int             `json:"ErrorNumber"`
	ErrorMessage        string          `json:"ErrorMessage"`
	Value               json.RawMessage `json:"Value"`
}

// DeviceInfo describes a device in the management API.
type DeviceInfo struct {
	Name     string `json:"DeviceName"`
	Type     string `json:"DeviceType"`
	Number   int    `json:"DeviceNumber"`
	UniqueID string `json:"UniqueID"`
}

type ServerDescription struct {
	Name                string `json:"ServerName"`
	Manufacturer        string `json:"Manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion"`
	Location            string `json:"Location"`
}

// Decode unmarshals a raw value into T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("alpaca: response has no value")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("alpaca: cannot decode value %s: %w", raw, err)
	}
	return v, nil
}
