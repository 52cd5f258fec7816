package simulator

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket              = "simulator"
	defaultHomePosition = 0
	defaultParkPosition = 90

	domeConfigKey = "dome_config"
)

type DomeConfig struct {
	HomePosition float64 `json:"home_position"` // degrees
	ParkPosition float64 `json:"park_position"` // degrees
	SlewRate     float64 `json:"slew_rate"`     // degrees per second, 0 slews instantly
}

// Store persists the simulator settings.
type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if err := st.setDefaults(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) setDefaults() error {
	if _, err := s.DomeConfig(); err != nil {
		log.Infof("Setting default dome simulator config")
		return s.SetDomeConfig(DomeConfig{
			HomePosition: defaultHomePosition,
			ParkPosition: defaultParkPosition,
		})
	}
	return nil
}

func (s *Store) SetDomeConfig(cfg DomeConfig) error {
	if cfg.HomePosition < 0 || cfg.HomePosition >= 360 {
		return fmt.Errorf("invalid home position: %v", cfg.HomePosition)
	}
	if cfg.ParkPosition < 0 || cfg.ParkPosition >= 360 {
		return fmt.Errorf("invalid park position: %v", cfg.ParkPosition)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return b.Put([]byte(domeConfigKey), value)
	})
}

func (s *Store) DomeConfig() (DomeConfig, error) {
	var cfg DomeConfig

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(domeConfigKey))
		if value == nil {
			return fmt.Errorf("key %s not found", domeConfigKey)
		}

		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
