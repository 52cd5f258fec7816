package config

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	slotsBucket    = "slots"
	settingsBucket = "settings"
	preferencesKey = "preferences"
)

// BoltStore keeps slot configurations as JSON values in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a store and seeds the given slots if they are not
// already present in the database.
func NewBoltStore(db *bolt.DB, defaults []Slot) (*BoltStore, error) {
	st := BoltStore{db: db}

	if err := st.setDefaults(defaults); err != nil {
		return nil, err
	}
	return &st, nil
}

// setDefaults stores the default slots and preferences that are missing.
func (s *BoltStore) setDefaults(defaults []Slot) error {
	for _, slot := range defaults {
		if _, err := s.Slot(slot.Name); err == nil {
			continue
		}
		log.Infof("Setting default config for slot %s", slot.Name)
		if err := s.SaveSlot(slot); err != nil {
			return fmt.Errorf("failed to seed slot %s: %w", slot.Name, err)
		}
	}

	if _, err := s.Preferences(); err != nil {
		return s.SavePreferences(Preferences{})
	}
	return nil
}

// SaveSlot saves the slot as a json string in the database.
func (s *BoltStore) SaveSlot(slot Slot) error {
	if err := slot.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(slot)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(slotsBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(slot.Name), value)
	})
}

// Slot retrieves one slot from the database.
func (s *BoltStore) Slot(name string) (Slot, error) {
	var slot Slot

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(slotsBucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrSlotNotFound, name)
		}

		value := b.Get([]byte(name))
		if value == nil {
			return fmt.Errorf("%w: %s", ErrSlotNotFound, name)
		}

		return json.Unmarshal(value, &slot)
	})

	return slot, err
}

// Slots returns all slots ordered by name.
func (s *BoltStore) Slots() ([]Slot, error) {
	var slots []Slot

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(slotsBucket))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var slot Slot
			if err := json.Unmarshal(v, &slot); err != nil {
				return fmt.Errorf("slot %s: %w", k, err)
			}
			slots = append(slots, slot)
			return nil
		})
	})

	return slots, err
}

// SavePreferences saves the preferences as a json string in the database.
func (s *BoltStore) SavePreferences(prefs Preferences) error {
	value, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(settingsBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(preferencesKey), value)
	})
}

// Preferences retrieves the preferences from the database.
func (s *BoltStore) Preferences() (Preferences, error) {
	var prefs Preferences

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(settingsBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", settingsBucket)
		}

		value := b.Get([]byte(preferencesKey))
		if value == nil {
			return fmt.Errorf("key preferences not found")
		}

		return json.Unmarshal(value, &prefs)
	})

	return prefs, err
}
