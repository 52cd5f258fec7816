package device

import (
	"fmt"
	"sync"
	"time"
)

// Settings holds the passthrough properties common to every device. It is
// used by the facade for its last-set values and embedded by backends.
type Settings struct {
	mu           sync.RWMutex
	host         string
	deviceName   string
	settlingTime time.Duration
	updateRate   int
}

func (s *Settings) Set(prop string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch prop {
	case PropHost, PropDeviceName:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, prop, value)
		}
		if prop == PropHost {
			s.host = v
		} else {
			s.deviceName = v
		}
	case PropSettlingTime:
		v, ok := value.(time.Duration)
		if !ok || v < 0 {
			return fmt.Errorf("%w: %s must be a non negative duration, got %v", ErrInvalidValue, prop, value)
		}
		s.settlingTime = v
	case PropUpdateRate:
		v, ok := value.(int)
		if !ok || v <= 0 {
			return fmt.Errorf("%w: %s must be a positive int, got %v", ErrInvalidValue, prop, value)
		}
		s.updateRate = v
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProperty, prop)
	}
	return nil
}

func (s *Settings) Get(prop string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch prop {
	case PropHost:
		return s.host, true
	case PropDeviceName:
		return s.deviceName, true
	case PropSettlingTime:
		return s.settlingTime, true
	case PropUpdateRate:
		return s.updateRate, true
	}
	return nil, false
}

func (s *Settings) Host() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

func (s *Settings) DeviceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceName
}

func (s *Settings) SettlingTime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settlingTime
}

func (s *Settings) UpdateRate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateRate
}
