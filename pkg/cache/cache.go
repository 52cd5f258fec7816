// Package cache holds the last known property values of a device slot.
//
// Keys have the form "PROPERTY.ELEMENT". Any number of readers may access a
// Store concurrently, but only the holder of the current Writer may change
// it. Acquiring a new Writer revokes the previous one, so a backend that has
// been stopped can never write again, even from a request that was in flight.
package cache

import (
	"sort"
	"strings"
	"sync"
)

// ChangeFunc is called after a key was set, deleted or cleared. Removed keys
// are reported with a nil value.
type ChangeFunc func(key string, value any)

// Store is the property cache of one device slot.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
	writer *Writer

	onChange ChangeFunc
}

func New() *Store {
	return &Store{values: make(map[string]any)}
}

// OnChange registers the change callback. It runs synchronously on the
// writing goroutine and must not block.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Acquire hands out write ownership to owner and revokes any previous writer.
func (s *Store) Acquire(owner string) *Writer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		s.writer.revoked = true
	}
	s.writer = &Writer{store: s, owner: owner}
	return s.writer
}

// Owner returns the name of the current writer, or "" if nobody owns the store.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.writer == nil || s.writer.revoked {
		return ""
	}
	return s.writer.owner
}

// Clear removes every value. It is used by the facade before a backend is
// started, independently of who owns the store.
func (s *Store) Clear() {
	s.mu.Lock()
	removed, notify := s.clearLocked()
	s.mu.Unlock()

	s.notifyRemoved(removed, notify)
}

func (s *Store) clearLocked() ([]string, ChangeFunc) {
	removed := make([]string, 0, len(s.values))
	for k := range s.values {
		removed = append(removed, k)
	}
	s.values = make(map[string]any)
	return removed, s.onChange
}

// notifyRemoved reports cleared keys in sorted order. It must be called
// without holding s.mu.
func (s *Store) notifyRemoved(removed []string, notify ChangeFunc) {
	if notify == nil {
		return
	}
	sort.Strings(removed)
	for _, k := range removed {
		notify(k, nil)
	}
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Float(key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func (s *Store) Bool(key string) (bool, bool) {
	v, ok := s.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (s *Store) String(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *Store) Int(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Len returns the number of cached keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Keys returns the sorted keys that start with prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of all values.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]any, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Writer is the write handle of a Store. All methods are no-ops returning
// false once the writer has been revoked.
type Writer struct {
	store   *Store
	owner   string
	revoked bool // guarded by store.mu
}

// Set upserts value under key. Only float64, bool, string and int values are
// accepted; other ints and floats are normalized.
func (w *Writer) Set(key string, value any) bool {
	switch v := value.(type) {
	case float32:
		value = float64(v)
	case int32:
		value = int(v)
	case int64:
		value = int(v)
	case float64, bool, string, int:
	default:
		return false
	}

	s := w.store
	s.mu.Lock()
	if w.revoked {
		s.mu.Unlock()
		return false
	}
	old, existed := s.values[key]
	s.values[key] = value
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil && (!existed || old != value) {
		notify(key, value)
	}
	return true
}

// Delete removes key from the store.
func (w *Writer) Delete(key string) bool {
	s := w.store
	s.mu.Lock()
	if w.revoked {
		s.mu.Unlock()
		return false
	}
	_, existed := s.values[key]
	delete(s.values, key)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil && existed {
		notify(key, nil)
	}
	return true
}

// Clear removes all values.
func (w *Writer) Clear() bool {
	s := w.store
	s.mu.Lock()
	if w.revoked {
		s.mu.Unlock()
		return false
	}
	removed, notify := s.clearLocked()
	s.mu.Unlock()

	s.notifyRemoved(removed, notify)
	return true
}

// Release gives up write ownership. Releasing twice is harmless.
func (w *Writer) Release() {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	w.revoked = true
	if s.writer == w {
		s.writer = nil
	}
}

// Active reports whether the writer still owns the store.
func (w *Writer) Active() bool {
	w.store.mu.RLock()
	defer w.store.mu.RUnlock()
	return !w.revoked
}
