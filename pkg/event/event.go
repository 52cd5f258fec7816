// Package event carries device notifications from the backends to the rest
// of the application.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Kind string

const (
	ServerConnected    Kind = "serverConnected"
	ServerDisconnected Kind = "serverDisconnected"
	DeviceFound        Kind = "deviceFound"
	DeviceRemoved      Kind = "deviceRemoved"
	DeviceConnected    Kind = "deviceConnected"
	DeviceDisconnected Kind = "deviceDisconnected"
	PropertyChanged    Kind = "propertyChanged"
	Message            Kind = "message"
	SlewFinished       Kind = "slewFinished"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is a single notification raised by a device slot.
type Event struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Slot    string    `json:"slot"`
	Kind    Kind      `json:"kind"`
	Device  string    `json:"device,omitempty"`
	Devices []string  `json:"devices,omitempty"` // serverDisconnected
	Key     string    `json:"key,omitempty"`     // propertyChanged
	Value   any       `json:"value,omitempty"`
	Level   Level     `json:"level,omitempty"` // message
	Text    string    `json:"text,omitempty"`
}

// HandlerFunc is invoked synchronously by Publish and must not block.
type HandlerFunc func(Event)

// Bus fans events out to handlers and channel subscribers. Slow channel
// subscribers lose events instead of blocking the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers []HandlerFunc
	subs     map[chan Event]struct{}
	logger   log.FieldLogger
}

func NewBus(logger log.FieldLogger) *Bus {
	return &Bus{
		subs:   make(map[chan Event]struct{}),
		logger: logger.WithField("component", "events"),
	}
}

// Handle registers a synchronous handler.
func (b *Bus) Handle(fn HandlerFunc) {
	b.mu.Lock()
	b.handlers = append(b.handlers, fn)
	b.mu.Unlock()
}

// Subscribe returns a buffered channel receiving every event and a function
// that unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish stamps the event with an ID and time if missing and delivers it.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	// Handlers may publish again, so they run without the lock held.
	for _, fn := range handlers {
		fn(ev)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warnf("Subscriber is slow, dropping %s event of %s", ev.Kind, ev.Slot)
		}
	}
}

// Emitter publishes events on behalf of one slot.
type Emitter struct {
	bus  *Bus
	slot string
}

func (b *Bus) Emitter(slot string) Emitter {
	return Emitter{bus: b, slot: slot}
}

// Emit publishes ev with the emitter's slot. A zero Emitter discards events.
func (e Emitter) Emit(ev Event) {
	if e.bus == nil {
		return
	}
	ev.Slot = e.slot
	e.bus.Publish(ev)
}

func (e Emitter) Slot() string {
	return e.slot
}
