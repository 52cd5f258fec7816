package scheduler

import (
	"sync"
	"time"
)

// Clock abstracts ticker creation so periodic work can be driven by tests.
type Clock interface {
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// RealClock implements Clock using the time package.
var RealClock Clock = realClock{}

type realClock struct{}

func (realClock) Ticker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) Chan() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}

// ManualClock is a Clock whose tickers only fire when Tick is called.
type ManualClock struct {
	mu      sync.Mutex
	tickers map[*manualTicker]struct{}
}

func NewManualClock() *ManualClock {
	return &ManualClock{tickers: make(map[*manualTicker]struct{})}
}

func (c *ManualClock) Ticker(d time.Duration) Ticker {
	t := &manualTicker{clock: c, period: d, ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers[t] = struct{}{}
	c.mu.Unlock()
	return t
}

// Tick fires every live ticker once. Like time.Ticker, a tick is dropped if
// the previous one has not been consumed yet.
func (c *ManualClock) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for t := range c.tickers {
		select {
		case t.ch <- now:
		default:
		}
	}
}

// Tickers returns the number of tickers that have not been stopped.
func (c *ManualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type manualTicker struct {
	clock  *ManualClock
	period time.Duration
	ch     chan time.Time
}

func (t *manualTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	delete(t.clock.tickers, t)
	t.clock.mu.Unlock()
}
