// Package scheduler runs the short-lived periodic work of the device
// backends (poll ticks, reconnect attempts, settle timers) on a bounded pool.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const DefaultPoolSize = 8

// Pool bounds the number of task executions running at the same time.
type Pool struct {
	sem    *semaphore.Weighted
	clock  Clock
	logger log.FieldLogger
}

func NewPool(size int64, clock Clock, logger log.FieldLogger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if clock == nil {
		clock = RealClock
	}
	return &Pool{
		sem:    semaphore.NewWeighted(size),
		clock:  clock,
		logger: logger.WithField("component", "scheduler"),
	}
}

// Task is a handle on scheduled work.
type Task struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Stop cancels the task. It does not wait for a running execution, whose
// context is cancelled. Stop is idempotent.
func (t *Task) Stop() {
	t.stopOnce.Do(t.cancel)
}

// Done is closed once the task loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task loop has exited.
func (t *Task) Wait() {
	<-t.done
}

// Every runs fn every interval until the task is stopped. The first run
// happens one interval after the call. Executions never overlap; ticks that
// arrive while fn is running are dropped.
func (p *Pool) Every(interval time.Duration, fn func(ctx context.Context)) *Task {
	return p.schedule(interval, fn, false)
}

// After runs fn once after d unless the task is stopped first.
func (p *Pool) After(d time.Duration, fn func(ctx context.Context)) *Task {
	return p.schedule(d, fn, true)
}

// Go runs fn once on the pool, waiting for a free slot.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		fn(ctx)
	}()
	return nil
}

func (p *Pool) schedule(d time.Duration, fn func(ctx context.Context), once bool) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{cancel: cancel, done: make(chan struct{})}
	ticker := p.clock.Ticker(d)

	go func() {
		defer close(t.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}

			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			// A tick and a stop may race in the select above.
			if ctx.Err() == nil {
				p.run(ctx, fn)
			}
			p.sem.Release(1)

			if once {
				return
			}
		}
	}()

	return t
}

func (p *Pool) run(ctx context.Context, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("Scheduled task panicked: %v", r)
		}
	}()
	fn(ctx)
}
