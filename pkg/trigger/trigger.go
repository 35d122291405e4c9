// Package trigger delivers debounced capture-trigger events from
// physical or keyboard sources.
package trigger

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce suppresses repeat events from one physical press.
const DefaultDebounce = 300 * time.Millisecond

// Event is one trigger occurrence.
type Event struct {
	Source string
	At     time.Time
}

// Source feeds trigger events into a channel until the context ends.
type Source interface {
	Run(ctx context.Context, events chan<- Event) error
}

// Chan is a programmatic Source: anything written to it becomes a
// trigger event. Useful for wiring GPIO callbacks or test harnesses.
type Chan chan Event

// Run forwards events until the context ends or the channel closes.
func (c Chan) Run(ctx context.Context, events chan<- Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c:
			if !ok {
				return nil
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

var _ Source = (Chan)(nil)

// Debouncer admits at most one event per window.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewDebouncer creates a Debouncer with the given suppression window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Allow reports whether an event at the given time passes the window,
// and records it if so.
func (d *Debouncer) Allow(at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.last.IsZero() && at.Sub(d.last) < d.window {
		return false
	}
	d.last = at
	return true
}
