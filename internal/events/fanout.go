package events

import (
	"context"
	"errors"
	"sync"

	"github.com/jaakkos/dao-ledger/internal/app"
)

// Fanout delivers each event to every attached publisher. A failing sink does
// not stop delivery to the others.
type Fanout struct {
	mu    sync.RWMutex
	sinks []app.EventPublisher
}

// NewFanout returns a Fanout over sinks; nil entries are skipped.
func NewFanout(sinks ...app.EventPublisher) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add attaches another sink.
func (f *Fanout) Add(sink app.EventPublisher) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

// Len returns the number of attached sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Publish implements app.EventPublisher. It returns every sink error joined.
func (f *Fanout) Publish(ctx context.Context, ev app.Event) error {
	f.mu.RLock()
	sinks := append([]app.EventPublisher(nil), f.sinks...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
