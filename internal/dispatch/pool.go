package dispatch

import (
	"context"

	"github.com/freeeve/battleodds/pkg/odds"
)

// Pool hands out dispatchers to concurrent callers. A caller waits until one
// is free or its context is done.
type Pool struct {
	free     chan *Dispatcher
	counters *Counters
}

// NewPool creates size dispatchers with newDispatcher, all sharing one set of
// counters.
func NewPool(size int, newDispatcher func(*Counters) *Dispatcher) *Pool {
	p := &Pool{
		free:     make(chan *Dispatcher, size),
		counters: &Counters{},
	}
	for i := 0; i < size; i++ {
		p.free <- newDispatcher(p.counters)
	}
	return p
}

// Acquire takes a dispatcher out of the pool. It must be handed back with
// Release.
func (p *Pool) Acquire(ctx context.Context) (*Dispatcher, error) {
	select {
	case d := <-p.free:
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a dispatcher to the pool.
func (p *Pool) Release(d *Dispatcher) {
	p.free <- d
}

// Compute runs req on the next free dispatcher.
func (p *Pool) Compute(ctx context.Context, req odds.Request) (*odds.Result, error) {
	d, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(d)
	return d.Compute(ctx, req)
}

// Stats aggregates over every dispatcher in the pool.
func (p *Pool) Stats() Stats { return p.counters.Snapshot() }

// Size is the number of dispatchers, busy or free.
func (p *Pool) Size() int { return cap(p.free) }
