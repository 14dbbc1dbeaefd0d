package dispatch

import (
	"errors"
	"sort"
	"sync"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("dispatch: bus is closed")

// Bus is an in-process publish/subscribe channel for events of type E.
//
// A single pump goroutine delivers events one at a time, in publish order,
// to subscribers in subscription order. A subscriber callback is therefore
// never invoked concurrently with itself and never observes events out of
// order — the single-threaded cooperative model the dispatcher's emission
// contract assumes.
type Bus[E any] struct {
	mu     sync.RWMutex
	subs   map[int]func(E)
	nextID int
	closed bool

	events chan E
	pumped sync.WaitGroup
}

// NewBus creates a bus with the given publish buffer and starts its pump.
func NewBus[E any](buffer int) *Bus[E] {
	b := &Bus[E]{
		subs:   make(map[int]func(E)),
		events: make(chan E, buffer),
	}
	b.pumped.Add(1)
	go b.pump()
	return b
}

// Subscribe registers fn and returns a function that removes it.
// fn must not block; a blocked subscriber stalls every delivery.
func (b *Bus[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish hands e to the pump. It blocks only when the buffer is full and
// returns ErrBusClosed once Close has been called.
func (b *Bus[E]) Publish(e E) error {
	// The read lock is held across the send so Close cannot close the events
	// channel while a publisher is mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	b.events <- e
	return nil
}

// Close stops accepting publishes, delivers everything already buffered,
// and waits for the pump to exit.
func (b *Bus[E]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()

	b.pumped.Wait()
}

func (b *Bus[E]) pump() {
	defer b.pumped.Done()
	for e := range b.events {
		for _, fn := range b.snapshot() {
			fn(e)
		}
	}
}

// snapshot returns the current subscribers in subscription order, so a
// Subscribe or unsubscribe during delivery cannot perturb the iteration.
func (b *Bus[E]) snapshot() []func(E) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fns := make([]func(E), len(ids))
	for i, id := range ids {
		fns[i] = b.subs[id]
	}
	return fns
}
