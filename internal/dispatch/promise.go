package dispatch

import (
	"fmt"
	"sync"
)

// Promise is a single-settlement deferred computation.
// It settles exactly once, to either a value or an error, and its result
// never changes after settlement. The zero value is not usable; construct
// with New, Resolve, Reject, or Go.
type Promise[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns an unsettled promise. The holder settles it with Fulfill or Fail.
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve returns a promise already settled with v.
func Resolve[T any](v T) *Promise[T] {
	p := New[T]()
	p.Fulfill(v)
	return p
}

// Reject returns a promise already settled with err.
func Reject[T any](err error) *Promise[T] {
	p := New[T]()
	p.Fail(err)
	return p
}

// Go runs fn on a new goroutine and returns a promise that settles with its
// result. A panic inside fn is recovered and settles the promise with a
// *PanicError instead of crashing the process.
func Go[T any](fn func() (T, error)) *Promise[T] {
	p := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Fail(&PanicError{Value: r})
			}
		}()
		v, err := fn()
		if err != nil {
			p.Fail(err)
			return
		}
		p.Fulfill(v)
	}()
	return p
}

// Fulfill settles the promise with v.
// Returns false if the promise was already settled; the first settlement wins.
func (p *Promise[T]) Fulfill(v T) bool {
	settled := false
	p.once.Do(func() {
		p.value = v
		settled = true
		close(p.done)
	})
	return settled
}

// Fail settles the promise with err.
// Returns false if the promise was already settled.
func (p *Promise[T]) Fail(err error) bool {
	settled := false
	p.once.Do(func() {
		p.err = err
		settled = true
		close(p.done)
	})
	return settled
}

// Done returns a channel that is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Result blocks until the promise settles and returns its outcome.
func (p *Promise[T]) Result() (T, error) {
	<-p.done
	return p.value, p.err
}

// Settled reports whether the promise has settled, without blocking.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// PanicError wraps a value recovered from a panicking producer or Go fn,
// so the panic surfaces as an ordinary rejection.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
