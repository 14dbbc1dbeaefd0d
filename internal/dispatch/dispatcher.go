// Package dispatch implements the async action dispatch convention:
// invoking an action emits a Pending notification immediately, then exactly
// one terminal notification (Fulfilled or Rejected) once the underlying
// deferred computation settles.
//
// The emit capability is passed in explicitly rather than reached through
// ambient dispatcher state, so the same core serves both the in-process Bus
// and the persistence layer of the worker pool.
package dispatch

import "errors"

// ErrNilPromise rejects a dispatch whose producer returned a nil promise.
var ErrNilPromise = errors.New("dispatch: producer returned a nil promise")

// Producer creates the deferred computation for one dispatch.
// It may panic; the panic is converted into a rejection.
type Producer[T any] func() *Promise[T]

// Emitter receives the notifications of a dispatch. For a single dispatch it
// is invoked exactly twice, Pending first, and never concurrently with itself.
type Emitter[T any] func(Notification[T])

// Dispatch emits Pending synchronously, invokes producer, and schedules the
// terminal emission for when the returned promise settles. It returns as soon
// as the wait is scheduled; it never blocks on the computation itself.
//
// Producer failures are never swallowed: a synchronous panic, a nil promise,
// and a rejected promise all surface as exactly one Rejected notification.
func Dispatch[T any](producer Producer[T], emit Emitter[T]) {
	emit(NewPending[T]())
	p := runProducer(producer)
	go func() {
		settle(p, emit)
	}()
}

// DispatchSync is Dispatch with the terminal emission performed on the calling
// goroutine: it blocks until the promise settles and the terminal notification
// has been handed to emit. Workers use this form, since the worker goroutine
// itself is the scheduler that resumes after settlement.
func DispatchSync[T any](producer Producer[T], emit Emitter[T]) {
	emit(NewPending[T]())
	settle(runProducer(producer), emit)
}

// Func adapts an ordinary fallible function into a Producer that runs it on
// its own goroutine.
func Func[T any](fn func() (T, error)) Producer[T] {
	return func() *Promise[T] {
		return Go(fn)
	}
}

// runProducer invokes the producer, converting a synchronous panic or a nil
// promise into an already-rejected promise. Pending has been emitted by the
// time this runs, so the ordering invariant holds on every path.
func runProducer[T any](producer Producer[T]) (p *Promise[T]) {
	defer func() {
		if r := recover(); r != nil {
			p = Reject[T](&PanicError{Value: r})
		}
	}()
	p = producer()
	if p == nil {
		p = Reject[T](ErrNilPromise)
	}
	return p
}

func settle[T any](p *Promise[T], emit Emitter[T]) {
	v, err := p.Result()
	if err != nil {
		emit(NewRejected[T](err))
		return
	}
	emit(NewFulfilled(v))
}
