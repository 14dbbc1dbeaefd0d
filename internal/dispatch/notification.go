package dispatch

// Phase identifies which of the three notification variants a value carries.
type Phase int

const (
	// Pending is emitted exactly once, before the producer is invoked.
	Pending Phase = iota
	// Fulfilled carries the settled value of the computation.
	Fulfilled
	// Rejected carries the error the computation settled with.
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Terminal reports whether the phase settles a dispatch.
// Exactly one terminal notification follows every Pending.
func (p Phase) Terminal() bool {
	return p == Fulfilled || p == Rejected
}

// Notification is the tagged variant handed to an emitter.
// Value is meaningful only when Phase == Fulfilled; Err only when
// Phase == Rejected. A notification is not retained by the dispatcher
// after the hand-off.
type Notification[T any] struct {
	Phase Phase
	Value T
	Err   error
}

// NewPending returns the loading-state notification.
func NewPending[T any]() Notification[T] {
	return Notification[T]{Phase: Pending}
}

// NewFulfilled returns the success terminal notification carrying v.
func NewFulfilled[T any](v T) Notification[T] {
	return Notification[T]{Phase: Fulfilled, Value: v}
}

// NewRejected returns the failure terminal notification carrying err.
func NewRejected[T any](err error) Notification[T] {
	return Notification[T]{Phase: Rejected, Err: err}
}
