package dispatch

import "sync"

// State is the view a Store exposes after folding notifications.
// On rejection the previous Value is retained alongside Err, matching the
// convention of keeping stale data visible while showing the failure.
type State[T any] struct {
	Loading bool
	Value   T
	Err     error
}

// Store folds a notification sequence into State. It is the reference
// subscriber for the dispatcher: Pending marks loading and clears any prior
// error, Fulfilled installs the value, Rejected records the error.
// Safe for concurrent use.
type Store[T any] struct {
	mu    sync.RWMutex
	state State[T]
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{}
}

// Apply folds one notification into the state.
func (s *Store[T]) Apply(n Notification[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch n.Phase {
	case Pending:
		s.state.Loading = true
		s.state.Err = nil
	case Fulfilled:
		s.state.Loading = false
		s.state.Value = n.Value
		s.state.Err = nil
	case Rejected:
		s.state.Loading = false
		s.state.Err = n.Err
	}
}

// State returns a copy of the current state.
func (s *Store[T]) State() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Emitter adapts the store to the dispatcher's emit capability.
func (s *Store[T]) Emitter() Emitter[T] {
	return s.Apply
}
