package domain

import "time"

// PhaseEvent is published on the in-process bus for every phase transition an
// invocation goes through while being dispatched. Subscribers (metrics, logs)
// receive events serially, in emission order.
type PhaseEvent struct {
	InvocationID string
	Action       string
	Phase        Phase
	Error        string
	// Elapsed is the dispatch duration, set only on settled phases.
	Elapsed time.Duration
	At      time.Time
}
