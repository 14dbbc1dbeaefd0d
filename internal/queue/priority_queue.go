package queue

import (
	"context"
	"fmt"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

// Capacities configures the buffer size of each priority tier.
type Capacities struct {
	High   int
	Normal int
	Low    int
}

// DefaultCapacities sizes the tiers for the expected traffic mix: high must
// never accumulate (small buffer applies back-pressure early), normal carries
// the bulk, low is best-effort background work.
var DefaultCapacities = Capacities{High: 1000, Normal: 5000, Low: 2000}

// PriorityQueue fans invocation items into one buffered channel per priority
// tier. Dequeue always serves the high tier first (double-select), then
// competes fairly between normal and low.
type PriorityQueue struct {
	high   chan Item
	normal chan Item
	low    chan Item
}

func New() *PriorityQueue {
	return NewWithCapacities(DefaultCapacities)
}

func NewWithCapacities(c Capacities) *PriorityQueue {
	return &PriorityQueue{
		high:   make(chan Item, c.High),
		normal: make(chan Item, c.Normal),
		low:    make(chan Item, c.Low),
	}
}

func (q *PriorityQueue) tier(p domain.Priority) chan Item {
	switch p {
	case domain.PriorityHigh:
		return q.high
	case domain.PriorityNormal:
		return q.normal
	case domain.PriorityLow:
		return q.low
	}
	return nil
}

// Enqueue places an item on its tier without blocking: a full tier returns
// ErrQueueFull immediately so the HTTP handler can answer 503 instead of
// hanging.
func (q *PriorityQueue) Enqueue(item Item) error {
	ch := q.tier(item.Priority)
	if ch == nil {
		return fmt.Errorf("unknown priority %q", item.Priority)
	}
	select {
	case ch <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
//
// The double-select keeps high-priority items from starving: a non-blocking
// probe of the high tier runs first, and only when it is empty does the
// worker enter a fair blocking select across all tiers plus the shutdown
// signal. Returns (Item{}, false) when ctx is cancelled.
func (q *PriorityQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.high:
		return item, true
	default:
	}

	select {
	case item := <-q.high:
		return item, true
	case item := <-q.normal:
		return item, true
	case item := <-q.low:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths reports the number of waiting items per tier, for the queue-depth
// gauges and the JSON metrics snapshot.
func (q *PriorityQueue) Depths() (high, normal, low int) {
	return len(q.high), len(q.normal), len(q.low)
}
