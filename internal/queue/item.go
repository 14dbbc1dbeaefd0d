package queue

import "github.com/fluxhub/action-dispatch/internal/domain"

// Item is the minimal data placed on the queue.
// Workers fetch the full Invocation from the DB using the ID,
// keeping the queue lightweight and the domain data authoritative.
type Item struct {
	InvocationID string
	Action       string
	Priority     domain.Priority
}
