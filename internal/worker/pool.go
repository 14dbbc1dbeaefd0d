package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/actions"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/ratelimiter"
	"github.com/fluxhub/action-dispatch/internal/repository"
)

// Pool manages the lifecycle of all dispatch workers.
// All workers share the same priority queue — the queue's double-select
// pattern handles priority ordering internally.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates count identical workers. Action-specific behavior lives in
// the registry and the per-action rate limiter, not in the workers.
func NewPool(
	count int,
	q *queue.PriorityQueue,
	repo repository.InvocationRepository,
	registry *actions.Registry,
	limiter *ratelimiter.ActionLimiters,
	bus *Bus,
	logger *zap.Logger,
) *Pool {
	workers := make([]*Worker, count)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, registry, limiter, bus,
			logger.With(zap.Int("worker_id", i)),
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight invocations
// settle before the process exits.
func (p *Pool) Wait() {
	p.wg.Wait()
}
