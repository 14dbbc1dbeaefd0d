package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/actions"
	"github.com/fluxhub/action-dispatch/internal/dispatch"
	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/ratelimiter"
	"github.com/fluxhub/action-dispatch/internal/repository"
)

// Bus is the phase-event publish surface the worker needs.
type Bus = dispatch.Bus[domain.PhaseEvent]

// Worker is a single goroutine that continuously pulls items from the
// priority queue, applies per-action rate limiting, and runs the invocation
// through the dispatcher. The emit closure it hands to DispatchSync is the
// persistent subscriber: every notification becomes a phase transition in the
// repository and a PhaseEvent on the bus.
type Worker struct {
	id       int
	q        *queue.PriorityQueue
	repo     repository.InvocationRepository
	registry *actions.Registry
	limiter  *ratelimiter.ActionLimiters
	bus      *Bus
	logger   *zap.Logger
}

// NewWorker constructs a worker. bus may be nil (no events published).
func NewWorker(
	id int,
	q *queue.PriorityQueue,
	repo repository.InvocationRepository,
	registry *actions.Registry,
	limiter *ratelimiter.ActionLimiters,
	bus *Bus,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		id: id, q: q, repo: repo, registry: registry,
		limiter: limiter, bus: bus, logger: logger,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	log := w.logger.With(
		zap.String("invocation_id", item.InvocationID),
		zap.String("action", item.Action),
	)

	inv, err := w.repo.GetByID(ctx, item.InvocationID)
	if err != nil {
		log.Error("failed to fetch invocation", zap.Error(err))
		return
	}

	// A cancellation between enqueue and dispatch time is valid; skip silently.
	if inv.Phase == domain.PhaseCancelled {
		log.Debug("invocation was cancelled before dispatch")
		return
	}

	handler, err := w.registry.Resolve(inv.Action)
	if err != nil {
		// Can only happen if the registry shrank since admission.
		w.settleRejected(ctx, inv, err.Error(), 0, log)
		return
	}

	// Block here until the per-action rate limiter grants a token.
	if err := w.limiter.Wait(ctx, inv.Action); err != nil {
		// ctx cancelled while waiting — worker is shutting down.
		return
	}

	start := time.Now()

	producer := func() *dispatch.Promise[json.RawMessage] {
		return dispatch.Go(func() (json.RawMessage, error) {
			return handler(ctx, inv.Payload)
		})
	}

	// The worker goroutine is the cooperative scheduler: DispatchSync emits
	// pending, waits for settlement, and emits exactly one terminal
	// notification, all on this goroutine, so phase writes stay ordered.
	dispatch.DispatchSync(producer, func(n dispatch.Notification[json.RawMessage]) {
		switch n.Phase {
		case dispatch.Pending:
			if err := w.repo.MarkRunning(ctx, inv.ID, time.Now().UTC()); err != nil {
				log.Error("failed to mark as running", zap.Error(err))
			}
			w.publish(inv, domain.PhaseRunning, "", 0)

		case dispatch.Fulfilled:
			elapsed := time.Since(start)
			if err := w.repo.MarkFulfilled(ctx, inv.ID, n.Value, time.Now().UTC()); err != nil {
				log.Error("failed to mark as fulfilled", zap.Error(err))
			}
			w.publish(inv, domain.PhaseFulfilled, "", elapsed)
			log.Info("invocation fulfilled", zap.Duration("latency", elapsed))

		case dispatch.Rejected:
			w.settleRejected(ctx, inv, n.Err.Error(), time.Since(start), log)
		}
	})

	if inv.GroupID != nil {
		if err := w.repo.UpdateGroupCounts(ctx, *inv.GroupID); err != nil {
			log.Warn("failed to update group counts", zap.Error(err))
		}
	}
}

func (w *Worker) settleRejected(ctx context.Context, inv *domain.Invocation, errMsg string, elapsed time.Duration, log *zap.Logger) {
	if err := w.repo.MarkRejected(ctx, inv.ID, errMsg, time.Now().UTC()); err != nil {
		log.Error("failed to mark as rejected", zap.Error(err))
	}
	w.publish(inv, domain.PhaseRejected, errMsg, elapsed)
	log.Warn("invocation rejected", zap.String("reason", errMsg), zap.Duration("latency", elapsed))
}

func (w *Worker) publish(inv *domain.Invocation, phase domain.Phase, errMsg string, elapsed time.Duration) {
	if w.bus == nil {
		return
	}
	_ = w.bus.Publish(domain.PhaseEvent{
		InvocationID: inv.ID,
		Action:       inv.Action,
		Phase:        phase,
		Error:        errMsg,
		Elapsed:      elapsed,
		At:           time.Now().UTC(),
	})
}
