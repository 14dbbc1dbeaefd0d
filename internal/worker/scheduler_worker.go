package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/repository"
)

// SchedulerWorker polls the database for invocations whose scheduled_at has
// passed and enqueues them for dispatch.
//
// Invocations created with a future scheduled_at are stored with
// phase=scheduled and bypass the queue until their time arrives. The DB is
// the source of truth, so schedules survive server restarts.
type SchedulerWorker struct {
	repo     repository.InvocationRepository
	q        *queue.PriorityQueue
	interval time.Duration
	logger   *zap.Logger
}

func NewSchedulerWorker(
	repo repository.InvocationRepository,
	q *queue.PriorityQueue,
	interval time.Duration,
	logger *zap.Logger,
) *SchedulerWorker {
	return &SchedulerWorker{repo: repo, q: q, interval: interval, logger: logger}
}

// Run ticks every interval and enqueues any invocations that are now due.
// Stops cleanly when ctx is cancelled.
func (sw *SchedulerWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("scheduler worker started", zap.Duration("interval", sw.interval))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("scheduler worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *SchedulerWorker) poll(ctx context.Context) {
	invocations, err := sw.repo.FindDueScheduled(ctx)
	if err != nil {
		sw.logger.Error("scheduler poll error", zap.Error(err))
		return
	}

	for _, inv := range invocations {
		if err := sw.q.Enqueue(queue.Item{
			InvocationID: inv.ID,
			Action:       inv.Action,
			Priority:     inv.Priority,
		}); err != nil {
			sw.logger.Warn("could not enqueue scheduled invocation",
				zap.String("id", inv.ID), zap.Error(err))
			continue
		}

		if err := sw.repo.UpdatePhase(ctx, inv.ID, domain.PhaseQueued); err != nil {
			sw.logger.Error("failed to advance phase after scheduling",
				zap.String("id", inv.ID), zap.Error(err))
		}
	}

	if len(invocations) > 0 {
		sw.logger.Info("enqueued due scheduled invocations", zap.Int("count", len(invocations)))
	}
}
