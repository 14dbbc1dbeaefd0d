package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/repository"
)

// orphanedMessage is stored as the error of a reaped invocation.
const orphanedMessage = "orphaned: exceeded running deadline, worker presumed lost"

// ReaperWorker polls the database for invocations stuck in phase=running
// longer than the configured deadline and settles them as rejected.
//
// A dispatched computation normally settles on the worker that started it;
// an invocation can only exceed the deadline when that worker's process died
// between MarkRunning and the terminal write. Reaping restores the invariant
// that every started dispatch eventually reaches exactly one terminal phase.
type ReaperWorker struct {
	repo     repository.InvocationRepository
	interval time.Duration
	deadline time.Duration
	bus      *Bus
	logger   *zap.Logger
}

func NewReaperWorker(
	repo repository.InvocationRepository,
	interval time.Duration,
	deadline time.Duration,
	bus *Bus,
	logger *zap.Logger,
) *ReaperWorker {
	return &ReaperWorker{repo: repo, interval: interval, deadline: deadline, bus: bus, logger: logger}
}

// Run ticks every interval and reaps stale running invocations.
// Stops cleanly when ctx is cancelled.
func (rw *ReaperWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reaper worker started",
		zap.Duration("interval", rw.interval),
		zap.Duration("deadline", rw.deadline))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reaper worker stopping")
			return
		case <-ticker.C:
			rw.poll(ctx)
		}
	}
}

func (rw *ReaperWorker) poll(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-rw.deadline)
	invocations, err := rw.repo.FindStaleRunning(ctx, cutoff)
	if err != nil {
		rw.logger.Error("reaper poll error", zap.Error(err))
		return
	}

	for _, inv := range invocations {
		if err := rw.repo.MarkRejected(ctx, inv.ID, orphanedMessage, time.Now().UTC()); err != nil {
			rw.logger.Error("failed to reap invocation",
				zap.String("id", inv.ID), zap.Error(err))
			continue
		}

		if rw.bus != nil {
			_ = rw.bus.Publish(domain.PhaseEvent{
				InvocationID: inv.ID,
				Action:       inv.Action,
				Phase:        domain.PhaseRejected,
				Error:        orphanedMessage,
				At:           time.Now().UTC(),
			})
		}

		if inv.GroupID != nil {
			if err := rw.repo.UpdateGroupCounts(ctx, *inv.GroupID); err != nil {
				rw.logger.Warn("failed to update group counts after reaping",
					zap.String("group_id", *inv.GroupID), zap.Error(err))
			}
		}
	}

	if len(invocations) > 0 {
		rw.logger.Warn("reaped orphaned invocations", zap.Int("count", len(invocations)))
	}
}
