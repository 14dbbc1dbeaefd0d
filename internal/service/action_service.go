package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/actions"
	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/repository"
)

// ActionService coordinates the registry, repository, and queue.
// All business rules (unknown-action checks, idempotency, cancel phase
// machine, group limits) live here. HTTP handlers and workers depend on this
// service, not on each other.
type ActionService struct {
	repo     repository.InvocationRepository
	q        *queue.PriorityQueue
	registry *actions.Registry
	logger   *zap.Logger
}

func NewActionService(
	repo repository.InvocationRepository,
	q *queue.PriorityQueue,
	registry *actions.Registry,
	logger *zap.Logger,
) *ActionService {
	return &ActionService{repo: repo, q: q, registry: registry, logger: logger}
}

// Enqueue validates, persists, and queues a single invocation.
//
// Idempotency: if an X-Idempotency-Key header was supplied and an invocation
// with that key already exists, the existing record is returned as-is.
// The caller can distinguish a repeat response by the HTTP status code
// (200 for existing, 201 for newly created).
func (s *ActionService) Enqueue(
	ctx context.Context,
	req domain.EnqueueRequest,
	idempotencyKey string,
) (*domain.Invocation, bool, error) {
	if err := s.validate(req); err != nil {
		return nil, false, err
	}

	// --- idempotency check ---
	if idempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, true, nil // true = was a duplicate
		}
	}

	inv := s.buildInvocation(req, idempotencyKey, nil)

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, false, fmt.Errorf("persist invocation: %w", err)
	}

	s.enqueue(ctx, inv)
	return inv, false, nil
}

// EnqueueGroup validates and creates up to 1000 invocations in a single
// transaction, then queues the non-scheduled ones.
func (s *ActionService) EnqueueGroup(
	ctx context.Context,
	requests []domain.EnqueueRequest,
) (*domain.Group, error) {
	if len(requests) == 0 {
		return nil, domain.ErrGroupEmpty
	}
	if len(requests) > 1000 {
		return nil, domain.ErrGroupTooLarge
	}

	groupID := uuid.New().String()
	now := time.Now().UTC()

	invocations := make([]*domain.Invocation, len(requests))
	for i, req := range requests {
		if err := s.validate(req); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		invocations[i] = s.buildInvocation(req, "", &groupID)
		invocations[i].CreatedAt = now
		invocations[i].UpdatedAt = now
	}

	group, err := s.repo.CreateGroup(ctx, groupID, invocations)
	if err != nil {
		return nil, fmt.Errorf("persist group: %w", err)
	}

	for _, inv := range invocations {
		if inv.ScheduledAt == nil {
			s.enqueue(ctx, inv)
		}
	}

	return group, nil
}

// Cancel marks an invocation as cancelled if it has not started running.
// A running computation is never interrupted; it runs to settlement.
func (s *ActionService) Cancel(ctx context.Context, id string) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch inv.Phase {
	case domain.PhaseCancelled:
		return domain.ErrAlreadyCancelled
	case domain.PhaseRunning, domain.PhaseFulfilled, domain.PhaseRejected:
		return domain.ErrNotCancellable
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		return err
	}

	if inv.GroupID != nil {
		if err := s.repo.UpdateGroupCounts(ctx, *inv.GroupID); err != nil {
			s.logger.Warn("failed to update group counts after cancel",
				zap.String("group_id", *inv.GroupID), zap.Error(err))
		}
	}
	return nil
}

func (s *ActionService) GetByID(ctx context.Context, id string) (*domain.Invocation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ActionService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Invocation, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *ActionService) GetGroup(ctx context.Context, groupID string) (*domain.Group, []*domain.Invocation, error) {
	return s.repo.GetGroup(ctx, groupID)
}

// ActionNames returns the registered action names for the discovery endpoint.
func (s *ActionService) ActionNames() []string {
	return s.registry.Names()
}

// ---- private helpers ----

// validate runs the request's own checks plus the registry lookup, so an
// invocation for an unregistered action is refused at the door rather than
// rejected later by a worker.
func (s *ActionService) validate(req domain.EnqueueRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := s.registry.Resolve(req.Action); err != nil {
		return err
	}
	return nil
}

func (s *ActionService) buildInvocation(
	req domain.EnqueueRequest,
	idempotencyKey string,
	groupID *string,
) *domain.Invocation {
	now := time.Now().UTC()
	phase := domain.PhasePending
	if req.ScheduledAt != nil {
		phase = domain.PhaseScheduled
	}

	inv := &domain.Invocation{
		ID:          uuid.New().String(),
		GroupID:     groupID,
		Action:      req.Action,
		Payload:     req.Payload,
		Priority:    req.Priority,
		Phase:       phase,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if idempotencyKey != "" {
		inv.IdempotencyKey = &idempotencyKey
	}

	return inv
}

// enqueue places the invocation on the queue and advances it to queued.
// If the queue is full the invocation remains pending; operators see the
// condition on the queue_depth gauges and the caller got a persisted record,
// so nothing is lost. For this scope we log a warning.
func (s *ActionService) enqueue(ctx context.Context, inv *domain.Invocation) {
	if inv.ScheduledAt != nil {
		return // scheduler worker handles these
	}

	if err := s.q.Enqueue(queue.Item{
		InvocationID: inv.ID,
		Action:       inv.Action,
		Priority:     inv.Priority,
	}); err != nil {
		s.logger.Warn("queue full: invocation will remain pending",
			zap.String("id", inv.ID), zap.Error(err))
		return
	}

	if err := s.repo.UpdatePhase(ctx, inv.ID, domain.PhaseQueued); err != nil {
		s.logger.Error("failed to advance phase to queued", zap.String("id", inv.ID), zap.Error(err))
		return
	}
	inv.Phase = domain.PhaseQueued
}
