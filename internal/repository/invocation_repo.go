package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

// InvocationRepository defines all persistence operations for invocations.
// The pgx implementation is in pg_invocation_repo.go.
// Tests use a hand-written mock (mock_invocation_repo.go).
type InvocationRepository interface {
	Create(ctx context.Context, inv *domain.Invocation) error
	GetByID(ctx context.Context, id string) (*domain.Invocation, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Invocation, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Invocation, int, error)

	UpdatePhase(ctx context.Context, id string, phase domain.Phase) error
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	MarkFulfilled(ctx context.Context, id string, result json.RawMessage, settledAt time.Time) error
	MarkRejected(ctx context.Context, id string, errMsg string, settledAt time.Time) error
	Cancel(ctx context.Context, id string) error

	FindDueScheduled(ctx context.Context) ([]*domain.Invocation, error)
	FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]*domain.Invocation, error)

	CreateGroup(ctx context.Context, groupID string, invocations []*domain.Invocation) (*domain.Group, error)
	GetGroup(ctx context.Context, groupID string) (*domain.Group, []*domain.Invocation, error)
	UpdateGroupCounts(ctx context.Context, groupID string) error
}
