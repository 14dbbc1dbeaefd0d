package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

// MockInvocationRepository is a hand-written, in-memory implementation of
// InvocationRepository used in unit tests. No mock-generation library needed.
type MockInvocationRepository struct {
	mu          sync.RWMutex
	invocations map[string]*domain.Invocation
	groups      map[string]*domain.Group

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr              error
	GetByIDErr             error
	GetByIdempotencyKeyErr error
	MarkFulfilledErr       error
}

func NewMockInvocationRepository() *MockInvocationRepository {
	return &MockInvocationRepository{
		invocations: make(map[string]*domain.Invocation),
		groups:      make(map[string]*domain.Group),
	}
}

func (m *MockInvocationRepository) Create(_ context.Context, inv *domain.Invocation) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.IdempotencyKey != nil {
		for _, existing := range m.invocations {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *inv.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	clone := *inv
	m.invocations[inv.ID] = &clone
	return nil
}

func (m *MockInvocationRepository) GetByID(_ context.Context, id string) (*domain.Invocation, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invocations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *inv
	return &clone, nil
}

func (m *MockInvocationRepository) GetByIdempotencyKey(_ context.Context, key string) (*domain.Invocation, error) {
	if m.GetByIdempotencyKeyErr != nil {
		return nil, m.GetByIdempotencyKeyErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invocations {
		if inv.IdempotencyKey != nil && *inv.IdempotencyKey == key {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockInvocationRepository) List(_ context.Context, _ domain.ListFilter) ([]*domain.Invocation, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Invocation, 0, len(m.invocations))
	for _, inv := range m.invocations {
		clone := *inv
		result = append(result, &clone)
	}
	return result, len(result), nil
}

func (m *MockInvocationRepository) UpdatePhase(_ context.Context, id string, phase domain.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invocations[id]; ok {
		inv.Phase = phase
	}
	return nil
}

func (m *MockInvocationRepository) MarkRunning(_ context.Context, id string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invocations[id]; ok {
		inv.Phase = domain.PhaseRunning
		inv.StartedAt = &startedAt
	}
	return nil
}

func (m *MockInvocationRepository) MarkFulfilled(_ context.Context, id string, result json.RawMessage, settledAt time.Time) error {
	if m.MarkFulfilledErr != nil {
		return m.MarkFulfilledErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invocations[id]; ok {
		inv.Phase = domain.PhaseFulfilled
		inv.Result = append(json.RawMessage(nil), result...)
		inv.SettledAt = &settledAt
		inv.ErrorMessage = nil
	}
	return nil
}

func (m *MockInvocationRepository) MarkRejected(_ context.Context, id string, errMsg string, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invocations[id]; ok {
		inv.Phase = domain.PhaseRejected
		inv.ErrorMessage = &errMsg
		inv.SettledAt = &settledAt
	}
	return nil
}

func (m *MockInvocationRepository) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invocations[id]; ok {
		inv.Phase = domain.PhaseCancelled
	}
	return nil
}

func (m *MockInvocationRepository) FindDueScheduled(_ context.Context) ([]*domain.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	var due []*domain.Invocation
	for _, inv := range m.invocations {
		if inv.Phase == domain.PhaseScheduled && inv.ScheduledAt != nil && !inv.ScheduledAt.After(now) {
			clone := *inv
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (m *MockInvocationRepository) FindStaleRunning(_ context.Context, startedBefore time.Time) ([]*domain.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stale []*domain.Invocation
	for _, inv := range m.invocations {
		if inv.Phase == domain.PhaseRunning && inv.StartedAt != nil && !inv.StartedAt.After(startedBefore) {
			clone := *inv
			stale = append(stale, &clone)
		}
	}
	return stale, nil
}

func (m *MockInvocationRepository) CreateGroup(_ context.Context, groupID string, invocations []*domain.Invocation) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group := &domain.Group{
		ID:        groupID,
		Total:     len(invocations),
		Pending:   len(invocations),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.groups[groupID] = group
	for _, inv := range invocations {
		clone := *inv
		m.invocations[inv.ID] = &clone
	}
	return group, nil
}

func (m *MockInvocationRepository) GetGroup(_ context.Context, groupID string) (*domain.Group, []*domain.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	var invocations []*domain.Invocation
	for _, inv := range m.invocations {
		if inv.GroupID != nil && *inv.GroupID == groupID {
			clone := *inv
			invocations = append(invocations, &clone)
		}
	}
	groupClone := *g
	return &groupClone, invocations, nil
}

func (m *MockInvocationRepository) UpdateGroupCounts(_ context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil
	}
	var pending, fulfilled, rejected, cancelled int
	for _, inv := range m.invocations {
		if inv.GroupID == nil || *inv.GroupID != groupID {
			continue
		}
		switch inv.Phase {
		case domain.PhaseFulfilled:
			fulfilled++
		case domain.PhaseRejected:
			rejected++
		case domain.PhaseCancelled:
			cancelled++
		default:
			pending++
		}
	}
	g.Pending, g.Fulfilled, g.Rejected, g.Cancelled = pending, fulfilled, rejected, cancelled
	g.UpdatedAt = time.Now().UTC()
	return nil
}
