package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/actions"
	"github.com/fluxhub/action-dispatch/internal/dispatch"
	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/ratelimiter"
	"github.com/fluxhub/action-dispatch/internal/repository"
	"github.com/fluxhub/action-dispatch/internal/worker"
)

type harness struct {
	repo *repository.MockInvocationRepository
	q    *queue.PriorityQueue
	bus  *worker.Bus
	stop func()
}

// newHarness starts a single worker against an in-memory repository and a
// registry containing one passing, one failing, and one panicking action.
func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := repository.NewMockInvocationRepository()
	q := queue.New()
	bus := dispatch.NewBus[domain.PhaseEvent](64)

	reg := actions.NewRegistry()
	_ = reg.Register("core.echo", actions.Echo)
	_ = reg.Register("test.fail", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("network down")
	})
	_ = reg.Register("test.panic", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		panic("bad state")
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(1, q, repo, reg, ratelimiter.New(1000), bus, zap.NewNop())
	pool.Start(ctx)

	h := &harness{repo: repo, q: q, bus: bus}
	h.stop = func() {
		cancel()
		pool.Wait()
		bus.Close()
	}
	t.Cleanup(h.stop)
	return h
}

// submit persists a queued invocation and places it on the queue, the way the
// service layer does.
func (h *harness) submit(t *testing.T, action string, payload json.RawMessage) string {
	t.Helper()

	now := time.Now().UTC()
	inv := &domain.Invocation{
		ID:        "inv-" + action + "-" + now.Format("150405.000000000"),
		Action:    action,
		Payload:   payload,
		Priority:  domain.PriorityNormal,
		Phase:     domain.PhaseQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("create invocation: %v", err)
	}
	if err := h.q.Enqueue(queue.Item{InvocationID: inv.ID, Action: action, Priority: inv.Priority}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return inv.ID
}

func (h *harness) waitPhase(t *testing.T, id string, phase domain.Phase) *domain.Invocation {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		inv, err := h.repo.GetByID(context.Background(), id)
		if err == nil && inv.Phase == phase {
			return inv
		}
		time.Sleep(5 * time.Millisecond)
	}
	inv, _ := h.repo.GetByID(context.Background(), id)
	t.Fatalf("invocation %s never reached phase %s (current: %+v)", id, phase, inv)
	return nil
}

func TestWorker_FulfillsInvocation(t *testing.T) {
	h := newHarness(t)

	payload := json.RawMessage(`{"city":"Madrid"}`)
	id := h.submit(t, "core.echo", payload)

	inv := h.waitPhase(t, id, domain.PhaseFulfilled)
	if string(inv.Result) != string(payload) {
		t.Fatalf("expected result %s, got %s", payload, inv.Result)
	}
	if inv.StartedAt == nil || inv.SettledAt == nil {
		t.Fatal("expected started_at and settled_at to be set")
	}
	if inv.ErrorMessage != nil {
		t.Fatalf("expected no error message, got %q", *inv.ErrorMessage)
	}
}

func TestWorker_RejectsOnHandlerError(t *testing.T) {
	h := newHarness(t)

	id := h.submit(t, "test.fail", nil)

	inv := h.waitPhase(t, id, domain.PhaseRejected)
	if inv.ErrorMessage == nil || *inv.ErrorMessage != "network down" {
		t.Fatalf("expected error message %q, got %v", "network down", inv.ErrorMessage)
	}
}

func TestWorker_RejectsOnHandlerPanic(t *testing.T) {
	h := newHarness(t)

	id := h.submit(t, "test.panic", nil)

	inv := h.waitPhase(t, id, domain.PhaseRejected)
	if inv.ErrorMessage == nil {
		t.Fatal("expected an error message")
	}
	if *inv.ErrorMessage != "panic: bad state" {
		t.Fatalf("expected recovered panic message, got %q", *inv.ErrorMessage)
	}
}

func TestWorker_SkipsCancelledInvocation(t *testing.T) {
	h := newHarness(t)

	// Cancel before enqueueing so the worker is guaranteed to observe the
	// cancellation when it picks the item up.
	now := time.Now().UTC()
	inv := &domain.Invocation{
		ID: "inv-cancelled", Action: "core.echo",
		Priority: domain.PriorityNormal, Phase: domain.PhaseQueued,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := h.repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("create invocation: %v", err)
	}
	id := inv.ID
	_ = h.repo.Cancel(context.Background(), id)
	if err := h.q.Enqueue(queue.Item{InvocationID: id, Action: inv.Action, Priority: inv.Priority}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Give the worker time to pick the item up; the phase must not move.
	time.Sleep(100 * time.Millisecond)
	inv, err := h.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Phase != domain.PhaseCancelled {
		t.Fatalf("expected invocation to stay cancelled, got %s", inv.Phase)
	}
}

func TestWorker_PublishesPhaseEvents(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var phases []domain.Phase
	h.bus.Subscribe(func(ev domain.PhaseEvent) {
		mu.Lock()
		phases = append(phases, ev.Phase)
		mu.Unlock()
	})

	id := h.submit(t, "core.echo", json.RawMessage(`{}`))
	h.waitPhase(t, id, domain.PhaseFulfilled)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(phases)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(phases) != 2 {
		t.Fatalf("expected 2 phase events, got %d (%v)", len(phases), phases)
	}
	if phases[0] != domain.PhaseRunning || phases[1] != domain.PhaseFulfilled {
		t.Fatalf("expected [running fulfilled], got %v", phases)
	}
}

func TestWorker_UpdatesGroupCounts(t *testing.T) {
	h := newHarness(t)

	groupID := "group-1"
	now := time.Now().UTC()
	inv := &domain.Invocation{
		ID: "inv-grouped", GroupID: &groupID, Action: "core.echo",
		Priority: domain.PriorityNormal, Phase: domain.PhaseQueued,
		CreatedAt: now, UpdatedAt: now,
	}
	if _, err := h.repo.CreateGroup(context.Background(), groupID, []*domain.Invocation{inv}); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := h.q.Enqueue(queue.Item{InvocationID: inv.ID, Action: inv.Action, Priority: inv.Priority}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.waitPhase(t, inv.ID, domain.PhaseFulfilled)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g, _, err := h.repo.GetGroup(context.Background(), groupID)
		if err == nil && g.Fulfilled == 1 && g.Pending == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("group counts were not updated after settlement")
}

func TestReaperWorker_RejectsStaleRunning(t *testing.T) {
	repo := repository.NewMockInvocationRepository()

	now := time.Now().UTC()
	stale := now.Add(-time.Hour)
	inv := &domain.Invocation{
		ID: "inv-stale", Action: "core.echo",
		Priority: domain.PriorityNormal, Phase: domain.PhaseQueued,
		CreatedAt: stale, UpdatedAt: stale,
	}
	_ = repo.Create(context.Background(), inv)
	_ = repo.MarkRunning(context.Background(), inv.ID, stale)

	rw := worker.NewReaperWorker(repo, 10*time.Millisecond, 5*time.Minute, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := repo.GetByID(context.Background(), inv.ID)
		if got.Phase == domain.PhaseRejected {
			cancel()
			<-done
			if got.ErrorMessage == nil {
				t.Fatal("expected an error message on reaped invocation")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatal("stale running invocation was never reaped")
}

func TestSchedulerWorker_EnqueuesDueInvocations(t *testing.T) {
	repo := repository.NewMockInvocationRepository()
	q := queue.New()

	past := time.Now().UTC().Add(-time.Minute)
	inv := &domain.Invocation{
		ID: "inv-due", Action: "core.echo",
		Priority: domain.PriorityNormal, Phase: domain.PhaseScheduled,
		ScheduledAt: &past,
		CreatedAt:   past, UpdatedAt: past,
	}
	_ = repo.Create(context.Background(), inv)

	sw := worker.NewSchedulerWorker(repo, q, 10*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dequeueCancel()
	item, ok := q.Dequeue(dequeueCtx)
	if !ok {
		t.Fatal("due scheduled invocation was never enqueued")
	}
	if item.InvocationID != inv.ID {
		t.Fatalf("expected %s, got %s", inv.ID, item.InvocationID)
	}
}
