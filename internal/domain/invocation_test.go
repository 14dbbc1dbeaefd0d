package domain_test

import (
	"bytes"
	"testing"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

func TestEnqueueRequest_Validate(t *testing.T) {
	valid := domain.EnqueueRequest{
		Action:   "webhook.post",
		Payload:  []byte(`{"to":"ops"}`),
		Priority: domain.PriorityNormal,
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty action", func(t *testing.T) {
		r := valid
		r.Action = ""
		if err := r.Validate(); err != domain.ErrInvalidAction {
			t.Fatalf("expected ErrInvalidAction, got %v", err)
		}
	})

	t.Run("invalid priority", func(t *testing.T) {
		r := valid
		r.Priority = "urgent"
		if err := r.Validate(); err != domain.ErrInvalidPriority {
			t.Fatalf("expected ErrInvalidPriority, got %v", err)
		}
	})

	t.Run("payload too large", func(t *testing.T) {
		r := valid
		r.Payload = bytes.Repeat([]byte("x"), 64*1024+1)
		if err := r.Validate(); err != domain.ErrPayloadTooLarge {
			t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
		}
	})

	t.Run("payload at max size passes", func(t *testing.T) {
		r := valid
		r.Payload = bytes.Repeat([]byte("x"), 64*1024)
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error at max size, got %v", err)
		}
	})

	t.Run("empty payload passes", func(t *testing.T) {
		r := valid
		r.Payload = nil
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error for empty payload, got %v", err)
		}
	})

	t.Run("all valid priorities accepted", func(t *testing.T) {
		for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow} {
			r := valid
			r.Priority = p
			if err := r.Validate(); err != nil {
				t.Fatalf("priority %q: expected no error, got %v", p, err)
			}
		}
	})
}

func TestPhase_Settled(t *testing.T) {
	settled := []domain.Phase{domain.PhaseFulfilled, domain.PhaseRejected}
	for _, p := range settled {
		if !p.Settled() {
			t.Fatalf("expected %q to be settled", p)
		}
	}

	open := []domain.Phase{
		domain.PhasePending, domain.PhaseQueued, domain.PhaseScheduled,
		domain.PhaseRunning, domain.PhaseCancelled,
	}
	for _, p := range open {
		if p.Settled() {
			t.Fatalf("expected %q not to be settled", p)
		}
	}
}
