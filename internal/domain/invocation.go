package domain

import (
	"encoding/json"
	"time"
)

// Priority controls queue ordering. High is processed first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Phase tracks the lifecycle of an invocation.
//
// pending → queued → running → fulfilled | rejected is the happy path;
// scheduled invocations enter the queue when due, and only invocations that
// have not started running can be cancelled — once dispatched, a computation
// runs to settlement.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseQueued    Phase = "queued"
	PhaseScheduled Phase = "scheduled"
	PhaseRunning   Phase = "running"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
	PhaseCancelled Phase = "cancelled"
)

// Settled reports whether the phase is a terminal outcome of a dispatch.
func (p Phase) Settled() bool {
	return p == PhaseFulfilled || p == PhaseRejected
}

// Invocation is the core domain entity: one requested execution of a named
// asynchronous action.
type Invocation struct {
	ID             string          `json:"id"`
	GroupID        *string         `json:"group_id,omitempty"`
	Action         string          `json:"action"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       Priority        `json:"priority"`
	Phase          Phase           `json:"phase"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Group collects invocations created together and tracks their outcomes.
type Group struct {
	ID        string    `json:"id"`
	Total     int       `json:"total"`
	Pending   int       `json:"pending"`
	Fulfilled int       `json:"fulfilled"`
	Rejected  int       `json:"rejected"`
	Cancelled int       `json:"cancelled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// maxPayloadBytes bounds the inbound action payload.
const maxPayloadBytes = 64 * 1024

// EnqueueRequest is the inbound payload for a single invocation.
type EnqueueRequest struct {
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Priority    Priority        `json:"priority"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
}

func (r *EnqueueRequest) Validate() error {
	if r.Action == "" {
		return ErrInvalidAction
	}
	if !r.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if len(r.Payload) > maxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// EnqueueGroupRequest wraps a slice of invocation requests.
type EnqueueGroupRequest struct {
	Invocations []EnqueueRequest `json:"invocations"`
}

// ListFilter holds query parameters for paginated invocation listing.
type ListFilter struct {
	Phase  *Phase
	Action *string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}
