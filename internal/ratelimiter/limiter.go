package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ActionLimiters holds one token bucket per action name, created lazily on
// first use since actions are registered dynamically at startup.
// Each bucket enforces a steady-state rate; burst equals the rate so no
// capacity can be "saved up" beyond the configured per-second maximum.
type ActionLimiters struct {
	mu       sync.Mutex
	perSec   int
	limiters map[string]*rate.Limiter
}

// New creates an ActionLimiters granting ratePerSec tokens per second per action.
func New(ratePerSec int) *ActionLimiters {
	return &ActionLimiters{
		perSec:   ratePerSec,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (al *ActionLimiters) limiter(action string) *rate.Limiter {
	al.mu.Lock()
	defer al.mu.Unlock()
	l, ok := al.limiters[action]
	if !ok {
		l = rate.NewLimiter(rate.Limit(al.perSec), al.perSec)
		al.limiters[action] = l
	}
	return l
}

// Wait blocks until the action's limiter grants a token.
// Called by each worker immediately before dispatching the invocation.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (al *ActionLimiters) Wait(ctx context.Context, action string) error {
	return al.limiter(action).Wait(ctx)
}
