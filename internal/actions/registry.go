// Package actions holds the named asynchronous actions the hub can dispatch.
// An action is a fallible function from a JSON payload to a JSON result; the
// worker wraps it in a deferred computation and runs it through the dispatcher.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

// HandlerFunc executes one action invocation.
// The returned bytes become the invocation's result on fulfillment; the error
// becomes its rejection message. A panic inside a handler is converted to a
// rejection by the dispatch layer, never a worker crash.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Registry maps action names to handlers. Registration happens at startup;
// Resolve is called by workers and the service on every invocation.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler under name. Registering the same name twice is a
// programming error and fails loudly.
func (r *Registry) Register(name string, h HandlerFunc) error {
	if name == "" {
		return domain.ErrInvalidAction
	}
	if h == nil {
		return fmt.Errorf("register %q: nil handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("register %q: already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Resolve returns the handler for name, or domain.ErrUnknownAction.
func (r *Registry) Resolve(name string) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, domain.ErrUnknownAction
	}
	return h, nil
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
