// internal/interaction/router.go
package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownPrompt is returned for actions on prompts that are no longer
// registered, e.g. after the negotiation ended.
var ErrUnknownPrompt = errors.New("this prompt is no longer active")

// Action is a click or selection on a prompt.
type Action struct {
	PromptID string
	UserID   string
	Value    string
}

// Handler consumes an action. A returned error is shown to the acting user.
type Handler func(ctx context.Context, a Action) error

// Router dispatches actions to the negotiation that owns the prompt.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register installs h for promptID and returns a func removing it.
func (r *Router) Register(promptID string, h Handler) (unregister func()) {
	r.mu.Lock()
	r.handlers[promptID] = h
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.handlers, promptID)
		r.mu.Unlock()
	}
}

// Dispatch routes the action. Panics inside a handler are converted to errors.
func (r *Router) Dispatch(ctx context.Context, a Action) (err error) {
	r.mu.RLock()
	h, ok := r.handlers[a.PromptID]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownPrompt
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("action %s on %s failed: %v", a.Value, a.PromptID, rec)
		}
	}()
	return h(ctx, a)
}

// Active reports whether a prompt is registered.
func (r *Router) Active(promptID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[promptID]
	return ok
}
