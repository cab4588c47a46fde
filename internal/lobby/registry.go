// internal/lobby/registry.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
)

// runtime is the in-process state of one lobby. mu serializes joins, leaves
// and the end of a promotion; inProgress is set from the moment the roster
// reaches capacity until the promotion has been torn down.
type runtime struct {
	mu         sync.Mutex
	inProgress bool
	// names keeps display names of queued members, keyed by user ID.
	names map[string]string
}

// RuntimeRegistry maps lobby IDs to their runtime state. Entries are created
// on first reference and dropped when the lobby is deleted.
type RuntimeRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*runtime
}

func NewRuntimeRegistry() *RuntimeRegistry {
	return &RuntimeRegistry{entries: make(map[uuid.UUID]*runtime)}
}

func (r *RuntimeRegistry) get(id uuid.UUID) *runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.entries[id]
	if !ok {
		rt = &runtime{names: make(map[string]string)}
		r.entries[id] = rt
	}
	return rt
}

// Remove drops the entry of a deleted lobby.
func (r *RuntimeRegistry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// InProgress reports whether the lobby is being promoted.
func (r *RuntimeRegistry) InProgress(id uuid.UUID) bool {
	r.mu.Lock()
	rt, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.inProgress
}

func (r *RuntimeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
