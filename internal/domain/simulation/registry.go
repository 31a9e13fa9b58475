package simulation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/starsim/internal/domain/types"
)

const defaultMaxSessions = 1024

// Registry keeps one overlay per interactive session so that sessions never
// observe each other's overrides. It is bounded; when full, the least
// recently used session is evicted.
type Registry struct {
	mu          sync.Mutex
	sessions    *lru.Cache[string, *Overlay]
	maxSessions int
	onEvict     func(id string)
	// dropping is the session being removed by Drop; the cache reports that
	// removal through the same callback as evictions.
	dropping string
}

// NewRegistry creates a registry with configuration options.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{maxSessions: defaultMaxSessions}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.NewWithEvict[string, *Overlay](r.maxSessions, func(id string, _ *Overlay) {
		if r.onEvict != nil && id != r.dropping {
			r.onEvict(id)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("simulation registry: %w", err)
	}
	r.sessions = cache
	return r, nil
}

// Create opens a session with an empty overlay and returns its ID.
func (r *Registry) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.sessions.Add(id, NewOverlay())
	return id
}

// Set adds or replaces an override in the session's overlay.
func (r *Registry) Set(id, measureName string, star int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.sessions.Get(id)
	if !ok {
		return notFound("simulation.set", id)
	}
	return o.Set(measureName, star)
}

// Clear empties the session's overlay. It fails only for unknown sessions.
func (r *Registry) Clear(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.sessions.Get(id)
	if !ok {
		return notFound("simulation.clear", id)
	}
	o.Clear()
	return nil
}

// Drop ends a session and discards its overlay.
func (r *Registry) Drop(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropping = id
	defer func() { r.dropping = "" }()
	if !r.sessions.Remove(id) {
		return notFound("simulation.drop", id)
	}
	return nil
}

// Snapshot returns a copy of the session's overlay, safe to apply while the
// session keeps changing.
func (r *Registry) Snapshot(id string) (*Overlay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.sessions.Get(id)
	if !ok {
		return nil, notFound("simulation.snapshot", id)
	}
	return o.Clone(), nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

func notFound(op, id string) error {
	return types.WrapKind(op, types.ErrNotFound, fmt.Errorf("session %q", id))
}
