package player

import (
	"sync"
	"time"
)

// Factory builds the coordinator for a new visitor session.
type Factory func(sessionID string) *Coordinator

// Registry keeps one Coordinator per visitor session.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	factory Factory
	ttl     time.Duration
	now     func() time.Time
	onEvict func(id string)
	live    func(id string) bool
}

type registryEntry struct {
	coord    *Coordinator
	lastSeen time.Time
}

// NewRegistry returns a registry whose sessions expire after ttl without
// activity.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
	}
}

// OnEvict registers fn to run after Sweep closes a session.
func (r *Registry) OnEvict(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// KeepAlive registers fn to report sessions that are still attached, e.g.
// by an open browser tab. Sweep refreshes those instead of closing them.
func (r *Registry) KeepAlive(fn func(id string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = fn
}

// Get returns the coordinator for id, creating it on first use.
func (r *Registry) Get(id string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &registryEntry{coord: r.factory(id)}
		r.entries[id] = e
	}
	e.lastSeen = r.now()
	return e.coord
}

// Lookup returns the coordinator for id without creating one.
func (r *Registry) Lookup(id string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.coord, true
}

// Sweep closes and drops sessions idle for longer than the TTL, unless the
// KeepAlive hook reports them attached. It returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var idle []string
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	live, onEvict := r.live, r.onEvict
	r.mu.Unlock()

	stale := make(map[string]*Coordinator)
	for _, id := range idle {
		attached := live != nil && live(id)

		r.mu.Lock()
		if e, ok := r.entries[id]; ok {
			switch {
			case attached:
				e.lastSeen = now
			case e.lastSeen.Before(cutoff):
				stale[id] = e.coord
				delete(r.entries, id)
			}
		}
		r.mu.Unlock()
	}

	for id, c := range stale {
		c.ClosePlayer()
		if onEvict != nil {
			onEvict(id)
		}
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
