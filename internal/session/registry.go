package session

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry is the single authority on which transport belongs to which app.
// It also deduplicates concurrent connection attempts per appID.
//
// Every disconnect bumps the generation of its appID. A connection attempt
// records the generation it started under and may only register its session
// while that generation is still current.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	gens     map[string]uint64
	inflight singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		gens:     make(map[string]uint64),
	}
}

// Get returns the live session of appID.
func (r *Registry) Get(appID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[appID]
	return s, ok
}

// Has reports whether appID has a live session.
func (r *Registry) Has(appID string) bool {
	_, ok := r.Get(appID)
	return ok
}

func (r *Registry) generation(appID string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gens[appID]
}

// put stores s if appID is still at generation gen. It returns the session
// it replaced, if any, and false when a disconnect intervened.
func (r *Registry) put(s *Session, gen uint64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[s.AppID] != gen {
		return nil, false
	}
	prev := r.sessions[s.AppID]
	r.sessions[s.AppID] = s
	return prev, true
}

// remove deletes the session of appID, returns it and invalidates every
// connection attempt in flight for appID.
func (r *Registry) remove(appID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[appID]
	delete(r.sessions, appID)
	r.gens[appID]++
	return s
}

// removeIf deletes the session of appID only if it is still s.
func (r *Registry) removeIf(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.AppID] != s {
		return false
	}
	delete(r.sessions, s.AppID)
	return true
}

// Snapshot returns every live session ordered by appID.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
