package server

import (
	"sort"
	"sync"

	"github.com/teslashibe/go-pano/pkg/session"
)

// Registry tracks the sessions currently attached to a connection. The
// pipeline itself never consults it; it exists for listings.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session.Session)}
}

// Add registers s.
func (r *Registry) Add(s *session.Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

// Remove forgets the session with the given ID.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns a snapshot of every session, oldest first.
func (r *Registry) List() []session.Info {
	r.mu.RLock()
	infos := make([]session.Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}
