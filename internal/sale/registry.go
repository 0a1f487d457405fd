package sale

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrSessionNotFound = errors.New("sale: session not found")

// Registry owns the open sessions and serialises access to each of them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*slot
	ttl      time.Duration
	now      func() time.Time
}

type slot struct {
	mu      sync.Mutex
	session *Session
	touched atomic.Int64
}

// NewRegistry builds a registry; sessions idle longer than ttl are pruned.
// A non-positive ttl keeps sessions until discarded.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{sessions: make(map[string]*slot), ttl: ttl, now: time.Now}
}

// Put registers s.
func (r *Registry) Put(s *Session) {
	sl := &slot{session: s}
	sl.touched.Store(r.now().UnixNano())
	r.mu.Lock()
	r.sessions[s.ID()] = sl
	r.mu.Unlock()
}

// Do runs fn with exclusive access to the session.
func (r *Registry) Do(id string, fn func(*Session) error) error {
	r.mu.Lock()
	sl, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.touched.Store(r.now().UnixNano())
	return fn(sl.session)
}

// Delete discards the session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}

// Prune drops idle sessions and returns how many were removed.
func (r *Registry) Prune() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, sl := range r.sessions {
		if sl.touched.Load() < cutoff {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
