package duel

import (
	"context"
	"sync"
)

// Registry tracks live sessions. A party may be seated in at most one live session.
type Registry interface {
	Claim(ctx context.Context, s *Session) error
	Release(ctx context.Context, s *Session) error
	Lookup(p Party) (*Session, bool)
	Get(id string) (*Session, bool)
	Count() int
}

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	byID    map[string]*Session
	byParty map[Party]*Session
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:    make(map[string]*Session),
		byParty: make(map[Party]*Session),
	}
}

func (r *MemoryRegistry) Claim(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range s.parties {
		if _, busy := r.byParty[p]; busy {
			return ErrPartyBusy
		}
	}
	r.byID[s.id] = s
	for _, p := range s.parties {
		r.byParty[p] = s
	}
	return nil
}

func (r *MemoryRegistry) Release(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byID[s.id]; !ok || cur != s {
		return nil
	}
	delete(r.byID, s.id)
	for _, p := range s.parties {
		if r.byParty[p] == s {
			delete(r.byParty, p)
		}
	}
	return nil
}

func (r *MemoryRegistry) Lookup(p Party) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byParty[p]
	return s, ok
}

func (r *MemoryRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Busy reports whether p is seated in a live session.
func (r *MemoryRegistry) Busy(p Party) bool {
	_, ok := r.Lookup(p)
	return ok
}
