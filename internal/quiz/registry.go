package quiz

import (
	"context"
	"sync"
	"time"
)

// Registry keeps live sessions in memory and serializes transitions per
// session, so all state changes happen in response to one user event at a
// time. Every method returns a detached copy; the live session is only
// read or written under the registry lock, so callers can render a
// returned session while later events keep arriving. Sessions are
// ephemeral: navigating away simply abandons them and the sweep reclaims
// the entry later.
type Registry struct {
	mu       sync.Mutex
	engine   *Engine
	sessions map[string]*Session
	ttl      time.Duration
}

func NewRegistry(engine *Engine, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Registry{
		engine:   engine,
		sessions: map[string]*Session{},
		ttl:      ttl,
	}
}

// Start creates a fresh session for the user over the certificate. Any
// previous session of the same user over the same certificate is replaced;
// a restart is a new shuffle and a zero tally, never a resume.
func (r *Registry) Start(ctx context.Context, userID, certificateID string) *Session {
	s := r.engine.StartSession(ctx, userID, certificateID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(time.Now())
	for id, old := range r.sessions {
		if old.UserID == userID && old.CertificateID == certificateID {
			delete(r.sessions, id)
		}
	}
	r.sessions[s.ID] = s
	return s.clone()
}

// Get returns a copy of the session if it exists and belongs to the user.
func (r *Registry) Get(id, userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.getLocked(id, userID)
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// SelectOption forwards an option click into the engine under the registry
// lock, keeping session mutation single-threaded.
func (r *Registry) SelectOption(id, userID, optionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.getLocked(id, userID)
	if !ok {
		return nil, false
	}
	r.engine.SelectOption(s, optionID)
	s.lastActive = time.Now()
	return s.clone(), true
}

// Next forwards a next-question click into the engine.
func (r *Registry) Next(id, userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.getLocked(id, userID)
	if !ok {
		return nil, false
	}
	r.engine.Next(s)
	s.lastActive = time.Now()
	return s.clone(), true
}

func (r *Registry) getLocked(id, userID string) (*Session, bool) {
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return nil, false
	}
	return s, true
}

func (r *Registry) sweepLocked(now time.Time) {
	for id, s := range r.sessions {
		if now.Sub(s.lastActive) > r.ttl {
			delete(r.sessions, id)
		}
	}
}
