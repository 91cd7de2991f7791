package api

import (
	"sort"
	"sync"
	"time"

	"github.com/warp/commission-engine/commission"
)

// SessionRegistry holds the open reconciliation sessions of one Handler.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*commission.Session
	now      func() time.Time
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*commission.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open starts a session. statementDate may be zero.
func (r *SessionRegistry) Open(statementDate commission.Date) *commission.Session {
	s := commission.NewSession(statementDate, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

func (r *SessionRegistry) Get(id string) (*commission.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, commission.ErrSessionNotFound
	}
	return s, nil
}

// List returns open sessions, oldest first.
func (r *SessionRegistry) List() []*commission.Session {
	r.mu.RLock()
	out := make([]*commission.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close discards a session.
func (r *SessionRegistry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return commission.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Claim removes a session and hands it to the caller, so only one commit
// can apply it. Release puts it back when the commit fails.
func (r *SessionRegistry) Claim(id string) (*commission.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, commission.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return s, nil
}

func (r *SessionRegistry) Release(s *commission.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}
