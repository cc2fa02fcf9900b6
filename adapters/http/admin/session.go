package admin

import (
	"sync"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// Session is an authenticated administrator session.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore keeps admin sessions in memory. Sessions do not survive a
// restart; the administrator logs in again.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ids      ports.IDGenerator
	clock    ports.Clock
	ttl      time.Duration
}

// NewSessionStore creates a session store issuing tokens from ids.
func NewSessionStore(ids ports.IDGenerator, clock ports.Clock, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		ids:      ids,
		clock:    clock,
		ttl:      ttl,
	}
}

// Create starts a session for username. Expired sessions are swept.
func (s *SessionStore) Create(username string) Session {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}

	sess := Session{
		Token:     s.ids.New(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[sess.Token] = sess
	return sess
}

// Get returns a live session.
func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok || !s.clock.Now().Before(sess.ExpiresAt) {
		return Session{}, false
	}
	return sess, true
}

// Delete ends a session.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len counts stored sessions, expired ones included until swept.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
