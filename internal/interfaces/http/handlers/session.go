package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/rankforum/internal/domain"
)

// SessionStore maps opaque session IDs to authenticated account
// addresses. Sessions expire and are reaped lazily on lookup.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session
	ttl      time.Duration
}

type session struct {
	account domain.Address
	expires time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]session),
		ttl:      ttl,
	}
}

// Create issues a fresh SID bound to the account.
func (s *SessionStore) Create(account domain.Address) string {
	sid := uuid.New().String()

	s.mu.Lock()
	s.sessions[sid] = session{account: account, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return sid
}

// Lookup resolves a SID. Expired sessions are removed on access.
func (s *SessionStore) Lookup(sid string) (domain.Address, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[sid]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}
	if time.Now().After(sess.expires) {
		s.mu.Lock()
		delete(s.sessions, sid)
		s.mu.Unlock()
		return "", false
	}
	return sess.account, true
}

// Revoke ends a session.
func (s *SessionStore) Revoke(sid string) {
	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()
}

// Len returns the number of live sessions, expired ones included until
// their next lookup.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
